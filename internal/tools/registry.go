package tools

import (
	"context"
	"sort"

	"github.com/clinical-assistant-server/internal/domain"
)

// Handler executes one tool. Handle returns the structured payload, a
// short human-readable summary of it, and an error classified with a
// domain failure kind.
type Handler interface {
	Definition() domain.ToolDefinition
	Handle(ctx context.Context, arguments map[string]interface{}) (interface{}, string, error)
}

// Registry maps tool names to handlers. It is populated once at startup
// and read-only afterwards, so lookups need no locking.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler under its declared tool name. Registering the
// same name twice replaces the earlier handler.
func (r *Registry) Register(handler Handler) {
	r.handlers[handler.Definition().Name] = handler
}

// Lookup returns the handler for a tool name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	handler, ok := r.handlers[name]
	return handler, ok
}

// Definitions returns all registered tool definitions sorted by name.
func (r *Registry) Definitions() []domain.ToolDefinition {
	defs := make([]domain.ToolDefinition, 0, len(r.handlers))
	for _, handler := range r.handlers {
		defs = append(defs, handler.Definition())
	}
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Name < defs[j].Name
	})
	return defs
}
