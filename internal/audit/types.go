// Package audit persists a record of every tool execution so clinical
// data access can be reviewed after the fact. Recording is best-effort:
// a failed write never fails the tool call it describes.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clinical-assistant-server/internal/tools"
)

// Entry is one persisted tool execution record.
type Entry struct {
	ID         int64     `json:"id,omitempty"`
	ToolName   string    `json:"tool_name"`
	CallID     string    `json:"call_id,omitempty"`
	Arguments  string    `json:"arguments"` // canonical JSON of the call arguments
	Outcome    string    `json:"outcome"`   // "ok" or a failure kind
	Cached     bool      `json:"cached"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store persists audit entries.
type Store interface {
	// Save appends one entry and fills in its ID and CreatedAt.
	Save(ctx context.Context, entry *Entry) error

	// List returns entries newest first with pagination.
	List(ctx context.Context, limit, offset int) ([]*Entry, error)

	// ListByTool returns entries for one tool, newest first.
	ListByTool(ctx context.Context, toolName string, limit, offset int) ([]*Entry, error)

	// Count returns the total number of entries.
	Count(ctx context.Context) (int64, error)

	// Close closes the store and releases resources.
	Close() error
}

// Export is the JSON export format for the audit trail.
type Export struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Entries    []*Entry  `json:"entries"`
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// ExportJSON writes the whole audit trail to a JSON writer.
func ExportJSON(ctx context.Context, store Store, writer io.Writer) error {
	all, err := store.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list audit entries: %w", err)
	}

	export := &Export{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Count:      len(all),
		Entries:    all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// Recorder adapts a Store to the tool executor's recording hook.
type Recorder struct {
	store  Store
	logger *logrus.Logger
}

// NewRecorder creates a recorder over a store.
func NewRecorder(store Store, logger *logrus.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// RecordToolCall implements tools.Recorder.
func (r *Recorder) RecordToolCall(ctx context.Context, record tools.ToolCallRecord) {
	arguments, err := json.Marshal(record.Arguments)
	if err != nil {
		arguments = []byte("{}")
	}
	entry := &Entry{
		ToolName:   record.ToolName,
		CallID:     record.CallID,
		Arguments:  string(arguments),
		Outcome:    record.Outcome,
		Cached:     record.Cached,
		DurationMS: record.Duration.Milliseconds(),
	}
	if err := r.store.Save(ctx, entry); err != nil {
		r.logger.WithError(err).Warn("Failed to persist audit entry")
	}
}
