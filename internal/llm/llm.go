// Package llm abstracts the chat completion service behind a small
// provider interface so the conversation loop can be tested without a
// live endpoint.
package llm

import (
	"context"

	"github.com/clinical-assistant-server/internal/domain"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a tool invocation requested by the model, with the raw JSON
// argument payload as produced by the completion API.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one entry of conversation history.
type Message struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID correlates a tool-result message with the call that
	// produced it.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// Completion is the model's reply to one request: either a plain text
// answer or a set of tool calls to execute.
type Completion struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// HasToolCalls reports whether the model asked for tools to be run.
func (c Completion) HasToolCalls() bool {
	return len(c.ToolCalls) > 0
}

// ChatCompleter produces one completion for a conversation history plus
// the tool definitions the model may request.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []Message, tools []domain.ToolDefinition) (*Completion, error)
}
