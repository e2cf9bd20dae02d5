package domain

// ParameterSpec describes one tool parameter in the tool's input schema.
type ParameterSpec struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"`
	// Items is the element type for array parameters.
	Items string `json:"items,omitempty"`
}

// ToolDefinition declares a tool presented to the language model. The set
// of definitions is process-wide static configuration, immutable after
// startup.
type ToolDefinition struct {
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	Parameters  map[string]ParameterSpec `json:"parameters"`
}

// InputSchema renders the parameter specs as a JSON-schema object of the
// shape the chat completion and MCP tool surfaces both expect.
func (d ToolDefinition) InputSchema() map[string]interface{} {
	properties := make(map[string]interface{}, len(d.Parameters))
	required := make([]string, 0, len(d.Parameters))
	for name, spec := range d.Parameters {
		prop := map[string]interface{}{"type": spec.Type}
		if spec.Description != "" {
			prop["description"] = spec.Description
		}
		if len(spec.Enum) > 0 {
			prop["enum"] = spec.Enum
		}
		if spec.Type == "array" {
			itemType := spec.Items
			if itemType == "" {
				itemType = "string"
			}
			prop["items"] = map[string]interface{}{"type": itemType}
		}
		properties[name] = prop
		if spec.Required {
			required = append(required, name)
		}
	}
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// ToolCallRequest is a tool invocation produced by the language model.
type ToolCallRequest struct {
	// CallID correlates the request with the model message that issued it.
	CallID    string                 `json:"call_id,omitempty"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolFailure describes a recoverable tool failure. It is surfaced to the
// model as a structured result, never raised as a fatal fault.
type ToolFailure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// ToolCallResult is the outcome of one tool execution. Either Data/Summary
// are populated (success) or Failure is set. ToolName is always carried
// for correlation.
type ToolCallResult struct {
	ToolName string       `json:"tool_name"`
	CallID   string       `json:"call_id,omitempty"`
	Data     interface{}  `json:"data,omitempty"`
	Summary  string       `json:"summary,omitempty"`
	Failure  *ToolFailure `json:"failure,omitempty"`
	Cached   bool         `json:"cached,omitempty"`
}

// OK reports whether the result is a success payload.
func (r ToolCallResult) OK() bool {
	return r.Failure == nil
}
