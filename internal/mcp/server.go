package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/clinical-assistant-server/internal/domain"
	"github.com/clinical-assistant-server/internal/tools"
)

const serverVersion = "v0.1.0"

// Server exposes the tool registry over the Model Context Protocol so that
// MCP-capable clients can call the clinical tools without the chat loop.
type Server struct {
	executor  *tools.Executor
	registry  *tools.Registry
	mcpServer *mcp.Server
	logger    *logrus.Logger
}

// NewServer builds an MCP server with every registered tool exposed.
func NewServer(executor *tools.Executor, registry *tools.Registry, logger *logrus.Logger) *Server {
	serverInfo := &mcp.Implementation{
		Name:    "clinical-assistant",
		Version: serverVersion,
	}

	s := &Server{
		executor:  executor,
		registry:  registry,
		mcpServer: mcp.NewServer(serverInfo, nil),
		logger:    logger,
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	definitions := s.registry.Definitions()

	for _, def := range definitions {
		toolDef := &mcp.Tool{
			Name:        def.Name,
			Description: def.Description,
		}

		s.mcpServer.AddTool(toolDef, s.toolHandler(def.Name))
		s.logger.WithField("tool_name", def.Name).Debug("Registered MCP tool")
	}

	s.logger.WithField("tool_count", len(definitions)).Info("Successfully registered all tools")
}

// toolHandler bridges one MCP tool call onto the shared executor. Failures
// are rendered as structured results with IsError set, never as protocol
// errors, so the client always receives the failure kind and message.
func (s *Server) toolHandler(toolName string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s.logger.WithField("tool", toolName).Debug("Handling MCP tool call")

		arguments, err := decodeArguments(req.Params.Arguments)
		if err != nil {
			s.logger.WithError(err).WithField("tool", toolName).Warn("Rejected malformed tool arguments")
			result := domain.ToolCallResult{
				ToolName: toolName,
				Failure: &domain.ToolFailure{
					Kind:    domain.FailureInvalidArguments,
					Message: "tool arguments are not a JSON object",
				},
			}
			return renderResult(result), nil
		}

		result := s.executor.Execute(ctx, domain.ToolCallRequest{
			Name:      toolName,
			Arguments: arguments,
		})
		return renderResult(result), nil
	}
}

func decodeArguments(raw json.RawMessage) (map[string]interface{}, error) {
	arguments := make(map[string]interface{})
	if len(raw) == 0 {
		return arguments, nil
	}
	if err := json.Unmarshal(raw, &arguments); err != nil {
		return nil, fmt.Errorf("failed to decode arguments: %w", err)
	}
	return arguments, nil
}

func renderResult(result domain.ToolCallResult) *mcp.CallToolResult {
	text, err := json.Marshal(result)
	if err != nil {
		text = []byte(fmt.Sprintf(`{"tool_name":%q,"failure":{"kind":"HANDLER_ERROR","message":"failed to encode tool result"}}`, result.ToolName))
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(text)},
		},
		IsError: !result.OK(),
	}
}

// Run serves MCP requests over stdio until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Starting clinical assistant MCP server...")

	mcpTransport := &mcp.StdioTransport{}
	if err := s.mcpServer.Run(ctx, mcpTransport); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}
