package mcp

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinical-assistant-server/internal/domain"
	"github.com/clinical-assistant-server/internal/interactions"
	"github.com/clinical-assistant-server/internal/tools"
)

type cannedReader struct {
	records []domain.PatientRecord
	err     error
}

func (r *cannedReader) SearchPatient(ctx context.Context, patientName string) ([]domain.PatientRecord, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.records, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestServer(t *testing.T, reader *cannedReader) *Server {
	t.Helper()

	logger := testLogger()

	checker, err := interactions.NewChecker()
	require.NoError(t, err)

	patients := tools.NewPatientDataHandler(reader, logger)

	registry := tools.NewRegistry()
	registry.Register(patients)
	registry.Register(tools.NewSummaryHandler(patients, checker, logger))
	registry.Register(tools.NewInteractionHandler(checker, logger))

	cache := tools.NewResultCache(16, time.Minute, nil, logger)
	executor := tools.NewExecutor(registry, cache, domain.ToolsConfig{
		MaxConcurrent:  4,
		RequestTimeout: 5 * time.Second,
	}, nil, logger)

	return NewServer(executor, registry, logger)
}

// connectSession wires the server to an SDK client over in-memory transports.
func connectSession(t *testing.T, server *Server) *mcp.ClientSession {
	t.Helper()

	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	serverSession, err := server.mcpServer.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	clientSession, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = clientSession.Close() })

	return clientSession
}

func decodeToolResult(t *testing.T, result *mcp.CallToolResult) domain.ToolCallResult {
	t.Helper()

	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "tool result content should be text")

	var decoded domain.ToolCallResult
	require.NoError(t, json.Unmarshal([]byte(text.Text), &decoded))
	return decoded
}

func TestListToolsExposesRegistry(t *testing.T) {
	session := connectSession(t, newTestServer(t, &cannedReader{}))

	result, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description, "tool %s should carry a description", tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"get_patient_data",
		"get_patient_summary",
		"check_medication_interactions",
	}, names)
}

func TestCallToolReturnsPatientRecords(t *testing.T) {
	reader := &cannedReader{records: []domain.PatientRecord{
		{
			PatientName:       "Jane Doe",
			DateOfVisit:       "2023-03-02",
			PatientComplaint:  "Dizziness",
			Diagnosis:         "Vertigo",
			DrugsPrescribed:   []string{"Meclizine 25mg"},
			PatientAgeAtVisit: 41,
		},
	}}
	session := connectSession(t, newTestServer(t, reader))

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "get_patient_data",
		Arguments: json.RawMessage(`{"patient_name":"Jane Doe"}`),
	})
	require.NoError(t, err)

	assert.False(t, result.IsError)
	decoded := decodeToolResult(t, result)
	assert.Equal(t, "get_patient_data", decoded.ToolName)
	assert.Nil(t, decoded.Failure)
	assert.Contains(t, decoded.Summary, "Jane Doe")
}

func TestCallToolInteractionCheck(t *testing.T) {
	session := connectSession(t, newTestServer(t, &cannedReader{}))

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "check_medication_interactions",
		Arguments: json.RawMessage(`{"new_medications":["Diazepam"],"existing_medications":["Meclizine"]}`),
	})
	require.NoError(t, err)

	assert.False(t, result.IsError)
	decoded := decodeToolResult(t, result)
	assert.Contains(t, decoded.Summary, "interaction")
}

func TestCallToolFailureSetsIsError(t *testing.T) {
	session := connectSession(t, newTestServer(t, &cannedReader{}))

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "get_patient_data",
		Arguments: json.RawMessage(`{"patient_name":"Nobody Known"}`),
	})
	require.NoError(t, err)

	assert.True(t, result.IsError)
	decoded := decodeToolResult(t, result)
	require.NotNil(t, decoded.Failure)
	assert.Equal(t, domain.FailureNotFound, decoded.Failure.Kind)
}

func TestCallToolInvalidArguments(t *testing.T) {
	session := connectSession(t, newTestServer(t, &cannedReader{}))

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "get_patient_data",
		Arguments: json.RawMessage(`{"patient_name":""}`),
	})
	require.NoError(t, err)

	assert.True(t, result.IsError)
	decoded := decodeToolResult(t, result)
	require.NotNil(t, decoded.Failure)
	assert.Equal(t, domain.FailureInvalidArguments, decoded.Failure.Kind)
}

func TestDecodeArguments(t *testing.T) {
	arguments, err := decodeArguments(nil)
	require.NoError(t, err)
	assert.Empty(t, arguments)

	arguments, err = decodeArguments(json.RawMessage(`{"patient_name":"Jane Doe"}`))
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", arguments["patient_name"])

	_, err = decodeArguments(json.RawMessage(`["not","an","object"]`))
	assert.Error(t, err)
}
