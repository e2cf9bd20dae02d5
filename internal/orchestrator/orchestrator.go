package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/clinical-assistant-server/internal/domain"
	"github.com/clinical-assistant-server/internal/interactions"
	"github.com/clinical-assistant-server/internal/llm"
	"github.com/clinical-assistant-server/internal/tools"
)

const (
	degradedLimitAnswer = "I wasn't able to complete that request within the allowed number of lookups. Please try a narrower question."
	degradedLLMAnswer   = "I'm unable to reach the language service right now. Please try again shortly."
)

// TurnResult is the outcome of one user turn.
type TurnResult struct {
	SessionID  string                      `json:"session_id"`
	Answer     string                      `json:"answer"`
	ToolCalls  int                         `json:"tool_calls"`
	RoundTrips int                         `json:"round_trips"`
	Alerts     []domain.InteractionFinding `json:"alerts,omitempty"`
	// Degraded marks answers produced by a fallback path rather than the
	// model completing normally.
	Degraded bool `json:"degraded,omitempty"`
}

// Orchestrator drives the tool-calling conversation loop. Each turn moves
// through awaiting-model and tool-requested states until the model
// answers in plain text or the round-trip bound is hit.
type Orchestrator struct {
	completer llm.ChatCompleter
	executor  *tools.Executor
	registry  *tools.Registry
	checker   *interactions.Checker
	sessions  *SessionStore
	cfg       domain.OrchestratorConfig
	logger    *logrus.Logger
}

// New creates an orchestrator.
func New(
	completer llm.ChatCompleter,
	executor *tools.Executor,
	registry *tools.Registry,
	checker *interactions.Checker,
	sessions *SessionStore,
	cfg domain.OrchestratorConfig,
	logger *logrus.Logger,
) *Orchestrator {
	return &Orchestrator{
		completer: completer,
		executor:  executor,
		registry:  registry,
		checker:   checker,
		sessions:  sessions,
		cfg:       cfg,
		logger:    logger,
	}
}

// Sessions exposes the session store to the transport layer.
func (o *Orchestrator) Sessions() *SessionStore {
	return o.sessions
}

// HandleTurn processes one user message within a session and always
// returns a user-visible answer. Tool failures and an unreachable model
// degrade the answer; they never surface as raw errors.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID, userText string) *TurnResult {
	session := o.sessions.GetOrCreate(sessionID)
	session.mu.Lock()
	defer session.mu.Unlock()
	session.touch()

	if len(session.messages) == 0 && o.cfg.SystemPrompt != "" {
		session.messages = append(session.messages, llm.Message{Role: llm.RoleSystem, Content: o.cfg.SystemPrompt})
	}
	session.messages = append(session.messages, llm.Message{Role: llm.RoleUser, Content: userText})

	result := &TurnResult{SessionID: session.ID}
	definitions := o.registry.Definitions()

	for round := 0; round < o.cfg.MaxRoundTrips; round++ {
		result.RoundTrips = round + 1

		completion, err := o.completer.Complete(ctx, session.messages, definitions)
		if err != nil {
			o.logger.WithError(err).Error("Chat completion failed")
			result.Answer = degradedLLMAnswer
			result.Degraded = true
			session.messages = append(session.messages, llm.Message{Role: llm.RoleAssistant, Content: result.Answer})
			return result
		}

		if !completion.HasToolCalls() {
			result.Answer = completion.Content
			session.messages = append(session.messages, llm.Message{Role: llm.RoleAssistant, Content: completion.Content})
			result.Alerts = o.proactiveAlerts(session, userText, completion.Content)
			return result
		}

		session.messages = append(session.messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
		})

		toolResults := o.dispatch(ctx, completion.ToolCalls)
		result.ToolCalls += len(toolResults)
		for i, toolResult := range toolResults {
			o.observeMedications(session, toolResult)
			session.messages = append(session.messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    renderToolResult(toolResult),
				ToolCallID: completion.ToolCalls[i].ID,
			})
		}
	}

	o.logger.WithFields(logrus.Fields{
		"session_id":  session.ID,
		"round_trips": o.cfg.MaxRoundTrips,
	}).Warn("Round-trip limit reached; returning degraded answer")

	result.Answer = degradedLimitAnswer
	result.Degraded = true
	session.messages = append(session.messages, llm.Message{Role: llm.RoleAssistant, Content: result.Answer})
	return result
}

// dispatch executes the batch of requested tool calls concurrently,
// returning results in request order.
func (o *Orchestrator) dispatch(ctx context.Context, calls []llm.ToolCall) []domain.ToolCallResult {
	results := make([]domain.ToolCallResult, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call llm.ToolCall) {
			defer wg.Done()
			results[i] = o.executeCall(ctx, call)
		}(i, call)
	}
	wg.Wait()
	return results
}

func (o *Orchestrator) executeCall(ctx context.Context, call llm.ToolCall) domain.ToolCallResult {
	arguments := make(map[string]interface{})
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &arguments); err != nil {
			return domain.ToolCallResult{
				ToolName: call.Name,
				CallID:   call.ID,
				Failure: &domain.ToolFailure{
					Kind:    domain.FailureInvalidArguments,
					Message: "tool arguments were not valid JSON",
				},
			}
		}
	}
	return o.executor.Execute(ctx, domain.ToolCallRequest{
		CallID:    call.ID,
		Name:      call.Name,
		Arguments: arguments,
	})
}

// renderToolResult serializes a tool result for the model. Failures are
// explicit structured payloads the model can explain to the user.
func renderToolResult(result domain.ToolCallResult) string {
	data, err := json.Marshal(result)
	if err != nil {
		return `{"failure":{"kind":"HANDLER_ERROR","message":"result could not be serialized"}}`
	}
	return string(data)
}

// observeMedications collects medications from retrieved patient data so
// later turns can be screened against them.
func (o *Orchestrator) observeMedications(session *Session, result domain.ToolCallResult) {
	if !result.OK() {
		return
	}
	switch data := result.Data.(type) {
	case *domain.PatientRecordSet:
		for _, record := range data.Records {
			session.rememberMedications(record.Prescriptions(), interactions.Normalize)
		}
	case *domain.Summary:
		if data.Medications != nil {
			session.rememberMedications(data.Medications.AllMedications, interactions.Normalize)
		}
	}
}

// proactiveAlerts screens medications mentioned in the exchange against
// the medications already on record for this session. Findings are
// returned structurally rather than spliced into the answer text, and a
// system note is recorded so following turns keep the alert context.
func (o *Orchestrator) proactiveAlerts(session *Session, userText, answer string) []domain.InteractionFinding {
	mentioned := interactions.ExtractMentions(userText + " " + answer)
	if len(mentioned) == 0 {
		return nil
	}
	findings := o.checker.Check(mentioned, session.knownMedications)
	if len(findings) == 0 {
		return nil
	}

	o.logger.WithFields(logrus.Fields{
		"session_id": session.ID,
		"findings":   len(findings),
	}).Info("Proactive medication interaction alert raised")

	session.messages = append(session.messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: alertNote(findings),
	})
	return findings
}

func alertNote(findings []domain.InteractionFinding) string {
	note := "Medication interaction alert for this patient:"
	for _, f := range findings {
		note += fmt.Sprintf(" %s + %s (%s): %s", f.DrugA, f.DrugB, f.Severity, f.Rationale)
	}
	return note
}
