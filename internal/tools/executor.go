package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clinical-assistant-server/internal/domain"
)

// ToolCallRecord is the audit view of one completed tool execution.
type ToolCallRecord struct {
	ToolName  string
	CallID    string
	Arguments map[string]interface{}
	Outcome   string
	Cached    bool
	Duration  time.Duration
}

// Recorder receives a record for every completed tool execution. Recording
// must not block or fail the call it describes.
type Recorder interface {
	RecordToolCall(ctx context.Context, record ToolCallRecord)
}

// Executor runs tool calls through a fixed pipeline: name lookup, schema
// validation, cache lookup, per-tool concurrency gate, handler invocation
// with timeout and panic recovery. Every outcome is a structured result;
// no tool failure ever aborts the conversation turn.
type Executor struct {
	registry   *Registry
	cache      *ResultCache
	semaphores map[string]chan struct{}
	timeout    time.Duration
	recorder   Recorder
	logger     *logrus.Logger
}

// NewExecutor creates an executor over a populated registry. recorder may
// be nil when auditing is disabled.
func NewExecutor(registry *Registry, cache *ResultCache, cfg domain.ToolsConfig, recorder Recorder, logger *logrus.Logger) *Executor {
	semaphores := make(map[string]chan struct{})
	for _, def := range registry.Definitions() {
		semaphores[def.Name] = make(chan struct{}, cfg.MaxConcurrent)
	}
	return &Executor{
		registry:   registry,
		cache:      cache,
		semaphores: semaphores,
		timeout:    cfg.RequestTimeout,
		recorder:   recorder,
		logger:     logger,
	}
}

// Execute runs one tool call and always returns a result, never an error.
func (e *Executor) Execute(ctx context.Context, req domain.ToolCallRequest) domain.ToolCallResult {
	start := time.Now()
	result := e.execute(ctx, req)
	result.ToolName = req.Name
	result.CallID = req.CallID

	entry := e.logger.WithFields(logrus.Fields{
		"tool":        req.Name,
		"cached":      result.Cached,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if result.OK() {
		entry.Info("Tool call completed")
	} else {
		entry.WithField("failure", string(result.Failure.Kind)).Warn("Tool call failed")
	}

	if e.recorder != nil {
		outcome := "ok"
		if !result.OK() {
			outcome = string(result.Failure.Kind)
		}
		e.recorder.RecordToolCall(ctx, ToolCallRecord{
			ToolName:  req.Name,
			CallID:    req.CallID,
			Arguments: req.Arguments,
			Outcome:   outcome,
			Cached:    result.Cached,
			Duration:  time.Since(start),
		})
	}

	return result
}

func (e *Executor) execute(ctx context.Context, req domain.ToolCallRequest) domain.ToolCallResult {
	handler, ok := e.registry.Lookup(req.Name)
	if !ok {
		return failureResult(domain.FailureUnknownTool, fmt.Sprintf("unknown tool %q", req.Name), nil)
	}

	if msg := validateArguments(handler.Definition(), req.Arguments); msg != "" {
		return failureResult(domain.FailureInvalidArguments, msg, nil)
	}

	key := GenerateKey(req.Name, req.Arguments)
	if cached, hit := e.cache.Get(ctx, key); hit {
		cached.Cached = true
		return cached
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	// The concurrency gate covers the wait as well as the handler call, so
	// a saturated tool surfaces a timeout instead of queueing unboundedly.
	sem := e.semaphores[req.Name]
	select {
	case sem <- struct{}{}:
		defer func() { <-sem }()
	case <-ctx.Done():
		return failureResult(domain.FailureTimeout, fmt.Sprintf("tool %q timed out waiting for capacity", req.Name), nil)
	}

	data, summary, err := e.invoke(ctx, handler, req.Arguments)
	if err != nil {
		kind := domain.KindOf(err)
		if ctx.Err() == context.DeadlineExceeded {
			kind = domain.FailureTimeout
		}
		return failureResult(kind, domain.SafeMessage(err), domain.DetailsOf(err))
	}

	result := domain.ToolCallResult{Data: data, Summary: summary}
	e.cache.Set(ctx, key, result)
	return result
}

// invoke calls the handler with panic recovery. A panicking handler is
// reported as a handler fault with a safe message.
func (e *Executor) invoke(ctx context.Context, handler Handler, arguments map[string]interface{}) (data interface{}, summary string, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithField("panic", fmt.Sprintf("%v", r)).Error("Tool handler panicked")
			err = domain.E(domain.FailureHandlerError, "the tool failed unexpectedly")
		}
	}()
	return handler.Handle(ctx, arguments)
}

func failureResult(kind domain.FailureKind, message string, details interface{}) domain.ToolCallResult {
	return domain.ToolCallResult{
		Data:    details,
		Failure: &domain.ToolFailure{Kind: kind, Message: message},
	}
}

// validateArguments checks an argument mapping against the declared
// parameter specs. It returns an empty string when the mapping is valid.
func validateArguments(def domain.ToolDefinition, arguments map[string]interface{}) string {
	for name := range arguments {
		if _, declared := def.Parameters[name]; !declared {
			return fmt.Sprintf("unexpected argument %q for tool %q", name, def.Name)
		}
	}

	for name, spec := range def.Parameters {
		value, present := arguments[name]
		if !present || value == nil {
			if spec.Required {
				return fmt.Sprintf("missing required argument %q", name)
			}
			continue
		}

		switch spec.Type {
		case "string":
			s, ok := value.(string)
			if !ok {
				return fmt.Sprintf("argument %q must be a string", name)
			}
			if spec.Required && s == "" {
				return fmt.Sprintf("argument %q must not be empty", name)
			}
			if len(spec.Enum) > 0 && !containsString(spec.Enum, s) {
				return fmt.Sprintf("argument %q must be one of %v", name, spec.Enum)
			}
		case "array":
			items, ok := value.([]interface{})
			if !ok {
				// Decoded Go slices arrive typed rather than as []interface{}.
				if typed, isTyped := value.([]string); isTyped {
					items = make([]interface{}, len(typed))
					for i, s := range typed {
						items[i] = s
					}
				} else {
					return fmt.Sprintf("argument %q must be an array", name)
				}
			}
			for i, item := range items {
				if _, ok := item.(string); !ok {
					return fmt.Sprintf("argument %q element %d must be a string", name, i)
				}
			}
		case "integer", "number":
			switch value.(type) {
			case float64, int, int64:
			default:
				return fmt.Sprintf("argument %q must be a number", name)
			}
		case "boolean":
			if _, ok := value.(bool); !ok {
				return fmt.Sprintf("argument %q must be a boolean", name)
			}
		}
	}
	return ""
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

// StringArg extracts a string argument after validation has passed.
func StringArg(arguments map[string]interface{}, name string) string {
	if v, ok := arguments[name].(string); ok {
		return v
	}
	return ""
}

// StringSliceArg extracts a string-array argument after validation has
// passed.
func StringSliceArg(arguments map[string]interface{}, name string) []string {
	switch v := arguments[name].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
