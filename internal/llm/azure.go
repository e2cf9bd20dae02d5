package llm

import (
	"context"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/clinical-assistant-server/internal/domain"
)

// AzureClient is the Azure OpenAI chat completion provider. Requests are
// rate limited client-side so a chatty conversation cannot exhaust the
// deployment quota.
type AzureClient struct {
	client     openai.Client
	deployment string
	maxTokens  int64
	timeout    time.Duration
	limiter    *rate.Limiter
	logger     *logrus.Logger
}

// NewAzureClient creates a chat completion client against an Azure OpenAI
// deployment.
func NewAzureClient(cfg domain.LLMConfig, logger *logrus.Logger) *AzureClient {
	client := openai.NewClient(
		azure.WithEndpoint(cfg.Endpoint, cfg.APIVersion),
		azure.WithAPIKey(cfg.APIKey),
	)

	rateLimit := cfg.RateLimit
	if rateLimit <= 0 {
		rateLimit = 10
	}

	return &AzureClient{
		client:     client,
		deployment: cfg.Deployment,
		maxTokens:  int64(cfg.MaxTokens),
		timeout:    cfg.Timeout,
		limiter:    rate.NewLimiter(rate.Limit(rateLimit), rateLimit),
		logger:     logger,
	}
}

// Complete implements ChatCompleter.
func (c *AzureClient) Complete(ctx context.Context, messages []Message, tools []domain.ToolDefinition) (*Completion, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, domain.Wrap(domain.FailureTimeout, err, "rate limit wait aborted")
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.deployment),
		Messages: convertMessages(messages),
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(c.maxTokens)
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	start := time.Now()
	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, domain.Wrap(domain.FailureTimeout, err, "chat completion timed out")
		}
		return nil, domain.Wrap(domain.FailureServiceUnavailable, err, "chat completion failed")
	}
	if len(completion.Choices) == 0 {
		return nil, domain.E(domain.FailureServiceUnavailable, "chat completion returned no choices")
	}

	message := completion.Choices[0].Message
	result := &Completion{Content: message.Content}
	for _, call := range message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}

	c.logger.WithFields(logrus.Fields{
		"tool_calls":  len(result.ToolCalls),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Chat completion received")

	return result, nil
}

func convertMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case RoleUser:
			out = append(out, openai.UserMessage(msg.Content))
		case RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(msg.Content))
				continue
			}
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if msg.Content != "" {
				assistant.Content.OfString = openai.String(msg.Content)
			}
			for _, call := range msg.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: call.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      call.Name,
						Arguments: call.Arguments,
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case RoleTool:
			out = append(out, openai.ToolMessage(msg.Content, msg.ToolCallID))
		}
	}
	return out
}

func convertTools(tools []domain.ToolDefinition) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, tool := range tools {
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  openai.FunctionParameters(tool.InputSchema()),
			},
		})
	}
	return out
}
