// Package providers implements the LLMProvider adapters that translate
// agentcore's internal completion request/chunk shapes into concrete SDK
// calls: Anthropic's Messages API and OpenAI's Chat Completions API.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"agentcore/internal/agent"
	"agentcore/pkg/models"
)

// AnthropicConfig configures an AnthropicProvider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Retry        RetryPolicy
}

// AnthropicProvider implements agent.LLMProvider against Anthropic's Claude
// Messages API, with prompt-cache injection on the last tool-result block
// of a request. See Complete for which failures its retry policy covers.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
	retry        RetryPolicy
}

// NewAnthropicProvider validates config and constructs a ready-to-use
// provider.
func NewAnthropicProvider(config AnthropicConfig) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if config.DefaultModel == "" {
		config.DefaultModel = "claude-sonnet-4-5"
	}
	if config.Retry.Config.MaxAttempts == 0 {
		config.Retry = DefaultRetryPolicy()
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if strings.TrimSpace(config.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &AnthropicProvider{
		client:       anthropic.NewClient(opts...),
		defaultModel: config.DefaultModel,
		retry:        config.Retry,
	}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Models() []agent.Model {
	return []agent.Model{
		{ID: "claude-opus-4-5", Name: "Claude Opus 4.5", ContextSize: 200000, SupportsVision: true},
		{ID: "claude-sonnet-4-5", Name: "Claude Sonnet 4.5", ContextSize: 200000, SupportsVision: true},
		{ID: "claude-haiku-4-5", Name: "Claude Haiku 4.5", ContextSize: 200000, SupportsVision: true},
		{ID: "claude-opus-4-1", Name: "Claude Opus 4.1", ContextSize: 200000, SupportsVision: true},
		{ID: "claude-opus-4", Name: "Claude Opus 4", ContextSize: 200000, SupportsVision: true},
		{ID: "claude-sonnet-4", Name: "Claude Sonnet 4", ContextSize: 200000, SupportsVision: true},
	}
}

func (p *AnthropicProvider) SupportsTools() bool { return true }

// Complete streams one request. The retry policy wraps stream creation,
// which fails here only when the request cannot be built (message or tool
// conversion). The SDK reports HTTP and transport errors (rate limits,
// timeouts, server errors) through the stream itself; processStream
// forwards them as a terminal error chunk, and they are not retried.
func (p *AnthropicProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	chunks := make(chan *agent.CompletionChunk)

	go func() {
		defer close(chunks)

		model := p.model(req.Model)
		var stream *ssestream.Stream[anthropic.MessageStreamEventUnion]

		err := p.retry.Do(ctx, func(attempt int) (time.Duration, error) {
			s, createErr := p.createStream(ctx, req, model)
			if createErr != nil {
				wrapped := p.wrapError(createErr, model)
				return retryAfterFrom(wrapped), wrapped
			}
			stream = s
			return 0, nil
		})
		if err != nil {
			chunks <- &agent.CompletionChunk{Error: err}
			return
		}

		p.processStream(stream, chunks, model)
	}()

	return chunks, nil
}

func (p *AnthropicProvider) createStream(ctx context.Context, req *agent.CompletionRequest, model string) (*ssestream.Stream[anthropic.MessageStreamEventUnion], error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("anthropic: failed to convert messages: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: int64(maxTokensOrDefault(req.MaxTokens)),
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return nil, fmt.Errorf("anthropic: failed to convert tools: %w", err)
		}
		params.Tools = tools
	}

	return p.client.Messages.NewStreaming(ctx, params), nil
}

// maxEmptyStreamEvents caps consecutive no-op events before a stream is
// treated as malformed, guarding against a flooding/hung SSE connection.
const maxEmptyStreamEvents = 300

func (p *AnthropicProvider) processStream(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], chunks chan<- *agent.CompletionChunk, model string) {
	var currentToolCall *models.ToolCall
	var currentToolInput strings.Builder
	emptyEventCount := 0
	var inputTokens, outputTokens int

	for stream.Next() {
		event := stream.Current()
		processed := false

		switch event.Type {
		case "message_start":
			if ms := event.AsMessageStart(); ms.Message.Usage.InputTokens > 0 {
				inputTokens = int(ms.Message.Usage.InputTokens)
			}
			processed = true

		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			if block.Type == "tool_use" {
				toolUse := block.AsToolUse()
				currentToolCall = &models.ToolCall{ID: toolUse.ID, Name: toolUse.Name}
				currentToolInput.Reset()
				processed = true
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					chunks <- &agent.CompletionChunk{Text: delta.Text}
					processed = true
				}
			case "input_json_delta":
				if delta.PartialJSON != "" {
					currentToolInput.WriteString(delta.PartialJSON)
					processed = true
				}
			}

		case "content_block_stop":
			if currentToolCall != nil {
				currentToolCall.Input = json.RawMessage(currentToolInput.String())
				chunks <- &agent.CompletionChunk{ToolCall: currentToolCall}
				currentToolCall = nil
				processed = true
			}

		case "message_delta":
			if md := event.AsMessageDelta(); md.Usage.OutputTokens > 0 {
				outputTokens = int(md.Usage.OutputTokens)
			}
			processed = true

		case "message_stop":
			chunks <- &agent.CompletionChunk{Done: true, InputTokens: inputTokens, OutputTokens: outputTokens}
			return

		case "error":
			chunks <- &agent.CompletionChunk{Error: p.wrapError(errors.New("anthropic stream error"), model)}
			return
		}

		if processed {
			emptyEventCount = 0
		} else if emptyEventCount++; emptyEventCount >= maxEmptyStreamEvents {
			chunks <- &agent.CompletionChunk{Error: p.wrapError(fmt.Errorf("stream appears malformed after %d empty events", emptyEventCount), model)}
			return
		}
	}

	if err := stream.Err(); err != nil {
		chunks <- &agent.CompletionChunk{Error: p.wrapError(err, model)}
	}
}

// cacheControl marks the given Anthropic content block ephemeral, used to
// mark the final tool-result block of a request as a prompt-cache
// breakpoint so the (typically large and stable) tool history up to that
// point is reused across turns instead of re-billed every request.
var cacheControl = anthropic.CacheControlEphemeralParam{TTL: anthropic.CacheControlEphemeralTTLTTL5m}

// convertMessages converts the internal ledger to Anthropic's message
// format. The last tool-role message's content block is marked with an
// ephemeral cache_control breakpoint.
func convertMessages(messages []models.Message) ([]anthropic.MessageParam, error) {
	lastToolIdx := -1
	for i, m := range messages {
		if m.Role == models.RoleTool {
			lastToolIdx = i
		}
	}

	var result []anthropic.MessageParam
	for i, msg := range messages {
		if msg.Role == models.RoleSystem {
			continue
		}

		var content []anthropic.ContentBlockParamUnion

		if msg.Content != "" {
			content = append(content, anthropic.NewTextBlock(msg.Content))
		}

		if msg.Role == models.RoleTool {
			block := anthropic.ToolResultBlockParam{ToolUseID: msg.ToolCallID}
			if msg.Content != "" {
				block.Content = []anthropic.ToolResultBlockParamContentUnion{
					{OfText: &anthropic.TextBlockParam{Text: msg.Content}},
				}
			}
			if i == lastToolIdx {
				block.CacheControl = cacheControl
			}
			content = append(content, anthropic.ContentBlockParamUnion{OfToolResult: &block})
		}

		for _, call := range msg.ToolCalls {
			var input map[string]interface{}
			if len(call.Input) > 0 {
				if err := json.Unmarshal(call.Input, &input); err != nil {
					return nil, fmt.Errorf("invalid tool call input for %s: %w", call.Name, err)
				}
			}
			content = append(content, anthropic.NewToolUseBlock(call.ID, input, call.Name))
		}

		if len(content) == 0 {
			continue
		}

		if msg.Role == models.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}
	return result, nil
}

func convertTools(tools []agent.ToolSchema) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(tool.Parameters, &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", tool.Name, err)
		}
		param := anthropic.ToolUnionParamOfTool(schema, tool.Name)
		if param.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s: missing tool definition", tool.Name)
		}
		param.OfTool.Description = anthropic.String(tool.Description)
		result = append(result, param)
	}
	return result, nil
}

func (p *AnthropicProvider) model(requested string) string {
	if requested == "" {
		return p.defaultModel
	}
	return requested
}

func maxTokensOrDefault(maxTokens int) int {
	if maxTokens <= 0 {
		return 4096
	}
	return maxTokens
}

type anthropicErrorPayload struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func (p *AnthropicProvider) wrapError(err error, model string) error {
	if err == nil {
		return nil
	}
	if _, ok := AsProviderError(err); ok {
		return err
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		providerErr := NewError("anthropic", model, err).WithStatus(int(apiErr.StatusCode))
		if raw := apiErr.RawJSON(); raw != "" {
			var payload anthropicErrorPayload
			if json.Unmarshal([]byte(raw), &payload) == nil {
				if payload.Error.Message != "" {
					providerErr.Message = payload.Error.Message
				}
				if payload.RequestID != "" {
					providerErr = providerErr.WithRequestID(payload.RequestID)
				}
			}
		}
		return providerErr
	}

	return NewError("anthropic", model, err)
}

// retryAfterFrom extracts a server-advised retry delay from a rate-limit
// error, if the provider surfaced one; the Anthropic SDK does not expose
// the Retry-After header directly, so this always returns 0 today and the
// caller falls back to the policy's computed backoff. Kept as a seam so a
// future SDK version (or the OpenAI adapter, which does see raw headers)
// can populate it without changing RetryPolicy's shape.
func retryAfterFrom(err error) time.Duration {
	return 0
}
