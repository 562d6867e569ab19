package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"agentcore/internal/agent"
	"agentcore/pkg/models"
)

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Retry        RetryPolicy
}

// OpenAIProvider implements agent.LLMProvider against OpenAI's Chat
// Completions streaming API.
type OpenAIProvider struct {
	client       *openai.Client
	defaultModel string
	retry        RetryPolicy
}

// NewOpenAIProvider validates config and constructs a ready-to-use provider.
func NewOpenAIProvider(config OpenAIConfig) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if config.DefaultModel == "" {
		config.DefaultModel = "gpt-4o"
	}
	if config.Retry.Config.MaxAttempts == 0 {
		config.Retry = DefaultRetryPolicy()
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(clientConfig),
		defaultModel: config.DefaultModel,
		retry:        config.Retry,
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Models() []agent.Model {
	return []agent.Model{
		{ID: "gpt-4o", Name: "GPT-4o", ContextSize: 128000, SupportsVision: true},
		{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", ContextSize: 128000, SupportsVision: true},
		{ID: "gpt-4", Name: "GPT-4", ContextSize: 8192, SupportsVision: false},
		{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", ContextSize: 16385, SupportsVision: false},
	}
}

func (p *OpenAIProvider) SupportsTools() bool { return true }

// Complete opens a streaming chat completion, retrying stream creation per
// the provider's retry policy.
func (p *OpenAIProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	model := p.model(req.Model)

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: convertOpenAIMessages(req.Messages, req.System),
		Stream:   true,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		chatReq.Temperature = float32(req.Temperature)
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = convertOpenAITools(req.Tools)
	}

	var stream *openai.ChatCompletionStream
	err := p.retry.Do(ctx, func(attempt int) (time.Duration, error) {
		s, createErr := p.client.CreateChatCompletionStream(ctx, chatReq)
		if createErr != nil {
			wrapped := p.wrapError(createErr, model)
			return 0, wrapped
		}
		stream = s
		return 0, nil
	})
	if err != nil {
		return nil, err
	}

	chunks := make(chan *agent.CompletionChunk)
	go p.processStream(ctx, stream, chunks, model)
	return chunks, nil
}

func (p *OpenAIProvider) processStream(ctx context.Context, stream *openai.ChatCompletionStream, chunks chan<- *agent.CompletionChunk, model string) {
	defer close(chunks)
	defer stream.Close()

	toolCalls := make(map[int]*models.ToolCall)
	var inputTokens, outputTokens int

	flushToolCalls := func() {
		indices := make([]int, 0, len(toolCalls))
		for index := range toolCalls {
			indices = append(indices, index)
		}
		sort.Ints(indices)
		for _, index := range indices {
			tc := toolCalls[index]
			if tc.ID != "" && tc.Name != "" {
				chunks <- &agent.CompletionChunk{ToolCall: tc}
			}
		}
		toolCalls = make(map[int]*models.ToolCall)
	}

	for {
		select {
		case <-ctx.Done():
			chunks <- &agent.CompletionChunk{Error: ctx.Err()}
			return
		default:
		}

		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				flushToolCalls()
				chunks <- &agent.CompletionChunk{Done: true, InputTokens: inputTokens, OutputTokens: outputTokens}
				return
			}
			chunks <- &agent.CompletionChunk{Error: p.wrapError(err, model)}
			return
		}

		if resp.Usage != nil {
			inputTokens = resp.Usage.PromptTokens
			outputTokens = resp.Usage.CompletionTokens
		}
		if len(resp.Choices) == 0 {
			continue
		}

		choice := resp.Choices[0]
		delta := choice.Delta

		if delta.Content != "" {
			chunks <- &agent.CompletionChunk{Text: delta.Content}
		}

		for _, tc := range delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			current, ok := toolCalls[index]
			if !ok {
				current = &models.ToolCall{}
				toolCalls[index] = current
			}
			if tc.ID != "" {
				current.ID = tc.ID
			}
			if tc.Function.Name != "" {
				current.Name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				current.Input = json.RawMessage(string(current.Input) + tc.Function.Arguments)
			}
		}

		if choice.FinishReason == openai.FinishReasonToolCalls {
			flushToolCalls()
		}
	}
}

func convertOpenAIMessages(messages []models.Message, system string) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}

	for _, msg := range messages {
		switch msg.Role {
		case models.RoleTool:
			result = append(result, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Content,
				ToolCallID: msg.ToolCallID,
			})

		case models.RoleAssistant:
			oaiMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: msg.Content}
			for _, call := range msg.ToolCalls {
				oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
					ID:   call.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      call.Name,
						Arguments: string(call.Input),
					},
				})
			}
			result = append(result, oaiMsg)

		default:
			result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: msg.Content, MultiContent: convertOpenAIContentBlocks(msg.Blocks)})
		}
	}
	return result
}

func convertOpenAIContentBlocks(blocks []models.ContentBlock) []openai.ChatMessagePart {
	if len(blocks) == 0 {
		return nil
	}
	parts := make([]openai.ChatMessagePart, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case models.ContentText:
			parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: b.Text})
		case models.ContentImage:
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    fmt.Sprintf("data:%s;base64,%s", b.ImageMimeType, b.ImageData),
					Detail: openai.ImageURLDetailAuto,
				},
			})
		}
	}
	return parts
}

func convertOpenAITools(tools []agent.ToolSchema) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		var schema map[string]any
		if err := json.Unmarshal(tool.Parameters, &schema); err != nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  schema,
			},
		}
	}
	return result
}

func (p *OpenAIProvider) model(requested string) string {
	if requested == "" {
		return p.defaultModel
	}
	return requested
}

func (p *OpenAIProvider) wrapError(err error, model string) error {
	if err == nil {
		return nil
	}
	if _, ok := AsProviderError(err); ok {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return NewError("openai", model, err).WithStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NewError("openai", model, err).WithStatus(reqErr.HTTPStatusCode)
	}
	return NewError("openai", model, err)
}
