package agent

import (
	"context"
	"strings"
	"time"

	"agentcore/internal/ctxengine"
	"agentcore/internal/metrics"
	"agentcore/pkg/models"
)

// LoopConfig configures the agent loop's iteration bound and default
// generation parameters.
type LoopConfig struct {
	// MaxIterations caps how many LLM_CALL -> EXECUTE_TOOLS round trips one
	// user turn may take before the loop gives up and returns the sentinel
	// "Maximum iterations reached" message.
	MaxIterations int
	Model         string
	System        string
	Temperature   float64
	MaxTokens     int
}

// DefaultLoopConfig returns sane defaults: 25 iterations, 4096 max tokens.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{MaxIterations: 25, MaxTokens: 4096}
}

func sanitizeLoopConfig(c LoopConfig) LoopConfig {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 25
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4096
	}
	return c
}

// maxIterationsMessage is the sentinel final-response text returned when a
// turn exhausts its iteration budget without the model producing a
// tool-call-free response.
const maxIterationsMessage = "Maximum iterations reached"

// ToolExecutor is the narrow interface the loop needs from the tool
// executor: dispatch one call and get back a result plus whether it
// represents a malformed-arguments condition the context engine should
// sanitize instead of recording as an ordinary tool result.
type ToolExecutor interface {
	ExecuteToolCall(ctx context.Context, call models.ToolCall) (result models.ToolResult, malformed bool, reason string)
}

// AgenticLoop drives the IDLE -> RECORD_USER -> LLM_CALL -> EXECUTE_TOOLS ->
// FINAL state machine for one session, streaming lifecycle events back to
// the caller over a channel.
type AgenticLoop struct {
	provider LLMProvider
	registry *ToolRegistry
	executor ToolExecutor
	engine   *ctxengine.Engine
	metrics  *metrics.Collector
	config   LoopConfig
}

// NewAgenticLoop wires a loop from its five collaborators.
func NewAgenticLoop(provider LLMProvider, registry *ToolRegistry, executor ToolExecutor, engine *ctxengine.Engine, collector *metrics.Collector, config LoopConfig) *AgenticLoop {
	return &AgenticLoop{
		provider: provider,
		registry: registry,
		executor: executor,
		engine:   engine,
		metrics:  collector,
		config:   sanitizeLoopConfig(config),
	}
}

// EventType names one kind of lifecycle event the loop emits.
type EventType string

const (
	EventRunStarted      EventType = "run_started"
	EventTextDelta       EventType = "text_delta"
	EventToolCallStarted EventType = "tool_call_started"
	EventToolCallResult  EventType = "tool_call_result"
	EventRunFinished     EventType = "run_finished"
	EventRunError        EventType = "run_error"
)

// Event is one item in the loop's event stream.
type Event struct {
	Type       EventType
	Text       string
	ToolCall   *models.ToolCall
	ToolResult *models.ToolResult
	Iteration  int
	Err        error
	Final      string
}

// Run executes one user turn to completion, returning a channel of
// lifecycle events. The channel is closed when the turn ends, whether by
// reaching a final tool-call-free response, exhausting MaxIterations, or
// hitting a non-retryable error.
func (l *AgenticLoop) Run(ctx context.Context, userText string) <-chan Event {
	events := make(chan Event, 16)
	go l.run(ctx, userText, events)
	return events
}

func (l *AgenticLoop) run(ctx context.Context, userText string, events chan<- Event) {
	defer close(events)

	events <- Event{Type: EventRunStarted}

	l.engine.AddUserMessage(userText)
	prompt := l.metrics.StartPrompt(l.engine.PromptID())

	for iteration := 0; iteration < l.config.MaxIterations; iteration++ {
		select {
		case <-ctx.Done():
			events <- Event{Type: EventRunError, Err: ctx.Err()}
			return
		default:
		}

		assistantMsg, usage, err := l.streamPhase(ctx, events)
		if err != nil {
			events <- Event{Type: EventRunError, Err: &LoopError{Phase: PhaseLLMCall, Iteration: iteration, Cause: err}}
			return
		}
		l.metrics.RecordAPICall(prompt, metrics.APICall{Model: l.config.Model, Usage: usage})
		l.engine.AddAssistantMessage(assistantMsg, usage)

		if !assistantMsg.HasToolCalls() {
			events <- Event{Type: EventRunFinished, Final: assistantMsg.Content, Iteration: iteration}
			return
		}

		if err := l.executeToolsPhase(ctx, assistantMsg, prompt, events, iteration); err != nil {
			events <- Event{Type: EventRunError, Err: &LoopError{Phase: PhaseExecuteTools, Iteration: iteration, Cause: err}}
			return
		}
	}

	events <- Event{Type: EventRunFinished, Final: maxIterationsMessage}
}

// streamPhase sends one completion request and reassembles the streamed
// chunks into a single assistant message: text deltas are concatenated and
// forwarded as EventTextDelta events, and each complete tool call chunk is
// appended to the message's ToolCalls in arrival order.
func (l *AgenticLoop) streamPhase(ctx context.Context, events chan<- Event) (models.Message, metrics.Usage, error) {
	req := &CompletionRequest{
		Model:       l.config.Model,
		System:      l.config.System,
		Messages:    l.engine.GetMessagesForLLM(),
		Tools:       l.registry.AsLLMTools(),
		MaxTokens:   l.config.MaxTokens,
		Temperature: l.config.Temperature,
	}

	chunks, err := l.provider.Complete(ctx, req)
	if err != nil {
		return models.Message{}, metrics.Usage{}, err
	}

	msg := models.Message{Role: models.RoleAssistant}
	var usage metrics.Usage
	var text strings.Builder

	for chunk := range chunks {
		if chunk.Error != nil {
			return models.Message{}, metrics.Usage{}, chunk.Error
		}
		if chunk.Text != "" {
			text.WriteString(chunk.Text)
			events <- Event{Type: EventTextDelta, Text: chunk.Text}
		}
		if chunk.ToolCall != nil {
			msg.ToolCalls = append(msg.ToolCalls, *chunk.ToolCall)
		}
		if chunk.Done {
			usage = metrics.Usage{
				InputTokens:      int64(chunk.InputTokens),
				OutputTokens:     int64(chunk.OutputTokens),
				CacheReadTokens:  int64(chunk.CacheReadTokens),
				CacheWriteTokens: int64(chunk.CacheWriteTokens),
			}
		}
	}

	msg.Content = text.String()
	return msg, usage, nil
}

// executeToolsPhase dispatches every tool call the assistant requested, in
// order, recording each result against the context engine. A call whose
// arguments are malformed JSON is routed to the context engine's sanitizer
// instead of getting an ordinary tool_result appended, preserving the
// tool_call_id/tool_message pairing invariant.
func (l *AgenticLoop) executeToolsPhase(ctx context.Context, assistantMsg models.Message, prompt *metrics.Prompt, events chan<- Event, iteration int) error {
	assistantIndex := len(l.engine.GetMessagesForLLM()) - 1

	for _, call := range assistantMsg.ToolCalls {
		events <- Event{Type: EventToolCallStarted, ToolCall: &call, Iteration: iteration}

		start := time.Now()
		result, malformed, reason := l.executor.ExecuteToolCall(ctx, call)
		duration := time.Since(start)

		if malformed {
			if err := l.engine.SanitizeInvalidToolCall(assistantIndex, call.ID, call.Name, reason); err != nil {
				return err
			}
			events <- Event{Type: EventToolCallResult, ToolCall: &call, ToolResult: &models.ToolResult{
				ToolCallID: call.ID, Content: reason, Display: "❌ Invalid tool call arguments", IsError: true,
			}, Iteration: iteration}
			continue
		}

		l.engine.AddToolResult(call.ID, call.Name, result.Content, result.Display, result.IsError, duration)
		l.metrics.RecordToolCall(prompt, metrics.ToolCall{Name: call.Name, DurationMs: duration.Milliseconds(), IsError: result.IsError})
		events <- Event{Type: EventToolCallResult, ToolCall: &call, ToolResult: &result, Iteration: iteration}
	}
	return nil
}
