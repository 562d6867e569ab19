// Package agent implements the core of an interactive, tool-using coding
// assistant: the agent loop state machine, the LLM provider abstraction,
// and the tool registry/interface the loop dispatches against.
package agent

import (
	"context"
	"encoding/json"

	"agentcore/pkg/models"
)

// LLMProvider is the adapter boundary between the agent loop and a
// concrete LLM backend (Anthropic, OpenAI, ...). Implementations must be
// safe for concurrent use; the loop may call Complete for different runs
// from different goroutines.
type LLMProvider interface {
	// Complete sends a request and streams the response back chunk by
	// chunk. The channel is closed when the stream ends, whether
	// successfully or with an error (the final chunk carries Done or Error).
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)

	// Name identifies the provider ("anthropic", "openai", ...).
	Name() string

	// Models lists the models this provider exposes.
	Models() []Model

	// SupportsTools reports whether this provider can take tool schemas.
	SupportsTools() bool
}

// CompletionRequest is a single LLM completion request: the full message
// history the context engine has assembled, the system prompt, and the
// tool schemas currently registered.
type CompletionRequest struct {
	Model     string               `json:"model"`
	System    string               `json:"system,omitempty"`
	Messages  []models.Message     `json:"messages"`
	Tools     []ToolSchema         `json:"tools,omitempty"`
	MaxTokens int                  `json:"max_tokens,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
}

// CompletionChunk is one piece of a streaming completion. A chunk carries
// either partial text, a completed tool call, the Done signal, or an Error
// — callers should check fields in that order of precedence.
type CompletionChunk struct {
	Text         string          `json:"text,omitempty"`
	ToolCall     *models.ToolCall `json:"tool_call,omitempty"`
	Done         bool            `json:"done,omitempty"`
	Error        error           `json:"-"`
	InputTokens  int             `json:"input_tokens,omitempty"`
	OutputTokens int             `json:"output_tokens,omitempty"`
	CacheReadTokens  int         `json:"cache_read_tokens,omitempty"`
	CacheWriteTokens int         `json:"cache_write_tokens,omitempty"`
}

// Model describes one model a provider exposes.
type Model struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ContextSize    int    `json:"context_size"`
	SupportsVision bool   `json:"supports_vision"`
}

// ToolSchema is the wire shape a provider needs to advertise a tool to the
// LLM: name, natural-language description, and a JSON Schema for arguments.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Tool is the interface every built-in workspace tool implements. The loop
// never calls Execute directly — it always goes through the tool executor,
// which applies the confirmation gate and records the trajectory event.
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolResult is a tool's output, destined to become a models.ToolResult
// once the executor attaches the originating tool_call_id. Display is the
// short human-facing rendering (e.g. "✓ Command executed (exit code: 0)");
// Content is the full text that goes back to the model.
type ToolResult struct {
	Content string `json:"content"`
	Display string `json:"display,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
}
