// Package models defines the wire and persistence types shared across
// agentcore: messages, tool calls/results, sessions, and the trajectory
// event taxonomy. It intentionally carries no behavior beyond small
// constructors and predicates — the components in internal/ own the logic.
package models

import (
	"encoding/json"
	"time"
)

// Role identifies who authored a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	default:
		return false
	}
}

// ContentBlockType tags the variant held by a ContentBlock.
type ContentBlockType string

const (
	ContentText  ContentBlockType = "text"
	ContentImage ContentBlockType = "image"
)

// ContentBlock is a tagged union over the kinds of content a message can
// carry. Only the field matching Type is meaningful.
type ContentBlock struct {
	Type ContentBlockType `json:"type"`

	// Text holds the block's text when Type == ContentText.
	Text string `json:"text,omitempty"`

	// ImageData holds base64-encoded image bytes when Type == ContentImage.
	ImageData string `json:"image_data,omitempty"`
	// ImageMimeType is the MIME type of ImageData (e.g. "image/png").
	ImageMimeType string `json:"image_mime_type,omitempty"`
}

// ToolCall is a single tool invocation requested by the assistant.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult is the outcome of executing a ToolCall, always correlated back
// to it by ToolCallID. Every ToolCall that reaches the LLM message ledger
// must eventually be followed by exactly one ToolResult with a matching ID
// — the context engine enforces this invariant.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	// Display is the short, human-facing rendering of this result (e.g.
	// "✓ Command executed (exit code: 0)"), distinct from Content, which is
	// the full text fed back to the model.
	Display string `json:"display,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
}

// Message is one entry in the conversation ledger owned by the context
// engine. Content is either plain Text or a slice of Blocks (multimodal);
// exactly one of them should be populated.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`
	Blocks  []ContentBlock `json:"blocks,omitempty"`

	// Name, for tool messages, is the tool name that produced this result.
	Name string `json:"name,omitempty"`

	// ToolCalls is populated on assistant messages that requested tool use.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID is populated on tool-role messages, correlating the result
	// back to the ToolCall.ID that requested it.
	ToolCallID string `json:"tool_call_id,omitempty"`

	Timestamp time.Time `json:"timestamp,omitempty"`
}

// HasToolCalls reports whether this assistant message requested tool use.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// Session is a single agent conversation: an ordered ledger of messages plus
// identifying metadata. The session ID format is
// "session_<YYYYMMDD_HHMMSS>_<8-hex>".
type Session struct {
	ID        string    `json:"id"`
	Workdir   string    `json:"workdir"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EventType names a trajectory event kind. The full taxonomy is append-only
// JSONL; see internal/ctxengine for the writer.
type EventType string

const (
	EventSessionStart  EventType = "session_start"
	EventUserMessage   EventType = "user_message"
	EventLLMRequest    EventType = "llm_request"
	EventLLMDone       EventType = "llm_done"
	EventToolCall      EventType = "tool_call"
	EventToolResult    EventType = "tool_result"
	EventSanitize      EventType = "sanitize"
	EventSessionSummary EventType = "session_summary"
)

// TrajectoryEvent is one append-only line of the trajectory log.
type TrajectoryEvent struct {
	Type      EventType       `json:"type"`
	Time      time.Time       `json:"time"`
	PromptID  string          `json:"prompt_id,omitempty"`
	Iteration int             `json:"iteration,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}
