// Package ctxengine implements the context engine: the sole owner of the
// conversation message ledger, trajectory log, and conversation snapshot.
// The agent loop holds only a reference to an Engine — it never mutates the
// ledger directly.
package ctxengine

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"agentcore/internal/envprobe"
	"agentcore/internal/metrics"
	"agentcore/pkg/models"
)

// Engine owns one session's message ledger plus the bookkeeping (prompt id,
// iteration count, trajectory writer, snapshot writer) the rest of the
// system reads but never mutates directly.
type Engine struct {
	mu sync.Mutex

	sessionID string
	workdir   string
	model     string
	system    string

	messages      []models.Message
	promptCounter int
	iteration     int
	finalResponse *models.Message

	trajectory io.Writer
	snapshot   io.Writer
}

// New creates a context engine for a fresh session, generating a session ID
// of the form "session_<YYYYMMDD_HHMMSS>_<8-hex>".
func New(workdir, model, system string) *Engine {
	return &Engine{
		sessionID: generateSessionID(),
		workdir:   workdir,
		model:     model,
		system:    system,
	}
}

func generateSessionID() string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("session_%s_%s", time.Now().Format("20060102_150405"), hex.EncodeToString(buf))
}

// SessionID returns this engine's session identifier.
func (e *Engine) SessionID() string {
	return e.sessionID
}

// SetWriters wires the trajectory (append-only JSONL) and snapshot
// (overwritten each turn) sinks. Both are optional; a nil writer silently
// discards its output. The snapshot sink is cleared before each write when
// it has a Reset method (e.g. *bytes.Buffer) or can be truncated and
// rewound (e.g. *os.File); any other writer receives each snapshot appended.
func (e *Engine) SetWriters(trajectory, snapshot io.Writer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.trajectory = trajectory
	e.snapshot = snapshot
}

// PromptID returns the current prompt id, "prompt_<NNN>" zero-padded to 3
// digits, valid only after at least one AddUserMessage call.
func (e *Engine) PromptID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fmt.Sprintf("prompt_%03d", e.promptCounter)
}

// Iteration returns the current within-prompt iteration count.
func (e *Engine) Iteration() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.iteration
}

// BuildSystemPrompt composes the base system prompt with the environment
// probe's rendered block appended, so the LLM sees platform/git state on
// every turn without the caller having to splice it in manually.
func (e *Engine) BuildSystemPrompt(env envprobe.Info) string {
	return e.system + "\n\n## Environment\n" + env.ToContextString()
}

// AddUserMessage records a new user turn: it resets the iteration counter,
// advances the prompt id, and appends the message to the ledger.
func (e *Engine) AddUserMessage(text string) models.Message {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.promptCounter++
	e.iteration = 0
	msg := models.Message{Role: models.RoleUser, Content: text, Timestamp: time.Now()}
	e.messages = append(e.messages, msg)

	e.writeTrajectory(models.EventUserMessage, map[string]interface{}{
		"prompt_id": fmt.Sprintf("prompt_%03d", e.promptCounter),
		"text":      summarizeQuery(text),
	})
	e.writeSnapshotLocked()
	return msg
}

// AddAssistantMessage records one assistant turn (text and/or tool calls),
// incrementing the iteration counter. If the message carries no tool calls
// it latches as the prompt's final response.
func (e *Engine) AddAssistantMessage(msg models.Message, usage metrics.Usage) models.Message {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.iteration++
	msg.Timestamp = time.Now()
	e.messages = append(e.messages, msg)

	if !msg.HasToolCalls() {
		final := msg
		e.finalResponse = &final
	}

	e.writeTrajectory(models.EventLLMDone, map[string]interface{}{
		"iteration":    e.iteration,
		"has_tools":    msg.HasToolCalls(),
		"token_usage": map[string]int64{
			"input":       usage.InputTokens,
			"output":      usage.OutputTokens,
			"cache_read":  usage.CacheReadTokens,
			"cache_write": usage.CacheWriteTokens,
		},
	})
	e.writeSnapshotLocked()
	return msg
}

// AddToolResult records one tool's result message, correlated to its
// tool_call_id, and logs the call's duration to the trajectory. display is
// the short human-facing rendering (spec.md §3's Tool Result "display"
// field); it is carried on the trajectory event only — the ledger message
// fed back to the LLM always uses the full content.
func (e *Engine) AddToolResult(toolCallID, toolName, content, display string, isError bool, duration time.Duration) models.Message {
	e.mu.Lock()
	defer e.mu.Unlock()

	msg := models.Message{
		Role:       models.RoleTool,
		Content:    content,
		Name:       toolName,
		ToolCallID: toolCallID,
		Timestamp:  time.Now(),
	}
	e.messages = append(e.messages, msg)

	e.writeTrajectory(models.EventToolResult, map[string]interface{}{
		"tool_call_id": toolCallID,
		"tool":         toolName,
		"display":      display,
		"is_error":     isError,
		"duration_ms":  duration.Milliseconds(),
	})
	e.writeSnapshotLocked()
	return msg
}

// retryInstructionTemplate is the exact user-facing follow-up message
// appended after sanitizing a malformed tool call, grounded verbatim on
// codefuse/core/context_engine.py::sanitize_invalid_tool_call.
const retryInstructionTemplate = "Error: The previous tool call had invalid JSON format in the arguments. " +
	"Tool '%s' (ID: %s) failed with error: %s\n\n" +
	"Please retry the tool call with VALID JSON format. Ensure that:\n" +
	"- All strings are properly quoted\n" +
	"- All special characters are properly escaped\n" +
	"- The JSON structure is complete and well-formed\n" +
	"- All brackets and braces are properly matched\n\n" +
	"Continue with the task using correct JSON format."

// SanitizeInvalidToolCall repairs an assistant message whose tool_calls
// contained unparseable argument JSON. It rewrites that message's content to
// append a transcript of every tool call it attempted (the malformed one
// rendered as "<Invalid JSON format>", the rest pretty-printed), clears its
// tool_calls, and appends a fresh user message instructing the model to
// retry with valid JSON — preserving the tool_call_id/tool_message pairing
// invariant, since the malformed call never gets a matching tool_result.
// Grounded verbatim on
// codefuse/core/context_engine.py::sanitize_invalid_tool_call.
func (e *Engine) SanitizeInvalidToolCall(assistantIndex int, toolCallID, toolName, errorMessage string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if assistantIndex < 0 || assistantIndex >= len(e.messages) {
		return fmt.Errorf("sanitize: assistant message index %d out of range", assistantIndex)
	}
	msg := e.messages[assistantIndex]
	if msg.Role != models.RoleAssistant {
		return fmt.Errorf("sanitize: message at index %d is not an assistant message", assistantIndex)
	}

	msg.Content += formatAttemptedToolCalls(msg.ToolCalls, toolCallID)
	msg.ToolCalls = nil
	e.messages[assistantIndex] = msg

	e.messages = append(e.messages, models.Message{
		Role:      models.RoleUser,
		Content:   fmt.Sprintf(retryInstructionTemplate, toolName, toolCallID, errorMessage),
		Timestamp: time.Now(),
	})

	e.writeTrajectory(models.EventSanitize, map[string]interface{}{
		"assistant_index": assistantIndex,
		"tool_call_id":    toolCallID,
		"tool":            toolName,
		"reason":          errorMessage,
	})
	e.writeSnapshotLocked()
	return nil
}

// formatAttemptedToolCalls renders the "Tool calls attempted:" transcript
// appended to a sanitized assistant message, grounded verbatim on
// codefuse/core/context_engine.py::sanitize_invalid_tool_call.
func formatAttemptedToolCalls(calls []models.ToolCall, malformedID string) string {
	entries := make([]string, len(calls))
	for i, c := range calls {
		entries[i] = fmt.Sprintf("- Tool: %s\n  ID: %s\n  Arguments: %s", c.Name, c.ID, formatToolArgs(c, malformedID))
	}
	out := "\n\nTool calls attempted:\n"
	for i, entry := range entries {
		if i > 0 {
			out += "\n"
		}
		out += entry
	}
	return out
}

// formatToolArgs pretty-prints one tool call's arguments, rendering the
// malformed call (matched by ID) as "<Invalid JSON format>" regardless of
// its actual bytes.
func formatToolArgs(c models.ToolCall, malformedID string) string {
	if c.ID == malformedID {
		return "<Invalid JSON format>"
	}
	var v interface{}
	if err := json.Unmarshal(c.Input, &v); err != nil {
		return "<Invalid JSON format>"
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "<Invalid JSON format>"
	}
	return string(pretty)
}

// GetMessagesForLLM returns the full message ledger for the next
// completion request.
func (e *Engine) GetMessagesForLLM() []models.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Message, len(e.messages))
	copy(out, e.messages)
	return out
}

// FinalResponse returns the last assistant message that carried no tool
// calls, if any has been recorded yet.
func (e *Engine) FinalResponse() *models.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finalResponse
}

// summarizeQuery renders a query for structured log lines: plain text
// truncates to 100 chars, grounded on
// codefuse/core/agent_loop.py::_summarize_query.
func summarizeQuery(text string) string {
	const limit = 100
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}

func (e *Engine) writeTrajectory(eventType models.EventType, data map[string]interface{}) {
	if e.trajectory == nil {
		return
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	event := models.TrajectoryEvent{
		Type:      eventType,
		Time:      time.Now(),
		PromptID:  fmt.Sprintf("prompt_%03d", e.promptCounter),
		Iteration: e.iteration,
		Data:      payload,
	}
	line, err := json.Marshal(event)
	if err != nil {
		return
	}
	e.trajectory.Write(append(line, '\n'))
}

func (e *Engine) writeSnapshotLocked() {
	if e.snapshot == nil {
		return
	}
	payload, err := json.MarshalIndent(map[string]interface{}{"messages": e.messages}, "", "  ")
	if err != nil {
		return
	}
	switch w := e.snapshot.(type) {
	case interface{ Reset() }:
		w.Reset()
	case interface {
		Truncate(int64) error
		Seek(int64, int) (int64, error)
	}:
		_ = w.Truncate(0)
		_, _ = w.Seek(0, io.SeekStart)
	}
	e.snapshot.Write(payload)
}

// WriteSessionStart appends the session_start trajectory event, recording
// the fields codefuse/core/context_engine.py::write_session_start captures:
// agent name, model, tool list, working directory, and temperature.
func (e *Engine) WriteSessionStart(agentName string, tools []string, temperature float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.writeTrajectory(models.EventSessionStart, map[string]interface{}{
		"agent":       agentName,
		"model":       e.model,
		"tools":       tools,
		"workdir":     e.workdir,
		"temperature": temperature,
	})
}

// SessionSummary is the payload WriteSessionSummary emits: the metrics
// rollup, the final assistant response, and git-diff info if available.
type SessionSummary struct {
	SessionID     string
	Usage         metrics.Usage
	FinalResponse *models.Message
	DiffStats     []envprobe.DiffStat
	DiffText      string
}

// WriteSessionSummary appends the session_summary trajectory event,
// combining the metrics collector rollup with the latched final response
// and, if collected, the git-diff info — grounded on
// codefuse/core/context_engine.py::write_session_summary.
func (e *Engine) WriteSessionSummary(collector *metrics.Collector, diff *envprobe.DiffInfo) SessionSummary {
	e.mu.Lock()
	final := e.finalResponse
	e.mu.Unlock()

	summary := SessionSummary{SessionID: e.sessionID, FinalResponse: final}
	if collector != nil {
		summary.Usage = collector.SessionUsage()
	}
	if diff != nil {
		summary.DiffStats = diff.Stats
		summary.DiffText = diff.Text
	}

	finalText := ""
	if final != nil {
		finalText = final.Content
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.writeTrajectory(models.EventSessionSummary, map[string]interface{}{
		"session_id":     summary.SessionID,
		"final_response": finalText,
		"diff_stats":     summary.DiffStats,
		"diff_text":      summary.DiffText,
		"usage": map[string]int64{
			"input":       summary.Usage.InputTokens,
			"output":      summary.Usage.OutputTokens,
			"cache_read":  summary.Usage.CacheReadTokens,
			"cache_write": summary.Usage.CacheWriteTokens,
		},
		"has_diff": diff != nil,
	})
	return summary
}
