package ctxengine

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"agentcore/pkg/models"
)

// snapshotFile is the on-disk shape of llm_messages.json.
type snapshotFile struct {
	Messages []json.RawMessage `json:"messages"`
}

// rawMessage mirrors models.Message but keeps Role as a bare string so an
// unrecognized role can be detected and skipped rather than rejected by
// json.Unmarshal's strict enum-less decoding.
type rawMessage struct {
	Role       string            `json:"role"`
	Content    string            `json:"content,omitempty"`
	Name       string            `json:"name,omitempty"`
	ToolCalls  []models.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
}

// LoadConversationHistory reconstructs a message ledger from a snapshot
// previously written by Engine.SetWriters' snapshot sink. Leading
// role=="system" entries are dropped (the caller supplies a fresh system
// prompt). An unknown role is skipped with a logged warning rather than
// aborting the whole resume. Any JSON-shape failure or a missing
// "messages" key returns (nil, false) so the caller can fall back to a
// fresh session — it never panics.
func LoadConversationHistory(r io.Reader, logger *slog.Logger) ([]models.Message, bool) {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := io.ReadAll(r)
	if err != nil {
		logger.Warn("resume: failed to read snapshot", "error", err)
		return nil, false
	}

	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		logger.Warn("resume: snapshot is not valid JSON", "error", err)
		return nil, false
	}
	if snap.Messages == nil {
		logger.Warn("resume: snapshot missing \"messages\" key")
		return nil, false
	}

	var out []models.Message
	skippedLeadingSystem := true
	for _, raw := range snap.Messages {
		var rm rawMessage
		if err := json.Unmarshal(raw, &rm); err != nil {
			logger.Warn("resume: skipping unparseable message", "error", err)
			continue
		}

		role := models.Role(rm.Role)
		if skippedLeadingSystem && role == models.RoleSystem {
			continue
		}
		skippedLeadingSystem = false

		if !role.IsValid() {
			logger.Warn("resume: skipping message with unknown role", "role", rm.Role)
			continue
		}

		msg := models.Message{
			Role:       role,
			Content:    rm.Content,
			Name:       rm.Name,
			ToolCallID: rm.ToolCallID,
		}
		if role == models.RoleAssistant {
			msg.ToolCalls = rm.ToolCalls
		}
		out = append(out, msg)
	}

	return out, true
}

// Resume replaces this engine's in-memory ledger with history loaded from
// r, returning an error (and leaving the engine untouched) only if the
// snapshot itself couldn't be read as valid JSON — callers should treat
// that as "start fresh", per spec.md §4.2.
func (e *Engine) Resume(r io.Reader, logger *slog.Logger) error {
	history, ok := LoadConversationHistory(r, logger)
	if !ok {
		return fmt.Errorf("resume: snapshot could not be loaded, starting fresh session")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages = history
	return nil
}
