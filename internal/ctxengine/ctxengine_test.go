package ctxengine

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"agentcore/internal/metrics"
	"agentcore/pkg/models"
)

func TestSessionIDFormat(t *testing.T) {
	e := New("/tmp", "claude-sonnet-4-5", "system")
	if !strings.HasPrefix(e.SessionID(), "session_") {
		t.Fatalf("unexpected session id: %s", e.SessionID())
	}
}

func TestPromptIDIncrementsAndIterationResets(t *testing.T) {
	e := New("/tmp", "m", "s")
	e.AddUserMessage("hi")
	if e.PromptID() != "prompt_001" {
		t.Fatalf("unexpected prompt id: %s", e.PromptID())
	}
	e.AddAssistantMessage(models.Message{Role: models.RoleAssistant, Content: "ok"}, metrics.Usage{})
	if e.Iteration() != 1 {
		t.Fatalf("expected iteration 1, got %d", e.Iteration())
	}
	e.AddUserMessage("second turn")
	if e.PromptID() != "prompt_002" || e.Iteration() != 0 {
		t.Fatalf("expected reset iteration on new prompt, got prompt=%s iter=%d", e.PromptID(), e.Iteration())
	}
}

func TestFinalResponseLatchesOnNoToolCalls(t *testing.T) {
	e := New("/tmp", "m", "s")
	e.AddUserMessage("hi")
	e.AddAssistantMessage(models.Message{Role: models.RoleAssistant, ToolCalls: []models.ToolCall{{ID: "1", Name: "bash"}}}, metrics.Usage{})
	if e.FinalResponse() != nil {
		t.Fatal("expected no final response while tool calls are pending")
	}
	e.AddToolResult("1", "bash", "ok", "✓ ok", false, time.Millisecond)
	e.AddAssistantMessage(models.Message{Role: models.RoleAssistant, Content: "done"}, metrics.Usage{})
	if e.FinalResponse() == nil || e.FinalResponse().Content != "done" {
		t.Fatal("expected final response to latch on the text-only message")
	}
}

func TestSanitizeInvalidToolCallPreservesInvariant(t *testing.T) {
	e := New("/tmp", "m", "s")
	e.AddUserMessage("hi")
	e.AddAssistantMessage(models.Message{
		Role:      models.RoleAssistant,
		ToolCalls: []models.ToolCall{{ID: "bad1", Name: "edit_file", Input: json.RawMessage(`{not json`)}},
	}, metrics.Usage{})

	msgs := e.GetMessagesForLLM()
	assistantIdx := len(msgs) - 1
	if err := e.SanitizeInvalidToolCall(assistantIdx, "bad1", "edit_file", "malformed JSON arguments"); err != nil {
		t.Fatal(err)
	}

	msgs = e.GetMessagesForLLM()
	sanitized := msgs[assistantIdx]
	if len(sanitized.ToolCalls) != 0 {
		t.Fatal("expected tool_calls to be cleared")
	}
	if !strings.Contains(sanitized.Content, "Tool calls attempted:\n- Tool: edit_file\n  ID: bad1\n  Arguments: <Invalid JSON format>") {
		t.Fatalf("expected sanitized content to record the attempted call, got %q", sanitized.Content)
	}
	last := msgs[len(msgs)-1]
	if last.Role != models.RoleUser {
		t.Fatalf("expected trailing retry message to be from user, got %s", last.Role)
	}
	if !strings.Contains(last.Content, "Tool 'edit_file' (ID: bad1) failed with error: malformed JSON arguments") {
		t.Fatalf("expected retry message to name the tool/id/error, got %q", last.Content)
	}
}

func TestSnapshotRoundTripThroughResume(t *testing.T) {
	e := New("/tmp", "m", "s")
	var buf bytes.Buffer
	e.SetWriters(nil, &buf)
	e.AddUserMessage("hello")
	e.AddAssistantMessage(models.Message{Role: models.RoleAssistant, Content: "hi there"}, metrics.Usage{})

	e2 := New("/tmp", "m", "s")
	if err := e2.Resume(bytes.NewReader(buf.Bytes()), nil); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	msgs := e2.GetMessagesForLLM()
	if len(msgs) != 2 || msgs[0].Content != "hello" || msgs[1].Content != "hi there" {
		t.Fatalf("unexpected resumed messages: %+v", msgs)
	}
}

func TestResumeFallsBackOnInvalidJSON(t *testing.T) {
	e := New("/tmp", "m", "s")
	err := e.Resume(strings.NewReader("not json"), nil)
	if err == nil {
		t.Fatal("expected resume to fail on invalid JSON")
	}
}
