package toolexec

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"agentcore/internal/agent"
	"agentcore/pkg/models"
)

type fakeTool struct {
	name    string
	execute func(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error)
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "fake" }
func (f *fakeTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object"}`)
}
func (f *fakeTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	return f.execute(ctx, params)
}

func newRegistryWithEcho() *agent.ToolRegistry {
	r := agent.NewToolRegistry()
	r.Register(&fakeTool{name: "echo", execute: func(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
		return &agent.ToolResult{Content: string(params)}, nil
	}})
	return r
}

func TestExecuteToolCallNotFound(t *testing.T) {
	e := New(agent.NewToolRegistry(), nil, nil, Policy{})
	result, malformed, _ := e.ExecuteToolCall(context.Background(), models.ToolCall{ID: "1", Name: "missing", Input: json.RawMessage(`{}`)})
	if malformed {
		t.Fatal("not-found should not be malformed")
	}
	if !result.IsError {
		t.Fatal("expected error result for missing tool")
	}
}

func TestExecuteToolCallMalformedJSON(t *testing.T) {
	e := New(newRegistryWithEcho(), nil, nil, Policy{})
	_, malformed, reason := e.ExecuteToolCall(context.Background(), models.ToolCall{ID: "1", Name: "echo", Input: json.RawMessage(`{not json`)})
	if !malformed {
		t.Fatal("expected malformed arguments to be flagged")
	}
	if reason == "" {
		t.Fatal("expected a reason for malformed arguments")
	}
}

func TestExecuteToolCallSuccess(t *testing.T) {
	e := New(newRegistryWithEcho(), nil, nil, Policy{})
	result, malformed, _ := e.ExecuteToolCall(context.Background(), models.ToolCall{ID: "1", Name: "echo", Input: json.RawMessage(`{"a":1}`)})
	if malformed || result.IsError {
		t.Fatalf("unexpected failure: malformed=%v result=%+v", malformed, result)
	}
	if result.Content != `{"a":1}` {
		t.Fatalf("unexpected echoed content: %s", result.Content)
	}
}

func TestExecuteToolCallRequiresConfirmationDeniesByDefault(t *testing.T) {
	e := New(newRegistryWithEcho(), nil, nil, Policy{RequireConfirmation: map[string]bool{"echo": true}})
	result, malformed, _ := e.ExecuteToolCall(context.Background(), models.ToolCall{ID: "1", Name: "echo", Input: json.RawMessage(`{}`)})
	if malformed {
		t.Fatal("rejection should not be malformed")
	}
	if !result.IsError {
		t.Fatal("expected rejection when no confirm callback is wired")
	}
}

func TestExecuteToolCallConfirmationGranted(t *testing.T) {
	e := New(newRegistryWithEcho(), nil, func(ctx context.Context, toolName, toolCallID string, args json.RawMessage) bool {
		return true
	}, Policy{RequireConfirmation: map[string]bool{"echo": true}})
	result, _, _ := e.ExecuteToolCall(context.Background(), models.ToolCall{ID: "1", Name: "echo", Input: json.RawMessage(`{}`)})
	if result.IsError {
		t.Fatalf("expected success once confirmed, got %+v", result)
	}
}

func TestExecuteToolCallPropagatesExecutionError(t *testing.T) {
	r := agent.NewToolRegistry()
	r.Register(&fakeTool{name: "boom", execute: func(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
		return nil, errors.New("boom failed")
	}})
	e := New(r, nil, nil, Policy{})
	result, malformed, _ := e.ExecuteToolCall(context.Background(), models.ToolCall{ID: "1", Name: "boom", Input: json.RawMessage(`{}`)})
	if malformed {
		t.Fatal("execution error should not be malformed")
	}
	if !result.IsError {
		t.Fatal("expected error result when tool execution fails")
	}
}

func TestWriteEditBashRequireConfirmationByDefault(t *testing.T) {
	for _, name := range []string{"write_file", "edit_file", "bash"} {
		r := agent.NewToolRegistry()
		r.Register(&fakeTool{name: name, execute: func(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
			return &agent.ToolResult{Content: "ok"}, nil
		}})
		e := New(r, nil, nil, Policy{})
		result, _, _ := e.ExecuteToolCall(context.Background(), models.ToolCall{ID: "1", Name: name, Input: json.RawMessage(`{}`)})
		if !result.IsError {
			t.Fatalf("expected %s to require confirmation by default, got %+v", name, result)
		}
	}
}

func TestLooksLikeFailure(t *testing.T) {
	cases := map[string]bool{
		"Error: file not found": true,
		"❌ denied":              true,
		"all good":              false,
	}
	for content, want := range cases {
		if got := looksLikeFailure(content); got != want {
			t.Errorf("looksLikeFailure(%q) = %v, want %v", content, got, want)
		}
	}
}
