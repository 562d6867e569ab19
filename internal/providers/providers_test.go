package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	retry "agentcore/internal/retryutil"
	"agentcore/pkg/models"
)

func TestClassifyErrorRateLimit(t *testing.T) {
	err := NewError("anthropic", "claude-sonnet-4-5", errors.New("429 too many requests"))
	if !err.Reason.IsRetryable() {
		t.Fatalf("expected rate limit to be retryable, got %s", err.Reason)
	}
}

func TestClassifyErrorAuthenticationNotRetryable(t *testing.T) {
	err := NewError("openai", "gpt-4o", errors.New("401 invalid api key"))
	if err.Reason.IsRetryable() {
		t.Fatal("expected authentication errors to be non-retryable")
	}
}

func TestWithStatusReclassifies(t *testing.T) {
	err := NewError("anthropic", "m", errors.New("boom")).WithStatus(503)
	if err.Reason != ReasonServerError || !err.Reason.IsRetryable() {
		t.Fatalf("expected 503 to classify as retryable server_error, got %s", err.Reason)
	}
}

func TestAsProviderErrorUnwraps(t *testing.T) {
	err := NewError("openai", "m", errors.New("x"))
	if pe, ok := AsProviderError(err); !ok || pe.Provider != "openai" {
		t.Fatalf("expected to unwrap provider error, got %+v ok=%v", pe, ok)
	}
	if _, ok := AsProviderError(errors.New("plain")); ok {
		t.Fatal("expected plain error to not unwrap as provider error")
	}
}

func TestRetryPolicyRetriesThenSucceeds(t *testing.T) {
	policy := RetryPolicy{
		Config: retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Factor: 1},
		IsRetryable: func(err error) bool {
			pe, ok := AsProviderError(err)
			return ok && pe.Reason.IsRetryable()
		},
	}

	attempts := 0
	err := policy.Do(context.Background(), func(attempt int) (time.Duration, error) {
		attempts++
		if attempt < 3 {
			return 0, NewError("anthropic", "m", errors.New("503 service unavailable"))
		}
		return 0, nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryPolicyStopsOnNonRetryable(t *testing.T) {
	policy := DefaultRetryPolicy()
	attempts := 0
	err := policy.Do(context.Background(), func(attempt int) (time.Duration, error) {
		attempts++
		return 0, NewError("openai", "m", errors.New("401 unauthorized"))
	})
	if err == nil {
		t.Fatal("expected non-retryable error to propagate")
	}
	if attempts != 1 {
		t.Fatalf("expected exactly one attempt for a non-retryable error, got %d", attempts)
	}
}

func TestConvertMessagesMarksLastToolResultCacheable(t *testing.T) {
	msgs := []models.Message{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, ToolCalls: []models.ToolCall{{ID: "1", Name: "bash", Input: []byte(`{"command":"ls"}`)}}},
		{Role: models.RoleTool, ToolCallID: "1", Content: "file.txt"},
	}
	converted, err := convertMessages(msgs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(converted) != 3 {
		t.Fatalf("expected user, assistant and tool-result messages, got %d", len(converted))
	}
	last := converted[2].Content
	if len(last) == 0 || last[len(last)-1].OfToolResult == nil || last[len(last)-1].OfToolResult.CacheControl.TTL != cacheControl.TTL {
		t.Fatal("expected the last tool-result block to carry the ephemeral cache_control marker")
	}
}

func TestConvertOpenAIMessagesIncludesToolRole(t *testing.T) {
	msgs := []models.Message{
		{Role: models.RoleTool, ToolCallID: "1", Content: "result"},
	}
	converted := convertOpenAIMessages(msgs, "be helpful")
	if len(converted) != 2 {
		t.Fatalf("expected system + tool message, got %d", len(converted))
	}
	if converted[1].ToolCallID != "1" {
		t.Fatalf("expected tool call id to carry through, got %q", converted[1].ToolCallID)
	}
}
