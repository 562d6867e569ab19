package bash

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession(Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestExecuteSuccessWithOutput(t *testing.T) {
	s := newTestSession(t)
	res := s.Execute(context.Background(), "echo hello", true, time.Second)
	if res.IsError {
		t.Fatalf("expected success, got error result: %+v", res)
	}
	if !strings.Contains(res.Content, "hello") {
		t.Fatalf("expected output to contain hello, got %q", res.Content)
	}
	if res.Display != "✓ Command executed (exit code: 0)" {
		t.Fatalf("unexpected display string: %q", res.Display)
	}
}

func TestExecuteNoOutput(t *testing.T) {
	s := newTestSession(t)
	res := s.Execute(context.Background(), "true", true, time.Second)
	if res.IsError {
		t.Fatalf("expected success, got %+v", res)
	}
	if !strings.Contains(res.Content, "no output") {
		t.Fatalf("expected no-output message, got %q", res.Content)
	}
}

func TestExecuteNonZeroExit(t *testing.T) {
	s := newTestSession(t)
	res := s.Execute(context.Background(), "exit 3", true, time.Second)
	if !res.IsError {
		t.Fatalf("expected error result for nonzero exit, got %+v", res)
	}
	if !strings.Contains(res.Content, "exit code 3") {
		t.Fatalf("expected exit code in message, got %q", res.Content)
	}
	if res.Display != "❌ Command failed (exit code: 3)" {
		t.Fatalf("unexpected display string: %q", res.Display)
	}
}

func TestExecuteRejectsDisallowedPattern(t *testing.T) {
	s, err := NewSession(Config{Workspace: t.TempDir(), Disallowed: []string{"rm -rf"}})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	res := s.Execute(context.Background(), "rm -rf /tmp/whatever", true, time.Second)
	if !res.IsError || !strings.Contains(res.Content, "rejected by policy") {
		t.Fatalf("expected policy rejection, got %+v", res)
	}
}

func TestCWDPersistsAcrossCommands(t *testing.T) {
	s := newTestSession(t)
	if res := s.Execute(context.Background(), "mkdir sub", true, time.Second); res.IsError {
		t.Fatalf("unexpected error: %+v", res)
	}
	res := s.Execute(context.Background(), "cd sub", true, time.Second)
	if res.IsError {
		t.Fatalf("unexpected error: %+v", res)
	}
	if !strings.HasSuffix(s.CWD(), "sub") {
		t.Fatalf("expected cwd to track cd into sub, got %q", s.CWD())
	}
}

func TestToolExecuteRoundTrip(t *testing.T) {
	s := newTestSession(t)
	tool := NewTool(s, time.Second)
	params, _ := json.Marshal(map[string]string{"command": "echo roundtrip"})
	res, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError || !strings.Contains(res.Content, "roundtrip") {
		t.Fatalf("unexpected result: %+v", res)
	}
}
