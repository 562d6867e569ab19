package search

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"agentcore/internal/tools/files"
)

func TestGlobDefaultsToWorkspaceRootAndFindsFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a"), 0o644); err != nil {
		t.Fatal(err)
	}
	tool := NewGlobTool(files.Config{Workspace: dir})

	params, _ := json.Marshal(map[string]string{"pattern": "*.go"})
	res, err := tool.Execute(context.Background(), params)
	if err != nil || res.IsError {
		t.Fatalf("unexpected error: %v %+v", err, res)
	}
	if res.Display != "Found 1 file(s)" {
		t.Fatalf("unexpected display: %q", res.Display)
	}
}

func TestGlobTruncatesAt100Matches(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 101; i++ {
		name := filepath.Join(dir, "f"+string(rune('a'+i%26))+string(rune('0'+i/26))+".txt")
		if err := os.WriteFile(name, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	tool := NewGlobTool(files.Config{Workspace: dir})

	params, _ := json.Marshal(map[string]string{"pattern": "*.txt"})
	res, err := tool.Execute(context.Background(), params)
	if err != nil || res.IsError {
		t.Fatalf("unexpected error: %v %+v", err, res)
	}

	var decoded struct {
		Count     int  `json:"count"`
		Truncated bool `json:"truncated"`
	}
	if err := json.Unmarshal([]byte(res.Content), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Count != 100 || !decoded.Truncated {
		t.Fatalf("expected truncation to 100, got count=%d truncated=%v", decoded.Count, decoded.Truncated)
	}
}

func TestGlobIgnoresVendorAndGitDirs(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "vendor", "pkg"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "vendor", "pkg", "v.go"), []byte("package pkg"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main"), 0o644); err != nil {
		t.Fatal(err)
	}
	tool := NewGlobTool(files.Config{Workspace: dir})

	params, _ := json.Marshal(map[string]string{"pattern": "**/*.go"})
	res, err := tool.Execute(context.Background(), params)
	if err != nil || res.IsError {
		t.Fatalf("unexpected error: %v %+v", err, res)
	}

	var decoded struct {
		Matches []string `json:"matches"`
	}
	if err := json.Unmarshal([]byte(res.Content), &decoded); err != nil {
		t.Fatal(err)
	}
	for _, m := range decoded.Matches {
		if m == filepath.Join("vendor", "pkg", "v.go") {
			t.Fatalf("expected vendor/ to be ignored, got match %q", m)
		}
	}
	if len(decoded.Matches) != 1 || decoded.Matches[0] != "main.go" {
		t.Fatalf("unexpected matches: %+v", decoded.Matches)
	}
}

func TestGlobRejectsRelativePathParam(t *testing.T) {
	dir := t.TempDir()
	tool := NewGlobTool(files.Config{Workspace: dir})
	params, _ := json.Marshal(map[string]string{"pattern": "*.go", "path": "relative/dir"})
	res, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatal("expected relative path param to be rejected")
	}
}
