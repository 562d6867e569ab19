package search

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"agentcore/internal/tools/files"
)

func writeGrepFixture(t *testing.T, dir string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n\nfunc Foo() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.go"), []byte("package b\n\nfunc Bar() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestGrepFilesWithMatchesIsDefaultMode(t *testing.T) {
	dir := t.TempDir()
	writeGrepFixture(t, dir)
	tool := NewGrepTool(files.Config{Workspace: dir})

	params, _ := json.Marshal(map[string]string{"pattern": "^func"})
	res, err := tool.Execute(context.Background(), params)
	if err != nil || res.IsError {
		t.Fatalf("unexpected error: %v %+v", err, res)
	}
}

func TestGrepNoMatchesIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	writeGrepFixture(t, dir)
	tool := NewGrepTool(files.Config{Workspace: dir})

	params, _ := json.Marshal(map[string]string{"pattern": "nonexistentpattern12345"})
	res, err := tool.Execute(context.Background(), params)
	if err != nil || res.IsError {
		t.Fatalf("expected no-match to be a clean (non-error) result, got %v %+v", err, res)
	}
	if res.Display != "No matches found" {
		t.Fatalf("unexpected display: %q", res.Display)
	}
}

func TestGrepRejectsCAndAMutuallyExclusive(t *testing.T) {
	dir := t.TempDir()
	tool := NewGrepTool(files.Config{Workspace: dir})

	params, _ := json.Marshal(map[string]interface{}{"pattern": "x", "a": 2, "c": 3})
	res, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatal("expected -C and -A combination to be rejected")
	}
}

func TestGrepRejectsContextFlagsOutsideContentMode(t *testing.T) {
	dir := t.TempDir()
	tool := NewGrepTool(files.Config{Workspace: dir})

	params, _ := json.Marshal(map[string]interface{}{"pattern": "x", "mode": "count", "a": 2})
	res, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatal("expected context flags with mode=count to be rejected")
	}
}

func TestGrepRejectsUnknownMode(t *testing.T) {
	dir := t.TempDir()
	tool := NewGrepTool(files.Config{Workspace: dir})

	params, _ := json.Marshal(map[string]string{"pattern": "x", "mode": "bogus"})
	res, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatal("expected unknown mode to be rejected")
	}
}

func TestGrepContentModeFindsMatches(t *testing.T) {
	dir := t.TempDir()
	writeGrepFixture(t, dir)
	tool := NewGrepTool(files.Config{Workspace: dir})

	params, _ := json.Marshal(map[string]string{"pattern": "func Foo", "mode": "content"})
	res, err := tool.Execute(context.Background(), params)
	if err != nil || res.IsError {
		t.Fatalf("unexpected error: %v %+v", err, res)
	}
}
