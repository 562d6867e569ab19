package files

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"agentcore/internal/tracker"
)

func TestResolverRejectsRelativePath(t *testing.T) {
	r := Resolver{Root: t.TempDir()}
	if _, err := r.Resolve("relative/path.txt"); err == nil {
		t.Fatal("expected relative path to be rejected")
	}
}

func TestResolverRejectsEscape(t *testing.T) {
	dir := t.TempDir()
	r := Resolver{Root: dir}
	if _, err := r.Resolve(filepath.Join(filepath.Dir(dir), "outside")); err == nil {
		t.Fatal("expected escape to be rejected")
	}
}

func TestReadMarksTracker(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}
	rt := tracker.New()
	tool := NewReadTool(Config{Workspace: dir}, rt)

	params, _ := json.Marshal(map[string]string{"path": path})
	res, err := tool.Execute(context.Background(), params)
	if err != nil || res.IsError {
		t.Fatalf("unexpected error result: %v %+v", err, res)
	}
	if !rt.IsRead(path) {
		t.Fatal("expected read to mark tracker")
	}
}

func TestEditRequiresPriorRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}
	rt := tracker.New()
	edit := NewEditTool(Config{Workspace: dir}, rt)

	params, _ := json.Marshal(map[string]string{"path": path, "old_string": "hello", "new_string": "bye"})
	res, err := edit.Execute(context.Background(), params)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatal("expected edit without prior read to fail")
	}
}

func TestEditSucceedsAfterReadAndRejectsAmbiguousMatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("foo foo bar"), 0o644); err != nil {
		t.Fatal(err)
	}
	rt := tracker.New()
	read := NewReadTool(Config{Workspace: dir}, rt)
	edit := NewEditTool(Config{Workspace: dir}, rt)

	readParams, _ := json.Marshal(map[string]string{"path": path})
	if _, err := read.Execute(context.Background(), readParams); err != nil {
		t.Fatal(err)
	}

	ambiguous, _ := json.Marshal(map[string]string{"path": path, "old_string": "foo", "new_string": "baz"})
	res, err := edit.Execute(context.Background(), ambiguous)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatal("expected ambiguous match to be rejected")
	}

	unique, _ := json.Marshal(map[string]string{"path": path, "old_string": "bar", "new_string": "baz"})
	res, err = edit.Execute(context.Background(), unique)
	if err != nil || res.IsError {
		t.Fatalf("expected unique edit to succeed, got %v %+v", err, res)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "foo foo baz" {
		t.Fatalf("unexpected file content: %q", string(data))
	}
}

func TestEditReplaceAllReplacesEveryOccurrence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("foo foo bar"), 0o644); err != nil {
		t.Fatal(err)
	}
	rt := tracker.New()
	read := NewReadTool(Config{Workspace: dir}, rt)
	edit := NewEditTool(Config{Workspace: dir}, rt)

	readParams, _ := json.Marshal(map[string]string{"path": path})
	if _, err := read.Execute(context.Background(), readParams); err != nil {
		t.Fatal(err)
	}

	params, _ := json.Marshal(map[string]interface{}{"path": path, "old_string": "foo", "new_string": "baz", "replace_all": true})
	res, err := edit.Execute(context.Background(), params)
	if err != nil || res.IsError {
		t.Fatalf("expected replace_all edit to succeed, got %v %+v", err, res)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "baz baz bar" {
		t.Fatalf("unexpected file content: %q", string(data))
	}
}

func TestWriteThenEditWithoutExplicitRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "new.txt")
	rt := tracker.New()
	write := NewWriteTool(Config{Workspace: dir}, rt)
	edit := NewEditTool(Config{Workspace: dir}, rt)

	writeParams, _ := json.Marshal(map[string]string{"path": path, "content": "alpha beta"})
	if res, err := write.Execute(context.Background(), writeParams); err != nil || res.IsError {
		t.Fatalf("write failed: %v %+v", err, res)
	}

	editParams, _ := json.Marshal(map[string]string{"path": path, "old_string": "beta", "new_string": "gamma"})
	res, err := edit.Execute(context.Background(), editParams)
	if err != nil || res.IsError {
		t.Fatalf("expected edit after write to succeed without a separate read, got %v %+v", err, res)
	}
}

func TestReadRejectsOversizeWholeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.txt")
	big := make([]byte, maxFileSizeBytes+1)
	for i := range big {
		big[i] = 'a'
	}
	if err := os.WriteFile(path, big, 0o644); err != nil {
		t.Fatal(err)
	}
	rt := tracker.New()
	read := NewReadTool(Config{Workspace: dir}, rt)

	params, _ := json.Marshal(map[string]string{"path": path})
	res, err := read.Execute(context.Background(), params)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatal("expected oversize whole-file read with no range to be rejected")
	}
}
