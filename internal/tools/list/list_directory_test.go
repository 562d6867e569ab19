package list

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"agentcore/internal/tools/files"
)

func TestListDirectoryDefaultsToWorkspaceRootAndSkipsIgnoredDirs(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "node_modules", "pkg"), 0o755); err != nil {
		t.Fatal(err)
	}
	tool := NewListDirectoryTool(files.Config{Workspace: dir})

	params, _ := json.Marshal(map[string]string{})
	res, err := tool.Execute(context.Background(), params)
	if err != nil || res.IsError {
		t.Fatalf("unexpected error: %v %+v", err, res)
	}
	if !strings.Contains(res.Content, "main.go") {
		t.Fatalf("expected tree to include main.go, got %s", res.Content)
	}
	if strings.Contains(res.Content, "node_modules") {
		t.Fatalf("expected node_modules to be skipped, got %s", res.Content)
	}
}

func TestListDirectoryRejectsRelativePath(t *testing.T) {
	dir := t.TempDir()
	tool := NewListDirectoryTool(files.Config{Workspace: dir})

	params, _ := json.Marshal(map[string]string{"path": "relative"})
	res, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatal("expected relative path to be rejected")
	}
}
