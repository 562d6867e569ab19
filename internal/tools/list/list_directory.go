// Package list implements the list_directory workspace tool: a recursive
// directory tree renderer with default ignore patterns and an output
// character budget.
package list

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"agentcore/internal/agent"
	"agentcore/internal/tools/files"
)

// maxOutputChars bounds the rendered tree so a large workspace can't flood
// the LLM's context window; rendering stops and marks the result truncated
// once the budget is exhausted.
const maxOutputChars = 40000

// defaultIgnore lists directory names skipped during the walk unless the
// caller explicitly targets them by path.
var defaultIgnore = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"__pycache__":  true,
	"dist":         true,
	"build":        true,
	".idea":        true,
	".vscode":      true,
}

// ListDirectoryTool renders a directory tree within the workspace.
type ListDirectoryTool struct {
	resolver files.Resolver
	root     string
}

// NewListDirectoryTool creates a list_directory tool scoped to the workspace.
func NewListDirectoryTool(cfg files.Config) *ListDirectoryTool {
	return &ListDirectoryTool{resolver: files.Resolver{Root: cfg.Workspace}, root: cfg.Workspace}
}

func (t *ListDirectoryTool) Name() string { return "list_directory" }

func (t *ListDirectoryTool) Description() string {
	return "Render a recursive directory tree within the workspace, skipping common noise directories."
}

func (t *ListDirectoryTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Absolute directory to list, within the workspace root (default: workspace root).",
			},
			"max_depth": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum recursion depth (default: 6).",
			},
		},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *ListDirectoryTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	_ = ctx
	var input struct {
		Path     string `json:"path"`
		MaxDepth int    `json:"max_depth"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	target := input.Path
	if target == "" {
		target = t.root
	}
	resolved, err := t.resolver.Resolve(target)
	if err != nil {
		return toolError(err.Error()), nil
	}
	maxDepth := input.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 6
	}

	var b strings.Builder
	truncated := false
	walk(resolved, "", 0, maxDepth, &b, &truncated)

	result := map[string]interface{}{
		"path":      target,
		"tree":      b.String(),
		"truncated": truncated,
	}
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	display := "Listed directory"
	if truncated {
		display += " (truncated)"
	}
	return &agent.ToolResult{Content: string(payload), Display: display}, nil
}

func walk(dir, prefix string, depth, maxDepth int, b *strings.Builder, truncated *bool) {
	if *truncated || depth > maxDepth {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return entries[i].Name() < entries[j].Name()
	})

	for _, e := range entries {
		if b.Len() >= maxOutputChars {
			*truncated = true
			return
		}
		name := e.Name()
		if e.IsDir() && defaultIgnore[name] {
			continue
		}
		line := prefix + name
		if e.IsDir() {
			line += "/"
		}
		line += "\n"
		if b.Len()+len(line) > maxOutputChars {
			*truncated = true
			return
		}
		b.WriteString(line)
		if e.IsDir() {
			walk(filepath.Join(dir, name), prefix+"  ", depth+1, maxDepth, b, truncated)
		}
	}
}

func toolError(message string) *agent.ToolResult {
	return &agent.ToolResult{Content: message, Display: "❌ " + message, IsError: true}
}
