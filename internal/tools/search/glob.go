package search

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"agentcore/internal/agent"
	"agentcore/internal/tools/files"
)

// maxGlobMatches caps the number of paths returned to keep the result
// bounded for a pattern that matches most of the workspace, per spec.md
// §4.4's testable property ("101 files returned, result truncated to 100").
const maxGlobMatches = 100

// defaultIgnoreDirs are VCS/build/cache directories excluded from glob
// results even when the pattern would otherwise match inside them, per
// spec.md §4.4.
var defaultIgnoreDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"__pycache__":  true,
	".cache":       true,
	"dist":         true,
	"build":        true,
	".next":        true,
}

func isIgnoredPath(relPath string) bool {
	for _, part := range strings.Split(relPath, string(filepath.Separator)) {
		if defaultIgnoreDirs[part] {
			return true
		}
	}
	return false
}

// GlobTool finds files in the workspace by a doublestar glob pattern
// (supporting "**" recursive matching), sorted by modification time with
// the most recently modified first.
type GlobTool struct {
	resolver Resolver
	root     string
}

// Resolver is the narrow interface GlobTool needs from files.Resolver.
type Resolver interface {
	Resolve(path string) (string, error)
}

// NewGlobTool creates a glob tool scoped to the workspace.
func NewGlobTool(cfg files.Config) *GlobTool {
	return &GlobTool{resolver: files.Resolver{Root: cfg.Workspace}, root: cfg.Workspace}
}

func (t *GlobTool) Name() string { return "glob" }

func (t *GlobTool) Description() string {
	return "Find files in the workspace matching a glob pattern (supports ** for recursive matching)."
}

func (t *GlobTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"pattern": map[string]interface{}{
				"type":        "string",
				"description": "Glob pattern, e.g. '**/*.go' or 'internal/**/*_test.go'.",
			},
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Absolute base directory to search from, within the workspace root (default: workspace root).",
			},
		},
		"required": []string{"pattern"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *GlobTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	_ = ctx
	var input struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errResult(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Pattern) == "" {
		return errResult("pattern is required"), nil
	}
	base := input.Path
	if base == "" {
		base = t.root
	}
	resolvedBase, err := t.resolver.Resolve(base)
	if err != nil {
		return errResult(err.Error()), nil
	}

	fsys := os.DirFS(resolvedBase)
	matches, err := doublestar.Glob(fsys, input.Pattern)
	if err != nil {
		return errResult(fmt.Sprintf("invalid pattern: %v", err)), nil
	}

	type entry struct {
		path    string
		modTime int64
	}
	entries := make([]entry, 0, len(matches))
	for _, m := range matches {
		if isIgnoredPath(m) {
			continue
		}
		info, err := os.Stat(filepath.Join(resolvedBase, m))
		if err != nil {
			continue
		}
		if info.IsDir() {
			continue
		}
		entries = append(entries, entry{path: m, modTime: info.ModTime().UnixNano()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].modTime > entries[j].modTime })

	truncated := false
	if len(entries) > maxGlobMatches {
		entries = entries[:maxGlobMatches]
		truncated = true
	}

	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.path
	}

	result := map[string]interface{}{
		"matches":   paths,
		"count":     len(paths),
		"truncated": truncated,
	}
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errResult(fmt.Sprintf("encode result: %v", err)), nil
	}
	display := fmt.Sprintf("Found %d file(s)", len(paths))
	if truncated {
		display += " (truncated)"
	}
	return &agent.ToolResult{Content: string(payload), Display: display}, nil
}
