// Package search implements the grep and glob workspace search tools.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"agentcore/internal/agent"
	"agentcore/internal/tools/files"
)

// maxGrepOutput caps how much ripgrep output is returned to the LLM so a
// broad pattern can't flood the context window, per spec.md §4.4.
const maxGrepOutput = 20000

// GrepTool searches file contents within the workspace using ripgrep.
// Modes: content (-A/-B/-C/-n), files_with_matches (default, sorted by
// mtime descending), count. Grounded on spec.md §4.4's grep contract.
type GrepTool struct {
	resolver files.Resolver
	root     string
}

// NewGrepTool creates a grep tool scoped to the workspace.
func NewGrepTool(cfg files.Config) *GrepTool {
	return &GrepTool{resolver: files.Resolver{Root: cfg.Workspace}, root: cfg.Workspace}
}

func (t *GrepTool) Name() string { return "grep" }

func (t *GrepTool) Description() string {
	return "Search file contents in the workspace for a regex pattern using ripgrep, in content/files_with_matches/count modes."
}

func (t *GrepTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"pattern": map[string]interface{}{
				"type":        "string",
				"description": "Regex pattern to search for.",
			},
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Absolute directory or file to search, within the workspace root (default: workspace root).",
			},
			"mode": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"content", "files_with_matches", "count"},
				"description": "Output mode. files_with_matches (default) lists matching file paths sorted by mtime descending.",
			},
			"glob": map[string]interface{}{
				"type":        "string",
				"description": "Restrict to files matching this glob (e.g. '*.go').",
			},
			"type": map[string]interface{}{
				"type":        "string",
				"description": "Restrict to a ripgrep file type (e.g. 'go', 'ts', 'py').",
			},
			"case_insensitive": map[string]interface{}{
				"type":        "boolean",
				"description": "Match case-insensitively.",
			},
			"multiline": map[string]interface{}{
				"type":        "boolean",
				"description": "Allow the pattern to match across line boundaries.",
			},
			"head_limit": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum number of results to return.",
			},
			"a": map[string]interface{}{
				"type":        "integer",
				"description": "Lines of context after each match (content mode only).",
			},
			"b": map[string]interface{}{
				"type":        "integer",
				"description": "Lines of context before each match (content mode only).",
			},
			"c": map[string]interface{}{
				"type":        "integer",
				"description": "Lines of context before and after each match (content mode only). Mutually exclusive with a/b.",
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

type grepInput struct {
	Pattern         string `json:"pattern"`
	Path            string `json:"path"`
	Mode            string `json:"mode"`
	Glob            string `json:"glob"`
	Type            string `json:"type"`
	CaseInsensitive bool   `json:"case_insensitive"`
	Multiline       bool   `json:"multiline"`
	HeadLimit       int    `json:"head_limit"`
	A               int    `json:"a"`
	B               int    `json:"b"`
	C               int    `json:"c"`
}

func (in grepInput) validate() error {
	if strings.TrimSpace(in.Pattern) == "" {
		return fmt.Errorf("pattern is required")
	}
	switch in.Mode {
	case "", "content", "files_with_matches", "count":
	default:
		return fmt.Errorf("unknown mode %q (want content, files_with_matches, or count)", in.Mode)
	}
	hasContextFlags := in.A > 0 || in.B > 0 || in.C > 0
	if hasContextFlags && in.Mode != "" && in.Mode != "content" {
		return fmt.Errorf("-A/-B/-C context flags require mode=content")
	}
	if in.C > 0 && (in.A > 0 || in.B > 0) {
		return fmt.Errorf("-C is mutually exclusive with -A/-B")
	}
	return nil
}

func (t *GrepTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input grepInput
	if err := json.Unmarshal(params, &input); err != nil {
		return errResult(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if err := input.validate(); err != nil {
		return errResult(err.Error()), nil
	}

	searchPath := input.Path
	if searchPath == "" {
		searchPath = t.root
	}
	resolved, err := t.resolver.Resolve(searchPath)
	if err != nil {
		return errResult(err.Error()), nil
	}

	mode := input.Mode
	if mode == "" {
		mode = "files_with_matches"
	}

	rgArgs := []string{"--color=never"}
	switch mode {
	case "files_with_matches":
		rgArgs = append(rgArgs, "-l", "--sortr=modified")
	case "count":
		rgArgs = append(rgArgs, "-c")
	case "content":
		rgArgs = append(rgArgs, "-n", "--no-heading")
		if input.C > 0 {
			rgArgs = append(rgArgs, "-C", strconv.Itoa(input.C))
		} else {
			if input.A > 0 {
				rgArgs = append(rgArgs, "-A", strconv.Itoa(input.A))
			}
			if input.B > 0 {
				rgArgs = append(rgArgs, "-B", strconv.Itoa(input.B))
			}
		}
	}
	if input.CaseInsensitive {
		rgArgs = append(rgArgs, "-i")
	}
	if input.Multiline {
		rgArgs = append(rgArgs, "-U", "--multiline-dotall")
	}
	if input.Glob != "" {
		rgArgs = append(rgArgs, "--glob", input.Glob)
	}
	if input.Type != "" {
		rgArgs = append(rgArgs, "-t", input.Type)
	}
	if input.HeadLimit > 0 {
		rgArgs = append(rgArgs, "-m", strconv.Itoa(input.HeadLimit))
	}
	rgArgs = append(rgArgs, input.Pattern, resolved)

	cmd := exec.CommandContext(ctx, "rg", rgArgs...)
	out, runErr := cmd.CombinedOutput()
	result := strings.TrimSpace(string(out))

	if runErr != nil {
		// ripgrep exits 1 for "no matches" — not an error. Anything else is a
		// genuine execution failure (missing binary, bad flags, I/O error).
		if exitErr, ok := runErr.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return &agent.ToolResult{Content: "No matches found.", Display: "No matches found"}, nil
		}
		return errResult(fmt.Sprintf("grep execution failed: %v\n%s", runErr, result)), nil
	}

	if input.HeadLimit > 0 && mode != "content" {
		result = limitLines(result, input.HeadLimit)
	}

	if result == "" {
		return &agent.ToolResult{Content: "No matches found.", Display: "No matches found"}, nil
	}

	truncated := false
	if len(result) > maxGrepOutput {
		result = result[:maxGrepOutput] + "\n\n... (truncated, narrow your search)"
		truncated = true
	}
	display := fmt.Sprintf("Found matches (%s)", mode)
	if truncated {
		display += ", truncated"
	}
	return &agent.ToolResult{Content: result, Display: display}, nil
}

func limitLines(s string, limit int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= limit {
		return s
	}
	return strings.Join(lines[:limit], "\n")
}

func errResult(message string) *agent.ToolResult {
	return &agent.ToolResult{Content: message, Display: "❌ " + message, IsError: true}
}
