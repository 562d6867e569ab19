package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"agentcore/internal/agent"
	"agentcore/internal/tracker"
)

// maxFileSizeBytes and maxReadTokens are the whole-file-reject guards from
// spec.md §4.4: a file over 256 KiB with no explicit line range is
// rejected outright, and the selected content is rejected if its estimated
// token count (chars/4) exceeds 25,000.
const (
	maxFileSizeBytes = 256 * 1024
	maxReadTokens    = 25000
	defaultMaxLines  = 1000
)

// ReadTool implements the line-range file reader: absolute-path-only,
// encoding-fallback, line-numbered output. Every successful read marks the
// resolved path in the read tracker, satisfying the precondition the edit
// tool later checks. Grounded verbatim on
// codefuse/tools/builtin/read_file.py and filesystem_base.py.
type ReadTool struct {
	resolver Resolver
	tracker  *tracker.ReadTracker
}

// NewReadTool creates a read tool scoped to the workspace and wired to the
// session's read tracker.
func NewReadTool(cfg Config, rt *tracker.ReadTracker) *ReadTool {
	return &ReadTool{
		resolver: Resolver{Root: cfg.Workspace},
		tracker:  rt,
	}
}

func (t *ReadTool) Name() string { return "read_file" }

func (t *ReadTool) Description() string {
	return "Reads a file from the workspace. The path parameter must be absolute. By default reads up to 1000 lines from the start; use start_line/end_line for other ranges. Lines are numbered starting at 1."
}

func (t *ReadTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Absolute path to the file, within the workspace root.",
			},
			"start_line": map[string]interface{}{
				"type":        "integer",
				"description": "Starting line number, 1-indexed (default: 1).",
				"minimum":     1,
			},
			"end_line": map[string]interface{}{
				"type":        "integer",
				"description": "Ending line number, 1-indexed, inclusive.",
				"minimum":     1,
			},
		},
		"required": []string{"path"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

type readInput struct {
	Path      string `json:"path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// Execute reads a line range of a file, marking it read on success.
func (t *ReadTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	_ = ctx
	var input readInput
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Path) == "" {
		return toolError("path is required"), nil
	}

	resolved, err := t.resolver.Resolve(input.Path)
	if err != nil {
		return toolError(err.Error()), nil
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return toolError(fmt.Sprintf("File not found: %s", input.Path)), nil
		}
		return toolError(fmt.Sprintf("stat file: %v", err)), nil
	}
	if info.IsDir() {
		return toolError(fmt.Sprintf("Path is not a file: %s", input.Path)), nil
	}

	hasPagination := input.StartLine > 0 || input.EndLine > 0
	if info.Size() > maxFileSizeBytes && !hasPagination {
		sizeKB := float64(info.Size()) / 1024
		return toolError(fmt.Sprintf(
			"File size (%.1fKB) exceeds maximum (%dKB). Please use start_line and end_line parameters to read specific portions.",
			sizeKB, maxFileSizeBytes/1024,
		)), nil
	}

	raw, err := os.ReadFile(resolved)
	if err != nil {
		return toolError(fmt.Sprintf("read file: %v", err)), nil
	}
	content := decodeWithFallback(raw)
	lines := splitKeepLines(content)

	startIdx := 0
	if input.StartLine > 0 {
		startIdx = input.StartLine - 1
	}
	var endIdx int
	if input.EndLine > 0 {
		endIdx = input.EndLine
	} else {
		endIdx = startIdx + defaultMaxLines
	}
	if endIdx > len(lines) {
		endIdx = len(lines)
	}

	if startIdx < 0 || startIdx >= len(lines) {
		return toolError(fmt.Sprintf("Invalid start_line %d (file has %d lines)", input.StartLine, len(lines))), nil
	}
	if endIdx < startIdx {
		return toolError(fmt.Sprintf("Invalid end_line %d (must be >= start_line)", input.EndLine)), nil
	}

	selected := lines[startIdx:endIdx]
	selectedContent := strings.Join(selected, "")
	actualStart := input.StartLine
	if actualStart <= 0 {
		actualStart = 1
	}
	actualEnd := actualStart + len(selected) - 1
	wasTruncated := endIdx < len(lines) && input.EndLine == 0

	if estimatedTokens(selectedContent) > maxReadTokens {
		return toolError(fmt.Sprintf(
			"Content (%d tokens) exceeds maximum (%d tokens). Please reduce the content size.",
			estimatedTokens(selectedContent), maxReadTokens,
		)), nil
	}

	formatted := formatWithLineNumbers(selectedContent, actualStart)
	if wasTruncated {
		formatted += fmt.Sprintf(
			"\n\n<system-reminder>Note: File has %d total lines, but only showing lines %d-%d "+
				"(default limit: %d lines). Use start_line and end_line parameters to read other portions of the file.</system-reminder>",
			len(lines), actualStart, actualEnd, defaultMaxLines,
		)
	}

	numLines := len(selected)
	lineRange := fmt.Sprintf("lines %d-%d", actualStart, actualEnd)
	var display string
	if wasTruncated {
		display = fmt.Sprintf("✓ Read %s (%d/%d lines)", lineRange, numLines, len(lines))
	} else {
		display = fmt.Sprintf("✓ Read %s (%d lines)", lineRange, numLines)
	}

	if t.tracker != nil {
		t.tracker.MarkAsRead(resolved)
	}

	return &agent.ToolResult{Content: formatted, Display: display}, nil
}

// estimatedTokens approximates a token count as chars/4, matching
// filesystem_base.py::_estimate_tokens.
func estimatedTokens(content string) int {
	return len(content) / 4
}

// decodeWithFallback decodes raw bytes as UTF-8 when they are valid UTF-8,
// otherwise as Latin-1 (each byte becomes the code point of the same
// value); Latin-1 accepts every byte sequence, so there is no further
// fallback — grounded on filesystem_base.py::_read_with_encoding_fallback.
func decodeWithFallback(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		b.WriteRune(rune(r))
	}
	return b.String()
}

// splitKeepLines splits content into lines, each retaining its trailing
// newline (except possibly the last), matching Python's
// str.splitlines(keepends=True).
func splitKeepLines(content string) []string {
	if content == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			lines = append(lines, content[start:i+1])
			start = i + 1
		}
	}
	if start < len(content) {
		lines = append(lines, content[start:])
	}
	return lines
}

// formatWithLineNumbers renders content as "LINE_NUMBER→LINE_CONTENT", line
// numbers right-aligned to 6 characters, grounded verbatim on
// filesystem_base.py::_format_with_line_numbers.
func formatWithLineNumbers(content string, startLine int) string {
	if content == "" {
		return content
	}
	lines := strings.Split(content, "\n")
	formatted := make([]string, len(lines))
	for i, line := range lines {
		formatted[i] = fmt.Sprintf("%6d→%s", startLine+i, line)
	}
	return strings.Join(formatted, "\n")
}
