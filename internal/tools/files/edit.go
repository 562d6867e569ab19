package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"agentcore/internal/agent"
	"agentcore/internal/tracker"
)

// contextLines is the number of lines shown before/after an edit for
// confirmation, grounded on codefuse/tools/builtin/edit_file.py's
// CONTEXT_LINES.
const contextLines = 4

// EditTool applies an exact find/replace edit to a file already read in
// this session, supporting an optional replace_all for global renames.
// Grounded verbatim on codefuse/tools/builtin/edit_file.py.
type EditTool struct {
	resolver Resolver
	tracker  *tracker.ReadTracker
}

// NewEditTool creates an edit tool scoped to the workspace and wired to the
// session's read tracker.
func NewEditTool(cfg Config, rt *tracker.ReadTracker) *EditTool {
	return &EditTool{resolver: Resolver{Root: cfg.Workspace}, tracker: rt}
}

func (t *EditTool) Name() string { return "edit_file" }

func (t *EditTool) Description() string {
	return "Performs exact string replacements in a file that has already been read this session. " +
		"Fails if old_string is not unique unless replace_all is set."
}

func (t *EditTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Absolute path to edit, within the workspace root. Must have been read earlier this session.",
			},
			"old_string": map[string]interface{}{
				"type":        "string",
				"description": "Exact text to replace.",
			},
			"new_string": map[string]interface{}{
				"type":        "string",
				"description": "Replacement text. Must be different from old_string.",
			},
			"replace_all": map[string]interface{}{
				"type":        "boolean",
				"description": "Replace all occurrences of old_string (default: false).",
			},
		},
		"required": []string{"path", "old_string", "new_string"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

type editInput struct {
	Path       string `json:"path"`
	OldString  string `json:"old_string"`
	NewString  string `json:"new_string"`
	ReplaceAll bool   `json:"replace_all"`
}

// Execute applies the edit, enforcing the read-before-edit precondition and
// the unambiguous-match invariant unless replace_all is set.
func (t *EditTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	_ = ctx
	var input editInput
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Path) == "" {
		return toolError("path is required"), nil
	}
	if input.OldString == "" {
		return toolError("old_string is required"), nil
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

	if t.tracker == nil || !t.tracker.IsRead(resolved) {
		return toolError(fmt.Sprintf(
			"File has not been read yet: %s. You must use read_file tool at least once before editing.",
			input.Path,
		)), nil
	}

	raw, err := os.ReadFile(resolved)
	if err != nil {
		return toolError(fmt.Sprintf("read file: %v", err)), nil
	}
	content := expandTabs(decodeWithFallback(raw))
	oldString := expandTabs(input.OldString)
	newString := expandTabs(input.NewString)

	if oldString == newString {
		return toolError("old_string is identical to new_string. No replacement needed."), nil
	}

	occurrences := strings.Count(content, oldString)
	if occurrences == 0 {
		return toolError(fmt.Sprintf(
			"old_string not found in file. The string to replace does not appear verbatim in %s. "+
				"Make sure to match the exact content including whitespace and indentation.",
			input.Path,
		)), nil
	}
	if occurrences > 1 && !input.ReplaceAll {
		lines := findOccurrenceLines(content, oldString)
		return toolError(fmt.Sprintf(
			"Multiple occurrences of old_string found in lines %v. Please ensure it is unique by providing "+
				"more context, or set replace_all=true to replace all %d occurrences.",
			lines, occurrences,
		)), nil
	}

	var updated string
	var numReplacements int
	if input.ReplaceAll {
		updated = strings.ReplaceAll(content, oldString, newString)
		numReplacements = occurrences
	} else {
		updated = strings.Replace(content, oldString, newString, 1)
		numReplacements = 1
	}

	if estimatedTokens(updated) > maxReadTokens {
		return toolError(fmt.Sprintf(
			"Content (%d tokens) exceeds maximum (%d tokens). Please reduce the content size.",
			estimatedTokens(updated), maxReadTokens,
		)), nil
	}

	if err := os.WriteFile(resolved, []byte(updated), 0o644); err != nil {
		return toolError(fmt.Sprintf("write file: %v", err)), nil
	}

	t.tracker.MarkAsRead(resolved)

	replacementLine := strings.Count(strings.SplitN(content, oldString, 2)[0], "\n")
	snippet, snippetStartLine := generateEditSnippet(updated, replacementLine, newString)

	action := "occurrence"
	if input.ReplaceAll {
		action = "all occurrences"
	}
	plural := ""
	if numReplacements > 1 {
		plural = "s"
	}
	resultContent := fmt.Sprintf(
		"Successfully edited %s. Replaced %d %s of old_string with new_string.\n\n"+
			"Here's a snippet of the edited file showing the changes (lines %d-%d):\n%s\n\n"+
			"Review the changes and make sure they are as expected. Edit the file again if necessary.",
		input.Path, numReplacements, action,
		snippetStartLine, snippetStartLine+strings.Count(snippet, "\n"), snippet,
	)
	display := fmt.Sprintf("✓ Edited %s (%d replacement%s)", input.Path, numReplacements, plural)

	return &agent.ToolResult{Content: resultContent, Display: display}, nil
}

// expandTabs matches Python's str.expandtabs() default behavior (tab stops
// every 8 columns), so old_string/new_string comparisons are insensitive to
// a read_file line prefix's exact tab rendering.
func expandTabs(s string) string {
	if !strings.Contains(s, "\t") {
		return s
	}
	var b strings.Builder
	col := 0
	for _, r := range s {
		switch r {
		case '\t':
			spaces := 8 - col%8
			b.WriteString(strings.Repeat(" ", spaces))
			col += spaces
		case '\n':
			b.WriteRune(r)
			col = 0
		default:
			b.WriteRune(r)
			col++
		}
	}
	return b.String()
}

// findOccurrenceLines returns the 1-indexed line number where each
// occurrence of search starts, grounded on
// filesystem_base.py::_find_occurrence_lines.
func findOccurrenceLines(content, search string) []int {
	var lines []int
	start := 0
	for {
		idx := strings.Index(content[start:], search)
		if idx == -1 {
			break
		}
		pos := start + idx
		lines = append(lines, strings.Count(content[:pos], "\n")+1)
		start = pos + 1
	}
	return lines
}

// generateEditSnippet renders the edited region with contextLines of
// context on either side, 1-indexed line numbers, grounded verbatim on
// edit_file.py::_generate_edit_snippet.
func generateEditSnippet(content string, replacementLine int, newString string) (string, int) {
	lines := strings.Split(content, "\n")
	numNewLines := strings.Count(newString, "\n")

	start := replacementLine - contextLines
	if start < 0 {
		start = 0
	}
	end := replacementLine + numNewLines + 1 + contextLines
	if end > len(lines) {
		end = len(lines)
	}

	snippetContent := strings.Join(lines[start:end], "\n")
	return formatWithLineNumbers(snippetContent, start+1), start + 1
}
