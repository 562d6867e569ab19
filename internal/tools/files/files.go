// Package files implements the workspace-scoped read/write/edit tools: the
// safety-bounded filesystem toolkit every write and edit must pass through.
package files

import (
	"fmt"

	"agentcore/internal/agent"
)

// Config controls filesystem tool defaults, shared by all tools in this
// package so they stay scoped to the same workspace root.
type Config struct {
	Workspace string
}

// toolError renders a failure the way codefuse/tools/builtin/*.py's
// ToolResult(content=f"Error: ...", display=f"❌ ...") does: a plain-text
// content for the model and a short display line for the user.
func toolError(message string) *agent.ToolResult {
	return &agent.ToolResult{
		Content: fmt.Sprintf("Error: %s", message),
		Display: fmt.Sprintf("❌ %s", message),
		IsError: true,
	}
}
