// Package toolexec implements the tool executor: the single dispatch point
// between an assistant's requested tool call and the tool registry, sitting
// in front of confirmation gating and optional remote execution.
package toolexec

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"agentcore/internal/agent"
	"agentcore/internal/remotetool"
	"agentcore/pkg/models"
)

// ConfirmFunc decides whether a tool call may proceed. It is consulted only
// for tools Policy marks as requiring confirmation. Returning false rejects
// the call without executing it.
type ConfirmFunc func(ctx context.Context, toolName, toolCallID string, args json.RawMessage) bool

// defaultConfirmedTools are the tools that require confirmation unconditionally,
// regardless of configuration: write_file and edit_file mutate the workspace
// and bash runs arbitrary shell, matching
// codefuse/tools/builtin/write_file.py and edit_file.py hardcoding
// requires_confirmation=True, and spec.md §4.4's unconditional "Requires
// confirmation" language for these three tools.
var defaultConfirmedTools = map[string]bool{
	"write_file": true,
	"edit_file":  true,
	"bash":       true,
}

// Policy decides, per tool name, whether a call requires confirmation
// before it runs. write_file, edit_file, and bash always require it, as an
// intrinsic tool property rather than an opt-in configuration choice;
// RequireConfirmation adds further tools on top of that fixed set — it
// cannot remove confirmation from the defaulted three.
type Policy struct {
	RequireConfirmation map[string]bool
}

func (p Policy) requires(name string) bool {
	if defaultConfirmedTools[name] {
		return true
	}
	return p.RequireConfirmation != nil && p.RequireConfirmation[name]
}

// Executor dispatches one tool call at a time: lookup, argument-JSON
// validity check, confirmation gate, then local or remote execution.
// Grounded on codefuse/core/tool_executor.py::execute_tool_call.
type Executor struct {
	registry *agent.ToolRegistry
	confirm  ConfirmFunc
	remote   *remotetool.Client
	policy   Policy
}

// New creates an executor. remote may be nil to always dispatch locally;
// confirm may be nil, in which case any tool requiring confirmation is
// denied by default (codefuse/core/tool_executor.py::_get_user_confirmation
// defaults to deny when no callback is wired).
func New(registry *agent.ToolRegistry, remote *remotetool.Client, confirm ConfirmFunc, policy Policy) *Executor {
	return &Executor{registry: registry, remote: remote, confirm: confirm, policy: policy}
}

// ExecuteToolCall dispatches call through the five-step pipeline: tool
// lookup, argument JSON validity check, confirmation, rejection-or-execute.
// malformed is true only when call.Input failed to parse as JSON at all —
// that case must NOT produce a models.ToolResult; the caller (the agent
// loop) routes it to the context engine's sanitizer instead, per
// spec.md's tool_call_id/tool_message pairing invariant. Every other
// outcome (not found, rejected, executed) returns an ordinary ToolResult.
func (e *Executor) ExecuteToolCall(ctx context.Context, call models.ToolCall) (result models.ToolResult, malformed bool, reason string) {
	if _, ok := e.registry.Get(call.Name); !ok {
		return e.handleNotFound(call), false, ""
	}

	if len(call.Input) == 0 {
		return models.ToolResult{}, true, "missing arguments"
	}
	var probe interface{}
	if err := json.Unmarshal(call.Input, &probe); err != nil {
		return models.ToolResult{}, true, err.Error()
	}

	if e.policy.requires(call.Name) {
		confirmed := false
		if e.confirm != nil {
			confirmed = e.confirm(ctx, call.Name, call.ID, call.Input)
		}
		if !confirmed {
			return e.handleRejection(call), false, ""
		}
	}

	return e.executeAndRecord(ctx, call), false, ""
}

func (e *Executor) handleNotFound(call models.ToolCall) models.ToolResult {
	return models.ToolResult{
		ToolCallID: call.ID,
		Content:    fmt.Sprintf("Error: tool %q is not registered", call.Name),
		Display:    "❌ Unknown tool",
		IsError:    true,
	}
}

func (e *Executor) handleRejection(call models.ToolCall) models.ToolResult {
	return models.ToolResult{
		ToolCallID: call.ID,
		Content:    fmt.Sprintf("Error: execution of %q was rejected by the user", call.Name),
		Display:    "❌ Rejected by user",
		IsError:    true,
	}
}

// executeAndRecord runs call either remotely (when configured) or locally,
// classifying success/failure in the remote case by string-matching
// "Error:"/"❌" in the response content, matching the remote contract's
// display/content convention documented in spec.md §6. The remote contract
// carries no separate display field, so the remote path falls back to its
// content for Display.
func (e *Executor) executeAndRecord(ctx context.Context, call models.ToolCall) models.ToolResult {
	if e.remote != nil {
		remoteResult := e.remote.Execute(ctx, call.Name, call.Input)
		isError := remoteResult.IsError || looksLikeFailure(remoteResult.Content)
		display := remoteResult.Display
		if display == "" {
			display = remoteResult.Content
		}
		return models.ToolResult{ToolCallID: call.ID, Content: remoteResult.Content, Display: display, IsError: isError}
	}

	result, err := e.registry.Execute(ctx, call.Name, call.Input)
	if err != nil {
		return models.ToolResult{ToolCallID: call.ID, Content: err.Error(), Display: "❌ " + err.Error(), IsError: true}
	}
	return models.ToolResult{ToolCallID: call.ID, Content: result.Content, Display: result.Display, IsError: result.IsError}
}

func looksLikeFailure(content string) bool {
	return strings.Contains(content, "Error:") || strings.Contains(content, "❌")
}
