package agent

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for agent loop and tool execution conditions.
var (
	ErrMaxIterations   = errors.New("max iterations exceeded")
	ErrContextCanceled = errors.New("context canceled")
	ErrNoProvider      = errors.New("no provider configured")
	ErrToolNotFound    = errors.New("tool not found")
	ErrToolTimeout     = errors.New("tool execution timed out")
	ErrToolPanic       = errors.New("tool panicked")
)

// ToolErrorType categorizes a tool failure for retry/logging purposes.
type ToolErrorType string

const (
	ToolErrorNotFound     ToolErrorType = "not_found"
	ToolErrorInvalidInput ToolErrorType = "invalid_input"
	ToolErrorTimeout      ToolErrorType = "timeout"
	ToolErrorNetwork      ToolErrorType = "network"
	ToolErrorPermission   ToolErrorType = "permission"
	ToolErrorExecution    ToolErrorType = "execution"
	ToolErrorPanic        ToolErrorType = "panic"
	ToolErrorUnknown      ToolErrorType = "unknown"
)

// IsRetryable reports whether this error type suggests a retry may help.
func (t ToolErrorType) IsRetryable() bool {
	switch t {
	case ToolErrorTimeout, ToolErrorNetwork:
		return true
	default:
		return false
	}
}

// ToolError is a structured tool-execution failure carrying enough context
// (tool name, call id, classification) for the loop to decide what to do
// next without re-parsing the error string.
type ToolError struct {
	Type       ToolErrorType
	ToolName   string
	ToolCallID string
	Message    string
	Cause      error
}

func (e *ToolError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[tool:%s]", e.Type))
	if e.ToolName != "" {
		parts = append(parts, e.ToolName)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " ")
}

func (e *ToolError) Unwrap() error { return e.Cause }

// NewToolError classifies cause and wraps it as a ToolError for toolName.
func NewToolError(toolName string, cause error) *ToolError {
	err := &ToolError{ToolName: toolName, Cause: cause, Type: ToolErrorUnknown}
	if cause != nil {
		err.Message = cause.Error()
		err.Type = classifyToolError(cause)
	}
	return err
}

func classifyToolError(err error) ToolErrorType {
	if err == nil {
		return ToolErrorUnknown
	}
	if errors.Is(err, ErrToolNotFound) {
		return ToolErrorNotFound
	}
	if errors.Is(err, ErrToolTimeout) {
		return ToolErrorTimeout
	}
	if errors.Is(err, ErrToolPanic) {
		return ToolErrorPanic
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "timeout") || strings.Contains(s, "deadline exceeded"):
		return ToolErrorTimeout
	case strings.Contains(s, "connection") || strings.Contains(s, "network") || strings.Contains(s, "refused"):
		return ToolErrorNetwork
	case strings.Contains(s, "permission") || strings.Contains(s, "forbidden") || strings.Contains(s, "access denied"):
		return ToolErrorPermission
	case strings.Contains(s, "invalid") || strings.Contains(s, "required") || strings.Contains(s, "missing"):
		return ToolErrorInvalidInput
	default:
		return ToolErrorExecution
	}
}

// LoopError carries the phase and iteration an agent loop failure occurred
// in, so callers and logs can localize the failure precisely.
type LoopError struct {
	Phase     LoopPhase
	Iteration int
	Message   string
	Cause     error
}

func (e *LoopError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("loop error at %s (iteration %d): %s", e.Phase, e.Iteration, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("loop error at %s (iteration %d): %v", e.Phase, e.Iteration, e.Cause)
	}
	return fmt.Sprintf("loop error at %s (iteration %d)", e.Phase, e.Iteration)
}

func (e *LoopError) Unwrap() error { return e.Cause }

// LoopPhase names a distinct phase in the agent loop's state machine.
type LoopPhase string

const (
	PhaseIdle         LoopPhase = "idle"
	PhaseRecordUser   LoopPhase = "record_user"
	PhaseLLMCall      LoopPhase = "llm_call"
	PhaseExecuteTools LoopPhase = "execute_tools"
	PhaseFinal        LoopPhase = "final"
)
