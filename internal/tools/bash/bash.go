// Package bash implements the persistent shell session tool: a single
// long-lived shell process per session, driven through a marker-based
// command framing protocol so each Execute call can recover exactly the
// output and exit code of one command without restarting the shell.
package bash

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"agentcore/internal/agent"
)

const (
	// promptMarker replaces PS1 so ordinary shell prompts never pollute
	// command output.
	promptMarker = "___AGENTCORE_PROMPT___"
	// endMarker terminates the wrapped command so the reader goroutine
	// knows where one command's output ends.
	endMarker = "___AGENTCORE_CMD_END___"

	// DefaultBashTimeout is the timeout applied to a command when the
	// caller does not specify one.
	DefaultBashTimeout = 30 * time.Second

	// cwdSubTimeout bounds the best-effort `pwd` refresh issued after a
	// successful `cd`.
	cwdSubTimeout = 2 * time.Second
)

type outputLine struct {
	text string
	err  error
}

// Session is one persistent shell process. Execute holds the session mutex
// for the whole call, so concurrent callers are serialized and commands run
// one at a time.
type Session struct {
	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	lines   chan outputLine
	cwd     string
	workdir string
	logger  *slog.Logger

	disallowed []string
	allowed    []string
}

// Config configures the bash tool's policy and working directory.
type Config struct {
	Workspace  string
	Disallowed []string
	Allowed    []string
	Logger     *slog.Logger
}

// NewSession starts a fresh shell process scoped to cfg.Workspace.
func NewSession(cfg Config) (*Session, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cmd := exec.Command("/bin/sh")
	cmd.Dir = cfg.Workspace
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout // merge stderr onto stdout, as the shell session presents one stream

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start shell: %w", err)
	}

	s := &Session{
		cmd:        cmd,
		stdin:      stdin,
		lines:      make(chan outputLine, 256),
		cwd:        cfg.Workspace,
		workdir:    cfg.Workspace,
		logger:     logger.With("component", "bash_session"),
		disallowed: cfg.Disallowed,
		allowed:    cfg.Allowed,
	}

	go s.readLoop(stdout)

	// Disable the init-file prompt and history, then install the marker
	// prompt so later output is unambiguous.
	// `command` keeps a shell without a history option (e.g. dash) from
	// exiting on the failed special builtin.
	s.sendRaw("unset HISTFILE; command set +o history 2>/dev/null")
	s.sendRaw(fmt.Sprintf("PS1=%s", promptMarker))

	return s, nil
}

func (s *Session) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		s.lines <- outputLine{text: scanner.Text()}
	}
	if err := scanner.Err(); err != nil {
		s.lines <- outputLine{err: err}
	}
	close(s.lines)
}

func (s *Session) sendRaw(command string) {
	io.WriteString(s.stdin, command+"\n")
}

// drainQueue discards any buffered output left over from a previous
// command (e.g. a stray background process writing after its owning
// command's end marker was already seen).
func (s *Session) drainQueue() {
	for {
		select {
		case <-s.lines:
		default:
			return
		}
	}
}

// Result is the outcome of one command.
type Result struct {
	Output   string
	ExitCode int
	TimedOut bool
}

// Execute runs command in the persistent shell, applying the policy filter
// and the given timeout (DefaultBashTimeout if zero). On timeout the
// underlying process is left running — only the wait for its output is
// abandoned — matching spec.md §9's documented behavior.
func (s *Session) Execute(ctx context.Context, command string, confirmed bool, timeout time.Duration) *agent.ToolResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timeout <= 0 {
		timeout = DefaultBashTimeout
	}

	if decision := s.checkPolicy(command); decision == policyRejected {
		return &agent.ToolResult{
			Content: "Error: command rejected by policy",
			Display: "❌ Command rejected by policy",
			IsError: true,
		}
	}

	s.drainQueue()
	wrapped := fmt.Sprintf("%s\necho \"EXIT_CODE=$?\"\necho \"%s\"\n", command, endMarker)
	s.sendRaw(wrapped)

	out, exitCode, timedOut := s.collect(timeout)
	if timedOut {
		return &agent.ToolResult{
			Content: timeoutMessage(),
			Display: "❌ Command timed out",
			IsError: true,
		}
	}

	if strings.HasPrefix(strings.TrimSpace(command), "cd ") && exitCode == 0 {
		s.refreshCWD()
	}

	if exitCode == 0 {
		display := "✓ Command executed (exit code: 0)"
		if out == "" {
			return &agent.ToolResult{Content: "Command executed successfully (no output).", Display: display}
		}
		return &agent.ToolResult{Content: fmt.Sprintf("Command executed successfully.\n\nOutput:\n%s", out), Display: display}
	}
	return &agent.ToolResult{
		Content: fmt.Sprintf("Command failed with exit code %d.\n\nOutput:\n%s", exitCode, out),
		Display: fmt.Sprintf("❌ Command failed (exit code: %d)", exitCode),
		IsError: true,
	}
}

// collect reads lines until the end marker or timeout, parsing the
// EXIT_CODE line and filtering prompt-marker noise.
func (s *Session) collect(timeout time.Duration) (output string, exitCode int, timedOut bool) {
	var b strings.Builder
	deadline := time.After(timeout)
	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				// The shell itself exited (e.g. `exit 3`): report its exit
				// status instead of the zero default.
				if s.cmd.ProcessState == nil {
					_ = s.cmd.Wait()
				}
				if s.cmd.ProcessState != nil {
					exitCode = s.cmd.ProcessState.ExitCode()
				}
				return strings.TrimSpace(b.String()), exitCode, false
			}
			if line.err != nil {
				return strings.TrimSpace(b.String()), exitCode, false
			}
			text := line.text
			if strings.Contains(text, promptMarker) {
				continue
			}
			if strings.Contains(text, endMarker) {
				return strings.TrimSpace(b.String()), exitCode, false
			}
			if strings.HasPrefix(text, "EXIT_CODE=") {
				if n, err := strconv.Atoi(strings.TrimPrefix(text, "EXIT_CODE=")); err == nil {
					exitCode = n
				}
				continue
			}
			b.WriteString(text)
			b.WriteString("\n")
		case <-deadline:
			return strings.TrimSpace(b.String()), exitCode, true
		}
	}
}

// refreshCWD re-queries pwd after a successful cd, with its own short
// sub-timeout so a slow prompt never blocks the main command result.
func (s *Session) refreshCWD() {
	s.drainQueue()
	s.sendRaw(fmt.Sprintf("pwd\necho \"%s\"", endMarker))
	out, _, timedOut := s.collect(cwdSubTimeout)
	if !timedOut && out != "" {
		s.cwd = strings.TrimSpace(out)
	}
}

func timeoutMessage() string {
	return "Error: command timed out. The underlying process was not killed and may still be running. " +
		"Likely causes: (1) the command is slow and needs a longer timeout, (2) the command is " +
		"interactive and is waiting on stdin, or (3) the command started a background process that " +
		"never exits. Consider breaking the task into smaller steps or backgrounding long-running work explicitly."
}

// Close terminates the shell process.
func (s *Session) Close() error {
	s.stdin.Close()
	return s.cmd.Process.Kill()
}

// CWD returns the session's last known working directory.
func (s *Session) CWD() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cwd
}

type policyDecision int

const (
	policyNormal policyDecision = iota
	policyAutoConfirm
	policyRejected
)

// checkPolicy applies disallowed-then-allowed precedence: any disallowed
// match returns policyRejected; otherwise an allowed match returns
// policyAutoConfirm; otherwise policyNormal. Execute acts only on
// policyRejected, so an allowed match does not skip the executor's
// confirmation gate, which applies to every bash call.
func (s *Session) checkPolicy(command string) policyDecision {
	for _, pattern := range s.disallowed {
		if pattern != "" && strings.Contains(command, pattern) {
			return policyRejected
		}
	}
	for _, pattern := range s.allowed {
		if pattern != "" && strings.Contains(command, pattern) {
			return policyAutoConfirm
		}
	}
	return policyNormal
}

// Tool adapts a Session to the agent.Tool interface, so the loop and
// executor can dispatch bash calls like any other built-in tool.
type Tool struct {
	session *Session
	timeout time.Duration
}

// NewTool wraps session as an agent.Tool.
func NewTool(session *Session, timeout time.Duration) *Tool {
	return &Tool{session: session, timeout: timeout}
}

func (t *Tool) Name() string { return "bash" }

func (t *Tool) Description() string {
	return "Run a shell command in the persistent workspace shell session. State (cwd, env, background jobs) carries over between calls."
}

func (t *Tool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "Shell command to run.",
			},
			"timeout_seconds": map[string]interface{}{
				"type":        "integer",
				"description": "Override the default 30s timeout.",
			},
		},
		"required": []string{"command"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Command        string `json:"command"`
		TimeoutSeconds int    `json:"timeout_seconds"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("Invalid parameters: %v", err), IsError: true}, nil
	}
	if strings.TrimSpace(input.Command) == "" {
		return &agent.ToolResult{Content: "command is required", IsError: true}, nil
	}
	timeout := t.timeout
	if input.TimeoutSeconds > 0 {
		timeout = time.Duration(input.TimeoutSeconds) * time.Second
	}
	return t.session.Execute(ctx, input.Command, true, timeout), nil
}
