// Package remotetool implements the HTTP client side of the remote
// tool-execution contract: an optional backend that runs tool calls in a
// separate process/instance instead of the local workspace toolkit. Only
// the client is in scope; the server is a Non-goal.
package remotetool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config configures the remote tool executor client.
type Config struct {
	URL        string
	InstanceID string
	Timeout    time.Duration
}

// Client dispatches tool calls to a remote execution backend over HTTP.
type Client struct {
	url        string
	instanceID string
	httpClient *http.Client
}

// New creates a remote tool executor client. Returns nil if cfg.URL or
// cfg.InstanceID is empty — remote execution is optional and the caller
// should fall back to local dispatch when New returns nil.
func New(cfg Config) *Client {
	if strings.TrimSpace(cfg.URL) == "" || strings.TrimSpace(cfg.InstanceID) == "" {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		url:        cfg.URL,
		instanceID: cfg.InstanceID,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type requestBody struct {
	InstanceID string          `json:"instance_id"`
	ToolName   string          `json:"toolName"`
	ToolArgs   json.RawMessage `json:"toolArgs"`
}

type responseEnvelope struct {
	Response struct {
		Success bool   `json:"success"`
		Result  string `json:"result"`
	} `json:"response"`
}

// Result is the outcome of a remote tool call. The remote wire envelope
// carries no separate display field, so Display is always empty here —
// callers fall back to Content, matching codefuse/core/remote_tool_executor.py,
// which has no display concept either.
type Result struct {
	Content string
	Display string
	IsError bool
}

// Execute dispatches one tool call to the remote backend and translates
// every failure mode — timeout, connection error, non-200 status, invalid
// JSON, a missing "response" key, and an explicit success=false — into a
// Result rather than propagating a transport error, matching
// codefuse/core/remote_tool_executor.py.
func (c *Client) Execute(ctx context.Context, toolName string, toolArgs json.RawMessage) *Result {
	body, err := json.Marshal(requestBody{
		InstanceID: c.instanceID,
		ToolName:   toolName,
		ToolArgs:   toolArgs,
	})
	if err != nil {
		return &Result{Content: fmt.Sprintf("Error: failed to encode remote tool request: %v", err), IsError: true}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return &Result{Content: fmt.Sprintf("Error: failed to build remote tool request: %v", err), IsError: true}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return &Result{Content: "Error: remote tool execution timed out", IsError: true}
		}
		return &Result{Content: fmt.Sprintf("Error: could not connect to remote tool executor: %v", err), IsError: true}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Result{Content: fmt.Sprintf("Error: failed to read remote tool response: %v", err), IsError: true}
	}

	if resp.StatusCode != http.StatusOK {
		return &Result{
			Content: fmt.Sprintf("Error: remote tool executor returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))),
			IsError: true,
		}
	}

	var envelope responseEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return &Result{Content: fmt.Sprintf("Error: invalid JSON from remote tool executor: %v", err), IsError: true}
	}

	if envelope.Response.Result == "" && !envelope.Response.Success {
		return &Result{Content: "Error: remote tool executor response missing result", IsError: true}
	}

	if !envelope.Response.Success {
		return &Result{Content: envelope.Response.Result, IsError: true}
	}

	return &Result{Content: envelope.Response.Result}
}
