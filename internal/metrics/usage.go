// Package metrics implements the hierarchical metrics collector: Session
// containing Prompts, each Prompt containing APICalls and ToolCalls, with a
// model-pricing cost rollup and a Prometheus gauge/counter mirror.
package metrics

import (
	"fmt"
	"sync"
)

// Usage is token usage for a single API call.
type Usage struct {
	InputTokens      int64
	OutputTokens     int64
	CacheReadTokens  int64
	CacheWriteTokens int64
}

// Total returns the sum of all token categories.
func (u Usage) Total() int64 {
	return u.InputTokens + u.OutputTokens + u.CacheReadTokens + u.CacheWriteTokens
}

// Add returns u with other's counts added in.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:      u.InputTokens + other.InputTokens,
		OutputTokens:     u.OutputTokens + other.OutputTokens,
		CacheReadTokens:  u.CacheReadTokens + other.CacheReadTokens,
		CacheWriteTokens: u.CacheWriteTokens + other.CacheWriteTokens,
	}
}

// APICall records one LLM completion call.
type APICall struct {
	Model string
	Usage Usage
}

// ToolCall records one tool execution.
type ToolCall struct {
	Name       string
	DurationMs int64
	IsError    bool
}

// Prompt aggregates the API calls and tool calls made while answering one
// user turn.
type Prompt struct {
	ID        string
	APICalls  []APICall
	ToolCalls []ToolCall
}

// TotalUsage sums the token usage of every API call in this prompt.
func (p *Prompt) TotalUsage() Usage {
	var total Usage
	for _, c := range p.APICalls {
		total = total.Add(c.Usage)
	}
	return total
}

// Collector is the hierarchical Session ⊃ Prompts ⊃ {APICalls, ToolCalls}
// metrics tracker for one agent session.
type Collector struct {
	mu      sync.Mutex
	prompts []*Prompt
}

// New creates an empty Collector.
func New() *Collector {
	return &Collector{}
}

// StartPrompt begins tracking a new prompt, returning it so the caller can
// append API calls and tool calls as they happen.
func (c *Collector) StartPrompt(promptID string) *Prompt {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := &Prompt{ID: promptID}
	c.prompts = append(c.prompts, p)
	return p
}

// RecordAPICall appends an API call to p, guarded by the collector's lock
// so readers on other goroutines (Prompts, SessionUsage) never race on the
// shared slice; the loop itself records calls from one goroutine, running
// tools one at a time.
func (c *Collector) RecordAPICall(p *Prompt, call APICall) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p.APICalls = append(p.APICalls, call)
}

// RecordToolCall appends a tool call to p.
func (c *Collector) RecordToolCall(p *Prompt, call ToolCall) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p.ToolCalls = append(p.ToolCalls, call)
}

// SessionUsage sums token usage across every prompt in the session.
func (c *Collector) SessionUsage() Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total Usage
	for _, p := range c.prompts {
		total = total.Add(p.TotalUsage())
	}
	return total
}

// Prompts returns a snapshot of tracked prompts.
func (c *Collector) Prompts() []*Prompt {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Prompt, len(c.prompts))
	copy(out, c.prompts)
	return out
}

// FormatTokenCount renders a token count compactly ("1.2m", "34k", "512").
func FormatTokenCount(count int64) string {
	switch {
	case count <= 0:
		return "0"
	case count >= 1_000_000:
		return fmt.Sprintf("%.1fm", float64(count)/1_000_000)
	case count >= 10_000:
		return fmt.Sprintf("%dk", count/1000)
	case count >= 1_000:
		return fmt.Sprintf("%.1fk", float64(count)/1000)
	default:
		return fmt.Sprintf("%d", count)
	}
}
