package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MaxToolNameLength and MaxToolParamsSize bound a tool call's name length
// and raw argument payload size before it is dispatched, guarding against a
// pathological or adversarial tool-call payload.
const (
	MaxToolNameLength = 256
	MaxToolParamsSize = 10 << 20 // 10 MiB
)

// ToolRegistry holds the set of tools available to the loop for one
// session and exposes them to the LLM adapter as schemas.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool by its declared name.
func (r *ToolRegistry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get looks up a tool by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// AsLLMTools renders every registered tool as the schema shape a
// CompletionRequest carries to the provider.
func (r *ToolRegistry) AsLLMTools() []ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolSchema, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, ToolSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Schema(),
		})
	}
	return out
}

// Execute validates and dispatches a tool call by name. The executor calls
// it for local dispatch only, after its own lookup, JSON check and
// confirmation gate; remote dispatch does not pass through here, so these
// bounds apply to local calls.
func (r *ToolRegistry) Execute(ctx context.Context, name string, params json.RawMessage) (*ToolResult, error) {
	if len(name) == 0 || len(name) > MaxToolNameLength {
		return nil, fmt.Errorf("%w: invalid tool name length", ErrToolNotFound)
	}
	if len(params) > MaxToolParamsSize {
		return nil, fmt.Errorf("tool %q: arguments exceed %d bytes", name, MaxToolParamsSize)
	}

	tool, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return tool.Execute(ctx, params)
}
