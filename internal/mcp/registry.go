// Package mcp is a minimal in-process tool-call layer: tools declare a spec
// and are invoked by name with JSON arguments.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrUnknownTool = errors.New("mcp: unknown tool")

// ToolSpec documents a tool's contract (name + input schema).
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Call is one tool invocation.
type Call struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Result is a tool outcome. IsError carries transport-level failures the
// caller is expected to tolerate; a Go error from Call is fatal.
type Result struct {
	Response json.RawMessage `json:"response,omitempty"`
	IsError  bool            `json:"isError"`
}

// ErrorResult builds an isError result with a message.
func ErrorResult(msg string) Result {
	raw, _ := json.Marshal(map[string]any{"message": msg})
	return Result{Response: raw, IsError: true}
}

// JSONResult marshals v as the response.
func JSONResult(v any) (Result, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Result{}, err
	}
	return Result{Response: raw}, nil
}

type Tool interface {
	Spec() ToolSpec
	Call(ctx context.Context, input json.RawMessage) (Result, error)
}

// Func adapts a function to Tool.
func Func(spec ToolSpec, fn func(ctx context.Context, input json.RawMessage) (Result, error)) Tool {
	return funcTool{spec: spec, fn: fn}
}

type funcTool struct {
	spec ToolSpec
	fn   func(ctx context.Context, input json.RawMessage) (Result, error)
}

func (t funcTool) Spec() ToolSpec { return t.spec }
func (t funcTool) Call(ctx context.Context, input json.RawMessage) (Result, error) {
	return t.fn(ctx, input)
}

// Registry holds tool registrations and dispatches calls.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry and registers any provided tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: map[string]Tool{}}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds or replaces a tool by name.
func (r *Registry) Register(t Tool) {
	if r == nil || t == nil {
		return
	}
	spec := t.Spec()
	if spec.Name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tools == nil {
		r.tools = map[string]Tool{}
	}
	r.tools[spec.Name] = t
}

// CallTool invokes a registered tool.
func (r *Registry) CallTool(ctx context.Context, call Call) (Result, error) {
	if r == nil {
		return Result{}, fmt.Errorf("mcp: registry is nil")
	}
	r.mu.RLock()
	t, ok := r.tools[call.Name]
	r.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("%w %q", ErrUnknownTool, call.Name)
	}
	return t.Call(ctx, call.Arguments)
}

// Specs returns the tool specs sorted by name.
func (r *Registry) Specs() []ToolSpec {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Spec())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
