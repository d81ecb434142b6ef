package pipeline

import (
	"fmt"
	"sort"
	"sync"
)

// ToolFunc is the shape every dispatchable tool implements: structured
// params in, an arbitrary Go value out (normalized to a StepOutput by
// normalizeOutput), or an error.
type ToolFunc func(params map[string]any) (any, error)

// ToolRegistry maps tool name to callable, the same minimal shape as the
// original source's ToolRegistry (tools/registry.py) — deliberately not
// the federation/gRPC/discovery registry the teacher's own runtime/agent
// package carries, which solves a different problem (service mesh tool
// discovery across processes) than Dispatch's in-process name lookup.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]ToolFunc
}

// NewToolRegistry returns an empty ToolRegistry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: map[string]ToolFunc{}}
}

// Register binds name to fn. It panics on an empty name or nil fn, since
// both are programming errors caught at startup.
func (r *ToolRegistry) Register(name string, fn ToolFunc) {
	if name == "" {
		panic("pipeline: tool name must be non-empty")
	}
	if fn == nil {
		panic("pipeline: tool fn must not be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = fn
}

// Get returns the ToolFunc registered under name, or nil if absent.
func (r *ToolRegistry) Get(name string) ToolFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// List returns every registered tool name, sorted for determinism.
func (r *ToolRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Describe returns a small introspection record for name, empty if
// unregistered.
func (r *ToolRegistry) Describe(name string) map[string]any {
	r.mu.RLock()
	fn, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return map[string]any{}
	}
	return map[string]any{
		"name":     name,
		"callable": fmt.Sprintf("%T", fn),
	}
}
