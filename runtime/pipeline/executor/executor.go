// Package executor defines the optional process-isolation extension point
// §4.1 stage 6 alludes to ("optionally route via a process executor").
// FAILCORE ships only the in-process default: a sandboxed subprocess
// executor is a documented extension, not a requirement, since deep
// process isolation sits adjacent to the spec's stated Non-goal of
// runtime deep inspection of tool internals.
package executor

import "context"

// Executor invokes a tool function with params and returns its raw
// result. Implementations may run the call in-process, in a worker pool,
// or in an isolated subprocess; the Pipeline only depends on this
// interface and never assumes in-process execution.
type Executor interface {
	Execute(ctx context.Context, fn func(params map[string]any) (any, error), params map[string]any) (any, error)
}

// InProcess is the default Executor: it calls fn directly on the calling
// goroutine. It is the only implementation FAILCORE ships; callers that
// need isolation (a subprocess, a container, a remote worker) supply
// their own Executor satisfying the same interface.
type InProcess struct{}

// Execute calls fn(params) directly, ignoring ctx since the in-process
// path has no cancellable boundary of its own — cancellation is the
// tool's responsibility, per §5 "Timeouts".
func (InProcess) Execute(_ context.Context, fn func(params map[string]any) (any, error), params map[string]any) (any, error) {
	return fn(params)
}

// New returns the default in-process Executor.
func New() Executor { return InProcess{} }
