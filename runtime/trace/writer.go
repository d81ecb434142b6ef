package trace

import (
	"context"
	"sync"
	"time"

	"github.com/failcore/runtime/runtime/telemetry"
)

type (
	// Context holds run-level invariants shared by every event emitted
	// during a run: run id, creation time, workspace/sandbox paths, tags,
	// and a monotonic sequence generator. One Context is owned exclusively
	// by one run.
	Context struct {
		mu   sync.Mutex
		seq  uint64
		Info RunInfo
	}

	// Sink durably persists a single Event. Append must be safe to call
	// concurrently with other Append calls to the same Sink; the Writer
	// serializes calls from its own callers but a Sink may also be shared
	// with other writers in more advanced deployments.
	Sink interface {
		Append(ctx context.Context, e Event) error
		// Flush forces buffered writes to become durable. Implementations
		// that write synchronously may treat this as a no-op.
		Flush(ctx context.Context) error
		// Close releases resources held by the sink.
		Close() error
	}

	// Writer serializes event construction and append across one primary
	// sink and zero or more secondary sinks. The writer never returns an
	// error to callers that would abort tool execution: failures are
	// logged and dropped, preserving the fail-open guarantee for tracing.
	Writer struct {
		mu        sync.Mutex
		tc        *Context
		primary   Sink
		secondary []Sink
		log       telemetry.Logger
	}
)

// NewContext creates a new trace Context for a run.
func NewContext(runID string, createdAt time.Time, sandboxRoot, workspace string, tags ...string) *Context {
	return &Context{Info: RunInfo{
		RunID:       runID,
		CreatedAt:   createdAt,
		SandboxRoot: sandboxRoot,
		Workspace:   workspace,
		Tags:        tags,
	}}
}

// NextSeq returns the next monotonically increasing sequence number for
// this run. It is the only method in the package that generates seq
// values and is safe for concurrent use.
func (c *Context) NextSeq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// NewWriter constructs a Writer bound to tc, writing to primary and any
// secondary sinks. log receives failure diagnostics; pass
// telemetry.NewNoopLogger() if none is available.
func NewWriter(tc *Context, primary Sink, log telemetry.Logger, secondary ...Sink) *Writer {
	return &Writer{tc: tc, primary: primary, secondary: secondary, log: log}
}

// Emit constructs and appends an event. It never returns an error: write
// failures on the primary sink are logged; failures on secondary sinks are
// logged and otherwise ignored so a queryable mirror (e.g. Mongo) can never
// block or corrupt the canonical trace.
func (w *Writer) Emit(ctx context.Context, level Level, typ EventType, step *StepRef, data any) {
	w.mu.Lock()
	defer w.mu.Unlock()

	seq := w.tc.NextSeq()
	evt := NewEvent(seq, time.Now().UTC(), level, w.tc.Info, typ, step, data)

	if w.primary != nil {
		if err := w.primary.Append(ctx, evt); err != nil {
			w.log.Error(ctx, "trace: primary sink append failed", "error", err.Error(), "seq", seq, "type", string(typ))
		}
	}
	for _, s := range w.secondary {
		if s == nil {
			continue
		}
		if err := s.Append(ctx, evt); err != nil {
			w.log.Warn(ctx, "trace: secondary sink append failed", "error", err.Error(), "seq", seq, "type", string(typ))
		}
	}
}

// Flush forces all sinks to become durable. Called on scope exit and
// periodically; errors are logged, never propagated.
func (w *Writer) Flush(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.primary != nil {
		if err := w.primary.Flush(ctx); err != nil {
			w.log.Error(ctx, "trace: primary sink flush failed", "error", err.Error())
		}
	}
	for _, s := range w.secondary {
		if s == nil {
			continue
		}
		if err := s.Flush(ctx); err != nil {
			w.log.Warn(ctx, "trace: secondary sink flush failed", "error", err.Error())
		}
	}
}

// Close flushes and releases every sink. Safe to call once at scope exit.
func (w *Writer) Close(ctx context.Context) {
	w.Flush(ctx)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.primary != nil {
		_ = w.primary.Close()
	}
	for _, s := range w.secondary {
		if s != nil {
			_ = s.Close()
		}
	}
}

// RunContext returns the trace Context backing this writer, primarily for
// components (replay, drift) that need the run id without re-threading it.
func (w *Writer) RunContext() *Context { return w.tc }
