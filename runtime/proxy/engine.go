package proxy

import (
	"context"
	"fmt"

	"github.com/failcore/runtime/runtime/telemetry"
	"github.com/failcore/runtime/runtime/trace"
)

// EgressEngine runs every registered Enricher against an Event and then
// traces it. Enrichment is fail-open: a panicking or misbehaving
// Enricher is isolated and logged, never aborts the request and never
// stops the remaining enrichers from running.
//
// Grounded on failcore/gateways/proxy/app.py's wiring of enrichers into
// the trace sink, and on tests/proxy/test_proxy_failopen.py, which
// requires a BadEnricher or a failing trace sink to leave the response
// to the caller untouched.
type EgressEngine struct {
	Trace     *trace.Writer
	Enrichers []Enricher
	Logger    telemetry.Logger
}

// NewEgressEngine builds an EgressEngine with the standard enricher set
// (usage, DLP, taint) in the same order the Python gateway registers
// them: usage first so later enrichers see token counts, DLP before
// taint so redaction happens before attribution reads evidence.
func NewEgressEngine(tw *trace.Writer, log telemetry.Logger) *EgressEngine {
	return &EgressEngine{
		Trace: tw,
		Enrichers: []Enricher{
			UsageEnricher{},
			NewDLPEnricher(),
			TaintEnricher{},
		},
		Logger: log,
	}
}

// Emit runs enrichment then writes the event. It never returns an
// error: trace.Writer.Emit is itself fail-open, and enrichment failures
// are recovered here for the same reason.
func (e *EgressEngine) Emit(ctx context.Context, level trace.Level, step *trace.StepRef, event Event) {
	for _, enricher := range e.Enrichers {
		e.runEnricher(ctx, enricher, &event)
	}

	if e.Trace != nil {
		e.Trace.Emit(ctx, level, trace.EventEgress, step, event)
	}
}

func (e *EgressEngine) runEnricher(ctx context.Context, enricher Enricher, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logFailure(ctx, fmt.Sprintf("enricher panicked: %v", r))
		}
	}()
	enricher.Enrich(event)
}

func (e *EgressEngine) logFailure(ctx context.Context, msg string) {
	if e.Logger == nil {
		return
	}
	e.Logger.Warn(ctx, "proxy: enrichment failed, continuing", "error", msg)
}
