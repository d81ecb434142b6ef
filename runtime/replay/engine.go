// Package replay implements the Replay Hook's historical index: it
// loads a prior run's JSONL trace, indexes STEP_START/STEP_END pairs by
// fingerprint, and answers the pipeline's HIT/MISS queries during a
// later run over the same tool sequence.
package replay

import (
	"fmt"

	"github.com/failcore/runtime/runtime/pipeline"
	"github.com/failcore/runtime/runtime/trace"
)

// Mode names the three run postures §4.7 defines.
type Mode string

// Recognized replay modes.
const (
	ModeReport Mode = "report"
	ModeMock   Mode = "mock"
	ModeResume Mode = "resume"
)

// record is one historical step, fully resolved from its STEP_START and
// matching STEP_END events.
type record struct {
	stepID  string
	tool    string
	params  map[string]any
	allowed bool
	reason  string
	output  *pipeline.StepOutput
}

// Engine is the historical index plus the configured run mode; it
// implements pipeline.Replayer.
type Engine struct {
	mode      Mode
	tracePath string
	byFP      map[string]record
}

// NewEngine loads tracePath (a JSONL trace written by a prior run,
// per runtime/trace.FileSink) and returns an Engine ready to answer
// replay queries for a run in the given mode.
func NewEngine(mode Mode, tracePath string) (*Engine, error) {
	events, err := trace.ReadAll(tracePath)
	if err != nil {
		return nil, fmt.Errorf("replay: load trace %q: %w", tracePath, err)
	}
	return &Engine{mode: mode, tracePath: tracePath, byFP: indexEvents(events)}, nil
}

// NewEngineFromEvents builds an Engine directly from an already-loaded
// event slice, for callers (tests, run.Context) that hold the events in
// memory rather than re-reading the file.
func NewEngineFromEvents(mode Mode, tracePath string, events []trace.Event) *Engine {
	return &Engine{mode: mode, tracePath: tracePath, byFP: indexEvents(events)}
}

// Mode satisfies pipeline.Replayer.
func (e *Engine) Mode() string { return string(e.mode) }

// TracePath satisfies pipeline.Replayer.
func (e *Engine) TracePath() string { return e.tracePath }

// ReplayStep satisfies pipeline.Replayer: it looks up fingerprint in the
// historical index and reports HIT or MISS, comparing the historical
// and current policy verdicts on a HIT.
func (e *Engine) ReplayStep(stepID, tool string, params map[string]any, fingerprint string, policyAllowed bool, policyReason string) pipeline.ReplayOutcome {
	hist, ok := e.byFP[fingerprint]
	if !ok {
		return pipeline.ReplayOutcome{
			HitType: "MISS",
			Message: fmt.Sprintf("no historical step matches fingerprint for tool %q", tool),
		}
	}

	outcome := pipeline.ReplayOutcome{
		HitType:        "HIT",
		MatchedStepID:  hist.stepID,
		InjectedOutput: hist.output,
	}

	if hist.allowed != policyAllowed {
		outcome.PolicyDiff = &pipeline.ReplayPolicyDiff{
			HistoricalAllowed: hist.allowed,
			HistoricalReason:  hist.reason,
			CurrentAllowed:    policyAllowed,
			CurrentReason:     policyReason,
		}
	}
	return outcome
}

// indexEvents scans events in order, pairing each STEP_START with its
// matching STEP_END by (step id, attempt), and records the first
// resolved occurrence per fingerprint — later duplicate calls to the
// same tool with the same params replay against the earliest recorded
// outcome, matching the baseline engine's own first_occurrence default.
func indexEvents(events []trace.Event) map[string]record {
	type pending struct {
		tool   string
		params map[string]any
	}
	open := map[string]pending{}
	index := map[string]record{}

	for _, evt := range events {
		if evt.Event.Step == nil {
			continue
		}
		key := fmt.Sprintf("%s#%d", evt.Event.Step.ID, evt.Event.Step.Attempt)

		switch evt.Event.Type {
		case trace.EventStepStart:
			var body struct {
				Params map[string]any `json:"params"`
			}
			_ = evt.DataAs(&body)
			open[key] = pending{tool: evt.Event.Step.Tool, params: body.Params}

		case trace.EventStepEnd:
			p, ok := open[key]
			if !ok {
				continue
			}
			delete(open, key)

			var body struct {
				Status string `json:"status"`
				Output *struct {
					Kind  string `json:"kind"`
					Value any    `json:"value"`
				} `json:"output"`
			}
			_ = evt.DataAs(&body)

			fp := pipeline.Fingerprint(p.tool, p.params)
			if _, exists := index[fp]; exists {
				continue
			}

			rec := record{
				stepID:  evt.Event.Step.ID,
				tool:    p.tool,
				params:  p.params,
				allowed: body.Status != "BLOCKED",
				reason:  body.Status,
			}
			if body.Output != nil {
				rec.output = &pipeline.StepOutput{
					Kind:  pipeline.OutputKind(body.Output.Kind),
					Value: body.Output.Value,
				}
			}
			index[fp] = rec
		}
	}

	return index
}
