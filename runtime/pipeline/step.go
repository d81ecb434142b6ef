// Package pipeline implements the Execution Pipeline: the staged state
// machine that runs a single Step through basic validation, precondition
// validation, the side-effect boundary gate, the semantic guard, the
// replay hook, dispatch, and the output contract check, producing exactly
// one StepResult per submission. No stage ever panics the caller; every
// terminal outcome — success, block, failure — is returned as a value.
package pipeline

import "time"

// Step is the unit of execution submitted to the pipeline. It is
// immutable once submitted: retries resubmit the same Step and the
// pipeline's attempt counter (keyed by ID) disambiguates repeated runs.
type Step struct {
	ID     string
	Tool   string
	Params map[string]any

	// DependsOn names upstream step ids this step's taint propagation
	// may consult. Replay fingerprints do not include it.
	DependsOn []string

	// ExpectedKind, if non-empty, is compared against the observed
	// StepOutput.Kind in stage 7 (Output Contract).
	ExpectedKind OutputKind

	// OutputSchema is an optional Draft-7 JSON Schema subset carried
	// with the step. Stage 7 (Output Contract) compares only
	// ExpectedKind; it does not evaluate OutputSchema against
	// StepOutput.Value.
	OutputSchema map[string]any
}

// StepStatus is the terminal state of a StepResult.
type StepStatus string

// Recognized step statuses.
const (
	StatusOK       StepStatus = "OK"
	StatusFail     StepStatus = "FAIL"
	StatusBlocked  StepStatus = "BLOCKED"
	StatusSkipped  StepStatus = "SKIPPED"
	StatusReplayed StepStatus = "REPLAYED"
)

// OutputKind classifies a StepOutput's Value. It is observed from the
// tool's actual return value, never declared by the caller — a mismatch
// with Step.ExpectedKind is reported, never silently reshaped.
type OutputKind string

// Recognized output kinds.
const (
	KindJSON      OutputKind = "json"
	KindText      OutputKind = "text"
	KindBytes     OutputKind = "bytes"
	KindArtifacts OutputKind = "artifacts"
	KindUnknown   OutputKind = "unknown"
)

// ArtifactRef points at an out-of-band artifact (e.g. a file written to
// the run's sandbox) rather than inlining its bytes into the trace.
type ArtifactRef struct {
	URI       string
	Kind      string
	Name      string
	MediaType string
}

// StepOutput is a tool's normalized return value.
type StepOutput struct {
	Kind      OutputKind
	Value     any
	Artifacts []ArtifactRef
}

// StepError is the structured failure carried by a non-OK StepResult.
type StepError struct {
	Code    string
	Message string
	Detail  map[string]any
}

// StepResult is the canonical, final outcome of running one Step through
// the pipeline exactly once. Exactly one of Output or Error is set,
// except for StatusSkipped, where both may be nil.
type StepResult struct {
	StepID     string
	Tool       string
	Status     StepStatus
	StartedAt  time.Time
	FinishedAt time.Time
	DurationMS int64

	Output *StepOutput
	Error  *StepError

	// Meta carries phase (the stage that produced a terminal outcome)
	// and the attempt number, per §4.1's attempt-counter invariant.
	Meta map[string]any
}

// Phase names the pipeline stage a terminal outcome was produced in,
// recorded in StepResult.Meta["phase"] and on STEP_END trace events.
type Phase string

// Recognized phases.
const (
	PhaseValidate Phase = "validate"
	PhasePolicy   Phase = "policy"
	PhaseReplay   Phase = "replay"
	PhaseExecute  Phase = "execute"
	PhaseContract Phase = "contract"
)
