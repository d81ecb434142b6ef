package taint

import (
	"sort"

	"github.com/failcore/runtime/runtime/telemetry"
)

// SinkResult is the outcome of applying a sink policy to one call.
type SinkResult struct {
	Action          SinkAction
	Tags            []TaintTag
	MaxSensitivity  DataSensitivity
	SanitizedParams map[string]any
	DLPHits         []string
	PolicyID        string
	RuleID          string
}

// Blocked reports whether the call must not proceed.
func (r SinkResult) Blocked() bool {
	return r.Action == ActionBlock || r.Action == ActionRequireApproval
}

// Engine composes a Store and a DLP scanner into the full taint/DLP
// flow: source tools report their output via Observe, sink tools are
// checked via CheckSink before they execute.
type Engine struct {
	Store  Store
	DLP    *DLPScanner
	Config SinkConfig
	Logger telemetry.Logger
}

// NewEngine builds an Engine backed by an in-process MemStore and the
// default sink policy, matching the executor's guard_config.taint=true
// zero-config path.
func NewEngine(logger telemetry.Logger) *Engine {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Engine{
		Store:  NewMemStore(),
		DLP:    NewDLPScanner(),
		Config: DefaultSinkConfig(),
		Logger: logger,
	}
}

// Observe records a completed call's taint status: tainted inputs
// (from declared dependencies or matching values already indexed)
// propagate to the step's own output tags, and a fresh sensitivity
// inference is added on top if the output itself carries a sensitive
// pattern. The combined tag set is returned and, if non-empty, stored
// and indexed under stepID so later steps can inherit it in turn.
func (e *Engine) Observe(stepID, tool string, params map[string]any, dependencies []string, output any) []TaintTag {
	inherited := e.Store.DetectTaintedInputs(params, dependencies)

	var tags []TaintTag
	tags = append(tags, inherited...)

	sensitivity, _ := InferSensitivity(output)
	if sensitivity.rank() > SensitivityInternal.rank() {
		tags = append(tags, TaintTag{
			Sensitivity:      sensitivity,
			Source:           SourceToolOutput,
			SourceTool:       tool,
			SourceStepID:     stepID,
			PropagationDepth: 0,
		})
	}

	if len(tags) == 0 {
		return nil
	}

	e.Store.MarkTainted(stepID, tags...)
	e.Store.IndexValue(stepID, output)
	return e.Store.GetTags(stepID)
}

// CheckSink evaluates whether tool is a high-risk sink carrying tainted
// params and, if so, what action the sink policy dictates. Params are
// never mutated: for ActionSanitize, SanitizedParams holds a redacted
// copy the caller should substitute before dispatch.
func (e *Engine) CheckSink(tool string, params map[string]any, dependencies []string) SinkResult {
	if !IsHighRiskSink(tool, e.Config, e.Store) {
		return SinkResult{Action: ActionAllow}
	}

	tags := e.Store.DetectTaintedInputs(params, dependencies)
	if len(tags) == 0 {
		return SinkResult{Action: ActionAllow}
	}

	maxSensitivity := MaxSensitivity(tags)
	if !maxSensitivity.AtLeast(e.Config.MinSensitivity) {
		return SinkResult{Action: ActionAllow, Tags: tags, MaxSensitivity: maxSensitivity}
	}

	action := actionForSensitivity(maxSensitivity, e.Config)
	result := SinkResult{
		Action:         action,
		Tags:           tags,
		MaxSensitivity: maxSensitivity,
		PolicyID:       e.Config.PolicyID,
		RuleID:         e.Config.RuleID,
	}

	if action == ActionSanitize && e.DLP != nil {
		sanitized := make(map[string]any, len(params))
		var hits []string
		for key, value := range params {
			redactedValue, _ := e.DLP.RedactValue(value)
			sanitized[key] = redactedValue
			if text := flattenToText(value); text != "" {
				hits = append(hits, e.DLP.Scan(text)...)
			}
		}
		result.SanitizedParams = sanitized
		result.DLPHits = dedupeSorted(hits)
	}

	return result
}

func dedupeSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
