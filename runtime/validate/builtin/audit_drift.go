package builtin

import (
	"fmt"

	"github.com/failcore/runtime/runtime/drift"
	"github.com/failcore/runtime/runtime/policy"
	"github.com/failcore/runtime/runtime/trace"
	"github.com/failcore/runtime/runtime/validate"
	"github.com/failcore/runtime/runtime/validate/codes"
)

// PostRunDriftValidator is a post-run validator, not a runtime gate: it
// analyzes a completed run's trace for parameter drift and reports
// inflection points as decisions. Run it after a run finishes, with
// ctx.Metadata["trace_events"] set to the run's []trace.Event.
//
// Grounded on failcore/core/validate/builtin/post/drift.py's
// PostRunDriftValidator.
type PostRunDriftValidator struct{}

var _ validate.BaseValidator = PostRunDriftValidator{}

func (PostRunDriftValidator) ID() string     { return "post_run_drift" }
func (PostRunDriftValidator) Domain() string { return "audit" }

func (PostRunDriftValidator) DefaultConfig() map[string]any {
	return map[string]any{
		"drift_threshold":          0.1,
		"report_inflection_points": true,
		"report_all_drift":         false,
	}
}

func (PostRunDriftValidator) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"drift_threshold":          map[string]any{"type": "number"},
			"report_inflection_points": map[string]any{"type": "boolean"},
			"report_all_drift":         map[string]any{"type": "boolean"},
		},
	}
}

func (v PostRunDriftValidator) Evaluate(ctx validate.Context, cfg *policy.ValidatorConfig) []validate.Decision {
	merged := validate.MergeConfig(v.DefaultConfig(), cfg)
	threshold := floatOr(merged["drift_threshold"], 0.1)
	reportInflections := boolOr(merged["report_inflection_points"], true)
	reportAll := boolOr(merged["report_all_drift"], false)

	events, _ := ctx.Metadata["trace_events"].([]trace.Event)
	if len(events) == 0 {
		return []validate.Decision{}
	}

	result := drift.ComputeDrift(events, nil)

	var decisions []validate.Decision
	if reportInflections {
		for _, ip := range result.InflectionPoints {
			decisions = append(decisions, validate.WarnDecision(
				codes.DriftInflection, v.ID(),
				fmt.Sprintf("inflection point at seq %d (tool %s): %s", ip.Seq, ip.Tool, ip.Reason),
				map[string]any{"seq": ip.Seq, "tool": ip.Tool, "drift_delta": ip.DriftDelta},
			))
		}
	}

	if reportAll {
		for _, p := range result.DriftPoints {
			if p.DriftDelta < threshold {
				continue
			}
			decisions = append(decisions, validate.WarnDecision(
				codes.DriftParameterChange, v.ID(),
				fmt.Sprintf("drift at seq %d (tool %s): delta=%.2f", p.Seq, p.Tool, p.DriftDelta),
				map[string]any{"seq": p.Seq, "tool": p.Tool, "drift_delta": p.DriftDelta, "changes": len(p.TopChanges)},
			))
		}
	}

	if decisions == nil {
		decisions = []validate.Decision{}
	}
	return decisions
}

func floatOr(v any, def float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return def
}
