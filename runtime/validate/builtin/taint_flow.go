package builtin

import (
	"fmt"

	"github.com/failcore/runtime/runtime/policy"
	"github.com/failcore/runtime/runtime/taint"
	"github.com/failcore/runtime/runtime/validate"
	"github.com/failcore/runtime/runtime/validate/codes"
)

// taintRiskLevel maps the maximum sensitivity seen in a flow to the risk
// level reported on the decision, matching the Python validator's
// hierarchy exactly.
var taintRiskLevel = map[taint.DataSensitivity]validate.RiskLevel{
	taint.SensitivityPublic:       validate.RiskLow,
	taint.SensitivityInternal:     validate.RiskLow,
	taint.SensitivityConfidential: validate.RiskMedium,
	taint.SensitivityPII:          validate.RiskHigh,
	taint.SensitivitySecret:       validate.RiskCritical,
}

// TaintFlowValidator is the optional, lightweight post-analysis
// validator that surfaces (but never itself blocks) flows of sensitive
// data into a high-risk sink. It does not track taint itself — that is
// runtime/taint's job — it only reads the Engine and declared
// dependencies the pipeline has placed in Context.State and reports a
// WARN decision when the flow exceeds a configured sensitivity
// threshold. Enforcement (BLOCK/SANITIZE/REQUIRE_APPROVAL) happens
// separately, at the pipeline's policy stage, via the same Engine.
type TaintFlowValidator struct {
	Engine *taint.Engine
}

var _ validate.BaseValidator = TaintFlowValidator{}

func (TaintFlowValidator) ID() string     { return "taint_flow" }
func (TaintFlowValidator) Domain() string { return "security" }

func (TaintFlowValidator) DefaultConfig() map[string]any {
	return map[string]any{
		"min_sensitivity":        "confidential",
		"high_risk_sinks":        []string{},
		"require_explicit_sinks": false,
	}
}

func (TaintFlowValidator) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"min_sensitivity": map[string]any{
				"type":    "string",
				"enum":    []string{"public", "internal", "confidential", "pii", "secret"},
				"default": "confidential",
			},
			"high_risk_sinks":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"require_explicit_sinks": map[string]any{"type": "boolean", "default": false},
		},
	}
}

func (v TaintFlowValidator) Evaluate(ctx validate.Context, cfg *policy.ValidatorConfig) []validate.Decision {
	engine := v.Engine
	if engine == nil {
		if stateEngine, ok := ctx.State["taint_engine"].(*taint.Engine); ok {
			engine = stateEngine
		}
	}
	if engine == nil {
		// No taint tracking configured for this run: zero cost, zero
		// behavior, matching the Python validator's "no taint context
		// available" early return.
		return nil
	}

	merged := validate.MergeConfig(v.DefaultConfig(), cfg)
	sinkCfg := taint.SinkConfig{
		HighRiskSinks:        stringSlice(merged["high_risk_sinks"]),
		RequireExplicitSinks: boolOr(merged["require_explicit_sinks"], false),
		MinSensitivity:       taint.ParseSensitivity(stringOr(merged["min_sensitivity"], "confidential")),
	}

	if !taint.IsHighRiskSink(ctx.Tool, sinkCfg, engine.Store) {
		return nil
	}

	dependencies := stringSlice(ctx.State["dependencies"])
	tags := engine.Store.DetectTaintedInputs(ctx.Params, dependencies)
	if len(tags) == 0 {
		return nil
	}

	maxSensitivity := taint.MaxSensitivity(tags)
	if !maxSensitivity.AtLeast(sinkCfg.MinSensitivity) {
		return nil
	}

	sourceTools := make(map[string]struct{})
	sourceSteps := make(map[string]struct{})
	sources := make([]string, 0, len(tags))
	for _, t := range tags {
		sourceTools[t.SourceTool] = struct{}{}
		sourceSteps[t.SourceStepID] = struct{}{}
		sources = append(sources, string(t.Source))
	}

	evidence := map[string]any{
		"tool":            ctx.Tool,
		"sink_type":       "high_risk",
		"sensitivity":     string(maxSensitivity),
		"taint_sources":   sources,
		"taint_count":     len(tags),
		"source_tools":    sortedKeys(sourceTools),
		"source_step_ids": sortedKeys(sourceSteps),
	}

	message := fmt.Sprintf(
		"taint flow detected: %s data from %d source(s) flowing to high-risk sink %q",
		maxSensitivity, len(tags), ctx.Tool,
	)
	remediation := fmt.Sprintf(
		"review data flow from %d source(s) to sink %q; consider sanitizing %s data before sending to external sinks",
		len(tags), ctx.Tool, maxSensitivity,
	)

	decision := validate.WarnDecision(codes.TaintFlowCode(string(maxSensitivity)), v.ID(), message, evidence)
	decision.Tool = ctx.Tool
	decision.StepID = ctx.StepID
	decision.Remediation = remediation
	if risk, ok := taintRiskLevel[maxSensitivity]; ok {
		decision.RiskLevel = risk
	}
	return []validate.Decision{decision}
}
