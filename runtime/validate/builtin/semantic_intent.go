package builtin

import (
	"context"

	"github.com/failcore/runtime/runtime/policy"
	"github.com/failcore/runtime/runtime/semantic"
	"github.com/failcore/runtime/runtime/validate"
	"github.com/failcore/runtime/runtime/validate/codes"
)

// semanticCategoryCodes maps a semantic rule category to its published decision
// code. A category not listed here falls back to the generic
// SemanticViolation code.
var semanticCategoryCodes = map[semantic.Category]string{
	semantic.CategoryDangerousCombo: codes.SemanticShellDangerous,
	semantic.CategoryInjection:      codes.SemanticSQLInjection,
	semantic.CategoryPathTraversal:  codes.SemanticPathTraversal,
	semantic.CategoryParamPollution: codes.SemanticParamPollution,
}

// SemanticIntentValidator adapts the semantic guard to the validator
// contract: intent-based, high-confidence findings (dangerous shell
// combinations, likely SQL injection, path-traversal/SSRF intent) are
// surfaced as BLOCK decisions in the security domain. It is a thin
// wrapper — all parsing and rule evaluation lives in runtime/semantic so
// the guard can also run standalone in the pipeline's dedicated stage.
type SemanticIntentValidator struct {
	Guard *semantic.Guard
}

var _ validate.BaseValidator = SemanticIntentValidator{}

func (SemanticIntentValidator) ID() string     { return "semantic_intent" }
func (SemanticIntentValidator) Domain() string { return "security" }

func (SemanticIntentValidator) DefaultConfig() map[string]any {
	return map[string]any{
		"min_severity":       "high",
		"block_on_violation": true,
	}
}

func (SemanticIntentValidator) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"min_severity":       map[string]any{"type": "string", "enum": []string{"low", "medium", "high", "critical"}},
			"block_on_violation": map[string]any{"type": "boolean"},
		},
	}
}

func (v SemanticIntentValidator) Evaluate(ctx validate.Context, cfg *policy.ValidatorConfig) []validate.Decision {
	base := v.Guard
	if base == nil {
		base = semantic.NewGuard(nil)
	}
	// Copy so per-call severity/category overrides never race with
	// concurrent Evaluate calls sharing the same configured Guard.
	guard := *base

	merged := validate.MergeConfig(v.DefaultConfig(), cfg)
	guard.MinSeverity = semantic.ParseSeverity(merged["min_severity"].(string))
	blockOnViolation := boolOr(merged["block_on_violation"], true)

	verdict := guard.Check(context.Background(), ctx.Tool, ctx.Params)
	if !verdict.Blocked() {
		return nil
	}

	decisions := make([]validate.Decision, 0, len(verdict.Violations))
	for _, violation := range verdict.Violations {
		code, ok := semanticCategoryCodes[violation.Category]
		if !ok {
			code = codes.SemanticViolation
		}
		evidence := map[string]any{
			"rule_id":  violation.RuleID,
			"category": string(violation.Category),
			"severity": string(violation.Severity),
		}
		for k, val := range violation.Evidence {
			evidence[k] = val
		}

		var decision validate.Decision
		if blockOnViolation {
			decision = validate.BlockDecision(code, "semantic_intent", violation.Message, evidence)
		} else {
			decision = validate.WarnDecision(code, "semantic_intent", violation.Message, evidence)
		}
		decision.Tool = ctx.Tool
		decision.StepID = ctx.StepID
		decision.RuleID = violation.RuleID
		decisions = append(decisions, decision)
	}
	return decisions
}
