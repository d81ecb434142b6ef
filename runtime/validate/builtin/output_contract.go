package builtin

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/failcore/runtime/runtime/policy"
	"github.com/failcore/runtime/runtime/validate"
	"github.com/failcore/runtime/runtime/validate/codes"
)

// OutputContractValidator checks a tool's result against an expected
// JSON Schema. It is a postcondition check: Evaluate only does anything
// when context.Result is non-nil. Enforcement (warn vs. block) is the
// engine's job — this validator always reports drift as WARN, letting
// policy decide whether that drift should actually block.
type OutputContractValidator struct{}

var _ validate.BaseValidator = OutputContractValidator{}

func (OutputContractValidator) ID() string     { return "output_contract" }
func (OutputContractValidator) Domain() string { return "contract" }

func (OutputContractValidator) DefaultConfig() map[string]any {
	return map[string]any{"schema": nil}
}

func (OutputContractValidator) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"schema": map[string]any{"type": "object"},
		},
	}
}

func (v OutputContractValidator) Evaluate(ctx validate.Context, cfg *policy.ValidatorConfig) []validate.Decision {
	merged := validate.MergeConfig(v.DefaultConfig(), cfg)
	schemaDoc := merged["schema"]

	if ctx.Result == nil || schemaDoc == nil {
		return nil
	}

	schemaBytes, err := json.Marshal(schemaDoc)
	if err != nil {
		return []validate.Decision{blockDecision(
			codes.OutputContractInvalidConfig, v.ID(), ctx,
			"output_contract schema is not serializable",
			map[string]any{"error": err.Error()},
		)}
	}

	var schemaAny any
	if err := json.Unmarshal(schemaBytes, &schemaAny); err != nil {
		return []validate.Decision{blockDecision(
			codes.OutputContractInvalidConfig, v.ID(), ctx,
			"output_contract schema is not valid JSON",
			map[string]any{"error": err.Error()},
		)}
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("output.json", schemaAny); err != nil {
		return []validate.Decision{blockDecision(
			codes.OutputContractInvalidConfig, v.ID(), ctx,
			"output_contract schema could not be loaded",
			map[string]any{"error": err.Error()},
		)}
	}
	schema, err := c.Compile("output.json")
	if err != nil {
		return []validate.Decision{blockDecision(
			codes.OutputContractInvalidConfig, v.ID(), ctx,
			"output_contract schema failed to compile",
			map[string]any{"error": err.Error()},
		)}
	}

	resultBytes, err := json.Marshal(ctx.Result)
	if err != nil {
		d := validate.WarnDecision(codes.OutputContractInvalidJSON, v.ID(),
			fmt.Sprintf("Contract output_kind_mismatch: result is not JSON-serializable: %v", err),
			map[string]any{"contract_check": true, "schema_used": true, "reason": err.Error()})
		d.Tool, d.StepID, d.RuleID = ctx.Tool, ctx.StepID, "invalid_json"
		return []validate.Decision{d}
	}
	var resultDoc any
	if err := json.Unmarshal(resultBytes, &resultDoc); err != nil {
		d := validate.WarnDecision(codes.OutputContractInvalidJSON, v.ID(),
			"Contract invalid_json: result could not be decoded as JSON",
			map[string]any{"contract_check": true, "schema_used": true})
		d.Tool, d.StepID, d.RuleID = ctx.Tool, ctx.StepID, "invalid_json"
		return []validate.Decision{d}
	}

	if err := schema.Validate(resultDoc); err != nil {
		d := validate.WarnDecision(codes.OutputContractSchemaMismatch, v.ID(),
			fmt.Sprintf("Contract schema_mismatch: %v", err),
			map[string]any{"contract_check": true, "schema_used": true, "reason": err.Error()})
		d.Tool, d.StepID, d.RuleID = ctx.Tool, ctx.StepID, "schema_mismatch"
		d.RiskLevel = validate.RiskMedium
		return []validate.Decision{d}
	}

	d := validate.AllowDecision(codes.OutputContractOK, v.ID(), "Output contract satisfied")
	d.Tool, d.StepID = ctx.Tool, ctx.StepID
	d.Evidence["contract_check"] = true
	d.Evidence["schema_used"] = true
	return []validate.Decision{d}
}
