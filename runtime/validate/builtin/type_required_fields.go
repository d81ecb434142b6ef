package builtin

import (
	"fmt"
	"strings"

	"github.com/failcore/runtime/runtime/policy"
	"github.com/failcore/runtime/runtime/validate"
	"github.com/failcore/runtime/runtime/validate/codes"
)

// TypeRequiredFieldsValidator is a lightweight presence gate: it checks
// that every field named in its configured required_fields list is
// present in the call's parameters. It does not check types or nested
// shape — that belongs to output_contract's JSON Schema check.
type TypeRequiredFieldsValidator struct{}

var _ validate.BaseValidator = TypeRequiredFieldsValidator{}

func (TypeRequiredFieldsValidator) ID() string     { return "type_required_fields" }
func (TypeRequiredFieldsValidator) Domain() string { return "type" }

func (TypeRequiredFieldsValidator) DefaultConfig() map[string]any {
	return map[string]any{"required_fields": []string{}}
}

func (TypeRequiredFieldsValidator) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"required_fields": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"required_fields"},
	}
}

func (v TypeRequiredFieldsValidator) Evaluate(ctx validate.Context, cfg *policy.ValidatorConfig) []validate.Decision {
	merged := validate.MergeConfig(v.DefaultConfig(), cfg)
	required := stringSlice(merged["required_fields"])
	if len(required) == 0 {
		return nil
	}

	var missing []string
	for _, field := range required {
		if _, ok := ctx.Param(field); !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	return []validate.Decision{blockDecision(
		codes.TypeRequiredFieldsMissing, v.ID(), ctx,
		fmt.Sprintf("Missing required fields: %s", strings.Join(missing, ", ")),
		map[string]any{"missing_fields": missing},
	)}
}
