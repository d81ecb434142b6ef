// Package builtin implements the validators shipped with the runtime:
// path traversal, SSRF, required-field contract checks, file size
// limits, output JSON Schema conformance, the semantic intent guard,
// and the taint flow warn. Each is registered into a validate.Registry
// by Default().
package builtin

import "github.com/failcore/runtime/runtime/validate"

func blockDecision(code, validatorID string, ctx validate.Context, message string, evidence map[string]any) validate.Decision {
	d := validate.BlockDecision(code, validatorID, message, evidence)
	d.Tool = ctx.Tool
	d.StepID = ctx.StepID
	return d
}

func blockDecisionPtr(code, validatorID string, ctx validate.Context, message string, evidence map[string]any) *validate.Decision {
	d := blockDecision(code, validatorID, ctx, message, evidence)
	return &d
}

func stringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func intSet(v any) map[int]struct{} {
	out := map[int]struct{}{}
	switch vv := v.(type) {
	case []int:
		for _, i := range vv {
			out[i] = struct{}{}
		}
	case []any:
		for _, item := range vv {
			switch n := item.(type) {
			case int:
				out[n] = struct{}{}
			case float64:
				out[int(n)] = struct{}{}
			}
		}
	}
	return out
}

func boolOr(v any, def bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}
