package validate

import "github.com/failcore/runtime/runtime/policy"

// BaseValidator is the contract every validator — builtin or plugin —
// must satisfy. The engine treats validators as black boxes: it only
// ever calls ID, Domain, and Evaluate.
type BaseValidator interface {
	// ID is a stable, unique identifier (e.g. "security_path_traversal").
	ID() string
	// Domain groups the validator for sort-priority and reporting
	// purposes (e.g. "security", "network", "resource").
	Domain() string
	// DefaultConfig returns the configuration applied when policy does
	// not supply one for this validator.
	DefaultConfig() map[string]any
	// ConfigSchema optionally returns a JSON Schema describing Config,
	// for policy-authoring tools. May return nil.
	ConfigSchema() map[string]any
	// Evaluate runs the validator against ctx using the merged
	// configuration resolved from cfg (nil if policy has none). It must
	// return an empty slice, never nil, when validation passes.
	Evaluate(ctx Context, cfg *policy.ValidatorConfig) []Decision
}

// MergeConfig overlays cfg.Config (if any) on top of defaults, returning
// a new map. Validators call this at the top of Evaluate so policy-level
// overrides apply without validators re-implementing the merge.
func MergeConfig(defaults map[string]any, cfg *policy.ValidatorConfig) map[string]any {
	merged := make(map[string]any, len(defaults))
	for k, v := range defaults {
		merged[k] = v
	}
	if cfg != nil {
		for k, v := range cfg.Config {
			merged[k] = v
		}
	}
	return merged
}
