package builtin

import "github.com/failcore/runtime/runtime/validate"

// Default returns a new Registry with all seven shipped validators
// registered: security_path_traversal, network_ssrf,
// type_required_fields, resource_file_size, output_contract,
// semantic_intent, and taint_flow.
//
// taint_flow is registered with a nil Engine: it is inert (returns no
// decisions) until a run wires a live *taint.Engine into
// Context.State["taint_engine"], matching the zero-cost-when-disabled
// posture the rest of the guard stack also follows.
func Default() *validate.Registry {
	reg := validate.NewRegistry()
	reg.Register(PathTraversalValidator{})
	reg.Register(NetworkSSRFValidator{})
	reg.Register(TypeRequiredFieldsValidator{})
	reg.Register(ResourceFileSizeValidator{})
	reg.Register(OutputContractValidator{})
	reg.Register(SemanticIntentValidator{})
	reg.Register(TaintFlowValidator{})
	return reg
}
