// Package sideeffect implements the pre-execution side-effect boundary
// gate: a heuristic predictor that looks at a tool call's name and
// params, guesses which category of real-world side effect it is about
// to cause (filesystem, network, process execution), and checks that
// guess against a configured boundary before the call runs. A second,
// purely observational half (SideEffectProbe) records the side effects
// tool calls actually reported after the fact, independent of whether
// the gate ran at all.
//
// Neither half infers side effects from code analysis or sandboxing —
// both are keyword-and-param heuristics over the tool name and its
// arguments, matching the pipeline's general posture of cheap,
// deterministic pre-checks rather than runtime instrumentation.
package sideeffect

// SideEffectType names one kind of real-world effect a tool call can
// produce. The string form is "<category>.<operation>" and is part of
// the stable wire format: it appears verbatim in trace events and
// CrossingRecord serialization.
type SideEffectType string

const (
	FSRead   SideEffectType = "filesystem.read"
	FSWrite  SideEffectType = "filesystem.write"
	FSDelete SideEffectType = "filesystem.delete"

	NetEgress  SideEffectType = "network.egress"
	NetIngress SideEffectType = "network.ingress"
	NetPrivate SideEffectType = "network.private"

	ExecCommand    SideEffectType = "exec.command"
	ExecSubprocess SideEffectType = "exec.subprocess"
	ExecScript     SideEffectType = "exec.script"
)

// SideEffectCategory groups SideEffectTypes into the three broad
// surfaces a boundary reasons about.
type SideEffectCategory string

const (
	CategoryFilesystem SideEffectCategory = "filesystem"
	CategoryNetwork    SideEffectCategory = "network"
	CategoryExec       SideEffectCategory = "exec"
)

// categoryForType maps every SideEffectType to its category. It is the
// Go equivalent of the missing get_category_for_type helper referenced
// by side_effect_probe.py's to_side_effect_info — that helper's source
// module wasn't present in the retrieved corpus, so the mapping here is
// inferred directly from the dotted type names themselves (the prefix
// before the dot is the category).
var categoryForType = map[SideEffectType]SideEffectCategory{
	FSRead:   CategoryFilesystem,
	FSWrite:  CategoryFilesystem,
	FSDelete: CategoryFilesystem,

	NetEgress:  CategoryNetwork,
	NetIngress: CategoryNetwork,
	NetPrivate: CategoryNetwork,

	ExecCommand:    CategoryExec,
	ExecSubprocess: CategoryExec,
	ExecScript:     CategoryExec,
}

// CategoryForType returns the category a SideEffectType belongs to.
func CategoryForType(t SideEffectType) SideEffectCategory {
	return categoryForType[t]
}
