package sideeffect

import (
	"fmt"
	"strings"

	"github.com/failcore/runtime/runtime/validate"
	"github.com/failcore/runtime/runtime/validate/codes"
)

// PredictedSideEffect is the gate's pre-execution guess at what a tool
// call is about to do, derived from its name and params alone.
type PredictedSideEffect struct {
	Type       SideEffectType
	Target     string
	Confidence string
}

// SideEffectBoundaryGate predicts the side effects a call would cause
// and refuses to let it proceed if any predicted effect would cross the
// configured boundary.
type SideEffectBoundaryGate struct {
	Boundary *SideEffectBoundary
	Auditor  *SideEffectAuditor
}

// NewSideEffectBoundaryGate builds a gate over boundary.
func NewSideEffectBoundaryGate(boundary *SideEffectBoundary) *SideEffectBoundaryGate {
	return &SideEffectBoundaryGate{
		Boundary: boundary,
		Auditor:  NewSideEffectAuditor(boundary),
	}
}

// Check predicts the side effects of calling tool with params and
// checks each against the gate's boundary, in prediction order
// (filesystem, then network, then exec). It stops at the first
// crossing: result is nil and allowed is true when nothing crosses, or
// allowed is false with result describing the first crossing found.
// predicted always holds every effect the gate guessed at, regardless
// of whether any of them crossed.
func (g *SideEffectBoundaryGate) Check(tool string, params map[string]any, stepID string) (allowed bool, result *validate.Decision, predicted []PredictedSideEffect) {
	predicted = g.predictSideEffects(tool, params)

	for _, p := range predicted {
		if !g.Auditor.CheckCrossing(p.Type) {
			continue
		}
		evidence := map[string]any{
			"predicted_side_effect": string(p.Type),
			"target":                p.Target,
			"tool":                  tool,
			"step_id":               stepID,
		}
		decision := validate.BlockDecision(
			codes.SideEffectBoundaryCrossed,
			"side_effect_boundary",
			fmt.Sprintf("predicted side-effect %s would cross boundary", p.Type),
			evidence,
		)
		decision.Tool = tool
		decision.StepID = stepID
		decision.Remediation = fmt.Sprintf("this boundary does not permit %s; route the call through a tool within its allowed categories or widen the boundary", p.Type)
		return false, &decision, predicted
	}

	return true, nil, predicted
}

// predictSideEffects mirrors the original gate's _predict_side_effects
// exactly, including its quirk: filesystem detection is tried against
// all three operations independently, so a tool whose name merely
// matches the generic filesystem keyword set (e.g. "write_file" also
// contains "file") and carries a path param predicts FS_READ, FS_WRITE,
// and FS_DELETE all at once, not just the operation its name suggests.
func (g *SideEffectBoundaryGate) predictSideEffects(tool string, params map[string]any) []PredictedSideEffect {
	var out []PredictedSideEffect

	fsTarget := stringParam(params, "path", "file", "filepath")
	for _, op := range []string{"read", "write", "delete"} {
		if t := DetectFilesystemSideEffect(tool, params, op); t != "" {
			out = append(out, PredictedSideEffect{Type: t, Target: fsTarget, Confidence: "high"})
		}
	}

	if t := DetectNetworkSideEffect(tool, params, "egress"); t != "" {
		out = append(out, PredictedSideEffect{Type: t, Target: stringParam(params, "url", "host", "hostname"), Confidence: "high"})
	}

	if t := DetectExecSideEffect(tool, params); t != "" {
		out = append(out, PredictedSideEffect{Type: t, Target: stringParam(params, "command", "cmd", "script"), Confidence: "high"})
	}

	return out
}

func stringParam(params map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := params[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func hasAnyParam(params map[string]any, keys ...string) bool {
	for _, k := range keys {
		if v, ok := params[k]; ok && v != nil && v != "" {
			return true
		}
	}
	return false
}

func containsKeyword(tool string, keywords ...string) bool {
	lower := strings.ToLower(tool)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// DetectFilesystemSideEffect guesses whether a call touches the
// filesystem from its tool name and params. operation selects which
// SideEffectType a positive match yields: "read" (default), "write",
// or "delete".
func DetectFilesystemSideEffect(tool string, params map[string]any, operation string) SideEffectType {
	if !containsKeyword(tool, "file", "dir", "path", "read", "write", "delete", "create", "mkdir") {
		return ""
	}
	if !hasAnyParam(params, "path", "file", "filepath") {
		return ""
	}
	switch operation {
	case "write":
		return FSWrite
	case "delete":
		return FSDelete
	default:
		return FSRead
	}
}

// DetectNetworkSideEffect guesses whether a call makes a network
// request. direction selects "egress" (default), "ingress", or
// "private".
func DetectNetworkSideEffect(tool string, params map[string]any, direction string) SideEffectType {
	if !containsKeyword(tool, "http", "request", "fetch", "url", "host", "api", "client") {
		return ""
	}
	if !hasAnyParam(params, "url", "host", "hostname") {
		return ""
	}
	switch direction {
	case "ingress":
		return NetIngress
	case "private":
		return NetPrivate
	default:
		return NetEgress
	}
}

// DetectExecSideEffect guesses whether a call spawns a process. The
// specific SideEffectType depends on the tool name: "subprocess" yields
// ExecSubprocess, "script" yields ExecScript, anything else matching
// yields the generic ExecCommand.
func DetectExecSideEffect(tool string, params map[string]any) SideEffectType {
	if !containsKeyword(tool, "exec", "run", "command", "shell", "subprocess", "script") {
		return ""
	}
	if !hasAnyParam(params, "command", "cmd", "script") {
		return ""
	}
	lower := strings.ToLower(tool)
	switch {
	case strings.Contains(lower, "subprocess"):
		return ExecSubprocess
	case strings.Contains(lower, "script"):
		return ExecScript
	default:
		return ExecCommand
	}
}
