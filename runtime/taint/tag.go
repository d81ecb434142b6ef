// Package taint implements the data-flow tracking and leak-prevention
// engine: source tools mark their output as tainted, taint propagates
// through declared dependencies and through matching values reappearing
// in later params, and sink tools are checked against a configurable
// policy (BLOCK, SANITIZE, REQUIRE_APPROVAL) before they run.
package taint

// DataSensitivity orders the sensitivity lattice a TaintTag carries.
// Values compare by rank, not lexical order: public < internal <
// confidential < pii < secret.
type DataSensitivity string

const (
	SensitivityPublic       DataSensitivity = "public"
	SensitivityInternal     DataSensitivity = "internal"
	SensitivityConfidential DataSensitivity = "confidential"
	SensitivityPII          DataSensitivity = "pii"
	SensitivitySecret       DataSensitivity = "secret"
)

var sensitivityRank = map[DataSensitivity]int{
	SensitivityPublic:       0,
	SensitivityInternal:     1,
	SensitivityConfidential: 2,
	SensitivityPII:          3,
	SensitivitySecret:       4,
}

// ParseSensitivity defaults to internal on an unrecognized value, the
// same conservative default the detectors fall back to when a tool
// output doesn't match any known sensitive pattern.
func ParseSensitivity(s string) DataSensitivity {
	switch DataSensitivity(s) {
	case SensitivityPublic, SensitivityInternal, SensitivityConfidential, SensitivityPII, SensitivitySecret:
		return DataSensitivity(s)
	default:
		return SensitivityInternal
	}
}

func (s DataSensitivity) rank() int {
	if r, ok := sensitivityRank[s]; ok {
		return r
	}
	return sensitivityRank[SensitivityInternal]
}

// AtLeast reports whether s is at or above min in the sensitivity lattice.
func (s DataSensitivity) AtLeast(min DataSensitivity) bool {
	return s.rank() >= min.rank()
}

// MaxSensitivity returns the highest-ranked sensitivity among tags, or
// internal if tags is empty.
func MaxSensitivity(tags []TaintTag) DataSensitivity {
	max := SensitivityInternal
	found := false
	for _, t := range tags {
		if !found || t.Sensitivity.rank() > max.rank() {
			max = t.Sensitivity
			found = true
		}
	}
	return max
}

// TaintSource names where a TaintTag's sensitivity was attributed from.
type TaintSource string

const (
	SourceUserInput     TaintSource = "user_input"
	SourceToolOutput    TaintSource = "tool_output"
	SourceExternalFetch TaintSource = "external_fetch"
	SourceSystemEvent   TaintSource = "system_event"
	SourceUnknown       TaintSource = "unknown"
)

// TaintTag records one attribution of sensitive data to a step's output.
// A step can carry several tags (e.g. a PII tag from its own output plus
// an inherited secret tag from an upstream dependency).
type TaintTag struct {
	Sensitivity      DataSensitivity
	Source           TaintSource
	SourceTool       string
	SourceStepID     string
	PropagationDepth int
}

func bumpDepth(tags []TaintTag) []TaintTag {
	out := make([]TaintTag, len(tags))
	for i, t := range tags {
		t.PropagationDepth++
		out[i] = t
	}
	return out
}
