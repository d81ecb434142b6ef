// Package drift implements the Replay & Drift Engine's post-run side:
// it builds a per-tool parameter baseline from a run's trace and scores
// every later call against it, surfacing both steady low-level drift
// and the inflection points that mark a behavior change worth a human
// looking at.
//
// Unlike runtime/replay (which answers HIT/MISS during execution),
// drift is a post-run analysis: it consumes a closed trace, never the
// live pipeline.
package drift

// ParamSnapshot is one step's tool call parameters at a point in the
// run, extracted from a STEP_START trace event.
type ParamSnapshot struct {
	Seq    uint64
	Tool   string
	Params map[string]any
}

// BaselineStrategy selects how a per-tool baseline is built from its
// snapshots.
type BaselineStrategy string

// Recognized baseline strategies.
const (
	StrategyFirstOccurrence BaselineStrategy = "first_occurrence"
	StrategyMedian          BaselineStrategy = "median"
	StrategyPercentile      BaselineStrategy = "percentile"
	StrategySegmented       BaselineStrategy = "segmented"
)

// Config tunes baseline construction and drift scoring. The zero value
// is not valid; use DefaultConfig.
type Config struct {
	BaselineStrategy BaselineStrategy
	BaselinePercentile float64
	// BaselineSegmentWindow, when set, segments a tool's snapshots into
	// fixed-size windows instead of segmenting by inflection point.
	BaselineSegmentWindow int
	// IgnoreFields are top-level parameter keys excluded from drift
	// scoring entirely (dynamic fields like request ids). Nested paths
	// are not matched — only top-level keys.
	IgnoreFields []string
}

// DefaultConfig returns the default drift configuration: first
// occurrence baselines, median's 50th percentile, and the standard
// ignore list.
func DefaultConfig() *Config {
	return &Config{
		BaselineStrategy:   StrategyFirstOccurrence,
		BaselinePercentile: 50.0,
		IgnoreFields:       []string{"request_id", "timestamp"},
	}
}

// ChangeType classifies how a single field differs from its baseline.
type ChangeType string

// Recognized change types, weighted by DriftDelta contribution.
const (
	ChangeValueChanged     ChangeType = "value_changed"
	ChangeMagnitudeChanged ChangeType = "magnitude_changed"
	ChangeDomainChanged    ChangeType = "domain_changed"
)

// Severity classifies a Change for reporting.
type Severity string

// Recognized severities.
const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// weight is the fixed drift contribution of a change type. Magnitude
// changes always contribute 2.0 regardless of how large the ratio is;
// only Severity reflects the ratio's size.
func (c ChangeType) weight() float64 {
	switch c {
	case ChangeValueChanged:
		return 1.0
	case ChangeMagnitudeChanged:
		return 2.0
	case ChangeDomainChanged:
		return 5.0
	default:
		return 0
	}
}

// Change describes one field's deviation from baseline.
type Change struct {
	FieldPath     string
	ChangeType    ChangeType
	BaselineValue any
	CurrentValue  any
	Severity      Severity
	Reason        string
}

// DriftPoint is one step's drift score against its tool's baseline.
type DriftPoint struct {
	Seq             uint64
	TS              string
	Tool            string
	DriftDelta      float64
	DriftCumulative float64
	TopChanges      []Change
}

// InflectionPoint marks a step whose drift jumped sharply relative to
// either an absolute threshold or the immediately preceding step.
type InflectionPoint struct {
	Seq        uint64
	DriftDelta float64
	Tool       string
	Reason     string
}

// Result is the full drift analysis of a trace.
type Result struct {
	DriftPoints      []DriftPoint
	InflectionPoints []InflectionPoint
	Baseline         map[string]map[string]any
}
