package drift

import (
	"github.com/failcore/runtime/runtime/trace"
)

// extractParamSnapshots reads every STEP_START event's tool call
// parameters, in trace order. It reads the flat {"params": {...}}
// shape runtime/pipeline actually emits (runtime/replay's engine reads
// the same shape) — a deliberate single wire format across the
// runtime rather than mirroring a second, more deeply nested shape.
func extractParamSnapshots(events []trace.Event) []ParamSnapshot {
	var snapshots []ParamSnapshot
	for _, evt := range events {
		if evt.Event.Type != trace.EventStepStart || evt.Event.Step == nil {
			continue
		}
		var body struct {
			Params map[string]any `json:"params"`
		}
		if err := evt.DataAs(&body); err != nil {
			continue
		}
		snapshots = append(snapshots, ParamSnapshot{
			Seq:    evt.Seq,
			Tool:   evt.Event.Step.Tool,
			Params: body.Params,
		})
	}
	return snapshots
}

// ComputeDrift runs the full drift analysis over a trace's STEP_START
// events: it builds a per-tool baseline, scores every snapshot against
// its tool's baseline, and flags inflection points. cfg may be nil to
// use DefaultConfig.
func ComputeDrift(events []trace.Event, cfg *Config) *Result {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	snapshots := extractParamSnapshots(events)
	return computeDriftFromSnapshots(snapshots, cfg)
}

func computeDriftFromSnapshots(snapshots []ParamSnapshot, cfg *Config) *Result {
	baseline := buildBaseline(snapshots, cfg, nil)

	points := computeDriftPoints(snapshots, baseline, cfg)
	inflections := detectInflectionPoints(points)

	if cfg.BaselineStrategy == StrategySegmented && len(inflections) > 0 {
		baseline = buildBaseline(snapshots, cfg, inflections)
		points = computeDriftPoints(snapshots, baseline, cfg)
		inflections = detectInflectionPoints(points)
	}

	return &Result{
		DriftPoints:      points,
		InflectionPoints: inflections,
		Baseline:         baseline,
	}
}

// computeDriftPoints scores every snapshot against its tool's baseline.
// drift_delta is the sum of change weights for that step alone, never
// cumulative; drift_cumulative is the running total across all steps
// processed so far, in trace order (not scoped per tool).
func computeDriftPoints(snapshots []ParamSnapshot, baseline map[string]map[string]any, cfg *Config) []DriftPoint {
	points := make([]DriftPoint, 0, len(snapshots))
	cumulative := 0.0

	for _, snap := range snapshots {
		toolBaseline := baseline[snap.Tool]
		normalized := normalizeParams(snap.Params, cfg)

		changes := classifyChanges(toolBaseline, normalized)
		delta := 0.0
		for _, c := range changes {
			delta += c.ChangeType.weight()
		}
		cumulative += delta

		points = append(points, DriftPoint{
			Seq:             snap.Seq,
			Tool:            snap.Tool,
			DriftDelta:      delta,
			DriftCumulative: cumulative,
			TopChanges:      changes,
		})
	}
	return points
}

// detectInflectionPoints flags steps whose drift_delta crosses the
// absolute threshold (10.0) or jumps to at least twice the immediately
// preceding step's drift_delta (only when that preceding delta is
// positive, so the relative rule cannot fire off a zero baseline).
func detectInflectionPoints(points []DriftPoint) []InflectionPoint {
	const absoluteThreshold = 10.0
	const relativeMultiplier = 2.0

	var inflections []InflectionPoint
	previous := 0.0
	for i, p := range points {
		triggered := p.DriftDelta >= absoluteThreshold
		reason := "drift_delta exceeded the 10.0 absolute threshold"
		if !triggered && previous > 0 && p.DriftDelta >= relativeMultiplier*previous {
			triggered = true
			reason = "drift_delta at least doubled relative to the previous step"
		}
		if triggered {
			inflections = append(inflections, InflectionPoint{
				Seq:        p.Seq,
				DriftDelta: p.DriftDelta,
				Tool:       p.Tool,
				Reason:     reason,
			})
		}
		previous = points[i].DriftDelta
	}
	return inflections
}
