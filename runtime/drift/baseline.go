package drift

import (
	"fmt"
	"sort"
)

// buildBaseline groups snapshots by tool and builds one baseline per
// tool according to cfg.BaselineStrategy. Grounded on
// failcore/core/replay/drift/baseline.py's build_baseline: strategy
// selection is per-run, not per-tool, and first_occurrence is the
// default because it is the cheapest and most predictable to reason
// about in a report.
func buildBaseline(snapshots []ParamSnapshot, cfg *Config, inflections []InflectionPoint) map[string]map[string]any {
	byTool := map[string][]ParamSnapshot{}
	for _, s := range snapshots {
		byTool[s.Tool] = append(byTool[s.Tool], s)
	}

	out := make(map[string]map[string]any, len(byTool))
	for tool, snaps := range byTool {
		if cfg.BaselineStrategy == StrategySegmented {
			out[tool] = buildSegmentedBaseline(snaps, cfg, inflections)
		} else {
			out[tool] = buildSingleBaseline(snaps, cfg)
		}
	}
	return out
}

func buildSingleBaseline(snaps []ParamSnapshot, cfg *Config) map[string]any {
	if len(snaps) == 0 {
		return map[string]any{}
	}

	normalized := make([]map[string]any, len(snaps))
	for i, s := range snaps {
		normalized[i] = normalizeParams(s.Params, cfg)
	}

	var baseline map[string]any
	switch cfg.BaselineStrategy {
	case StrategyMedian:
		baseline = computeMedianBaseline(normalized)
	case StrategyPercentile:
		baseline = computePercentileBaseline(normalized, cfg.BaselinePercentile)
	default: // first_occurrence, and any unrecognized value
		baseline = copyMap(normalized[0])
	}
	return baseline
}

// buildSegmentedBaseline splits a tool's snapshots into segments (by
// inflection point, else a fixed window, else a single segment) and
// computes a median baseline per segment. Segment 0's baseline is the
// primary baseline used for comparison; the full per-segment structure
// is kept under "_baseline_metadata" for reporting.
func buildSegmentedBaseline(snaps []ParamSnapshot, cfg *Config, inflections []InflectionPoint) map[string]any {
	if len(snaps) == 0 {
		return map[string]any{}
	}

	segments := determineSegments(snaps, inflections, cfg)
	segmentBaselines := map[string]any{}

	var primary map[string]any
	for i, seg := range segments {
		var segSnaps []map[string]any
		for _, s := range snaps {
			if s.Seq >= seg[0] && s.Seq <= seg[1] {
				segSnaps = append(segSnaps, normalizeParams(s.Params, cfg))
			}
		}
		if len(segSnaps) == 0 {
			continue
		}
		b := computeMedianBaseline(segSnaps)
		segmentBaselines[fmt.Sprintf("segment_%d", i)] = map[string]any{
			"baseline":       b,
			"window":         [2]uint64{seg[0], seg[1]},
			"snapshot_count": len(segSnaps),
		}
		if i == 0 {
			primary = b
		}
	}

	out := copyMap(primary)
	if out == nil {
		out = map[string]any{}
	}
	out["_baseline_metadata"] = map[string]any{
		"strategy":      string(StrategySegmented),
		"segments":      segmentBaselines,
		"total_segments": len(segments),
	}
	return out
}

func determineSegments(snaps []ParamSnapshot, inflections []InflectionPoint, cfg *Config) [][2]uint64 {
	first, last := snaps[0].Seq, snaps[len(snaps)-1].Seq

	if len(inflections) > 0 {
		seqs := make([]uint64, len(inflections))
		for i, ip := range inflections {
			seqs[i] = ip.Seq
		}
		sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })

		var segments [][2]uint64
		start := first
		for _, seq := range seqs {
			segments = append(segments, [2]uint64{start, seq - 1})
			start = seq
		}
		segments = append(segments, [2]uint64{start, last})
		return segments
	}

	if cfg.BaselineSegmentWindow > 0 {
		window := uint64(cfg.BaselineSegmentWindow)
		var segments [][2]uint64
		start := first
		for start <= last {
			end := start + window - 1
			if end > last {
				end = last
			}
			segments = append(segments, [2]uint64{start, end})
			start = end + 1
		}
		return segments
	}

	return [][2]uint64{{first, last}}
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
