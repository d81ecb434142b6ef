package drift

import (
	"fmt"
	"sort"
)

func toString(v any) string { return fmt.Sprint(v) }

// computeMedianBaseline computes, for every field path present across
// normalized snapshots, a representative median value: numeric median
// for numbers, most-common value for strings and bools, a
// length-truncated copy of the first snapshot's list for slices.
func computeMedianBaseline(normalized []map[string]any) map[string]any {
	if len(normalized) == 0 {
		return map[string]any{}
	}
	if len(normalized) == 1 {
		return copyMap(normalized[0])
	}

	fields := collectFields(normalized)
	baseline := map[string]any{}
	for _, path := range fields {
		values := collectValues(normalized, path)
		if len(values) == 0 {
			continue
		}
		setNestedValue(baseline, path, medianValue(values))
	}
	return baseline
}

func computePercentileBaseline(normalized []map[string]any, percentile float64) map[string]any {
	if len(normalized) == 0 {
		return map[string]any{}
	}
	if len(normalized) == 1 {
		return copyMap(normalized[0])
	}

	fields := collectFields(normalized)
	baseline := map[string]any{}
	for _, path := range fields {
		values := collectValues(normalized, path)
		if len(values) == 0 {
			continue
		}
		setNestedValue(baseline, path, percentileValue(values, percentile))
	}
	return baseline
}

func collectFields(normalized []map[string]any) []string {
	seen := map[string]bool{}
	var fields []string
	for _, snap := range normalized {
		for _, k := range flattenKeys(snap, "") {
			if !seen[k] {
				seen[k] = true
				fields = append(fields, k)
			}
		}
	}
	return fields
}

func collectValues(normalized []map[string]any, path string) []any {
	var values []any
	for _, snap := range normalized {
		if v, ok := getNestedValue(snap, path); ok && v != nil {
			values = append(values, v)
		}
	}
	return values
}

func medianValue(values []any) any {
	if nums, ok := allFloats(values); ok {
		return median(nums)
	}
	if allBools(values) {
		count := 0
		for _, v := range values {
			if v.(bool) {
				count++
			}
		}
		return count > len(values)/2
	}
	if strs, ok := allStrings(values); ok {
		return mostCommon(strs)
	}
	// Lists: use the first snapshot's list truncated to the median length.
	if lists, ok := allLists(values); ok {
		lens := make([]float64, len(lists))
		for i, l := range lists {
			lens[i] = float64(len(l))
		}
		medianLen := int(median(lens))
		if medianLen == 0 || len(lists[0]) == 0 {
			return []any{}
		}
		if medianLen > len(lists[0]) {
			medianLen = len(lists[0])
		}
		return append([]any{}, lists[0][:medianLen]...)
	}
	return mostCommon(toStrings(values))
}

func percentileValue(values []any, percentile float64) any {
	if nums, ok := allFloats(values); ok {
		sorted := append([]float64{}, nums...)
		sort.Float64s(sorted)
		idx := int(float64(len(sorted)) * percentile / 100.0)
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		return sorted[idx]
	}
	return medianValue(values)
}

func median(nums []float64) float64 {
	sorted := append([]float64{}, nums...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func allFloats(values []any) ([]float64, bool) {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		f, ok := asFloat(v)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func allBools(values []any) bool {
	for _, v := range values {
		if _, ok := v.(bool); !ok {
			return false
		}
	}
	return true
}

func allStrings(values []any) ([]string, bool) {
	out := make([]string, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func allLists(values []any) ([][]any, bool) {
	out := make([][]any, 0, len(values))
	for _, v := range values {
		l, ok := v.([]any)
		if !ok {
			return nil, false
		}
		out = append(out, l)
	}
	return out, true
}

func toStrings(values []any) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = toString(v)
	}
	return out
}

func mostCommon(values []string) string {
	counts := map[string]int{}
	order := []string{}
	for _, v := range values {
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}
	best := order[0]
	for _, v := range order {
		if counts[v] > counts[best] {
			best = v
		}
	}
	return best
}
