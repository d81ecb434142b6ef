package drift

import (
	"fmt"
	"net/url"
	"strings"
)

// domainFields are field names, matched against the final segment of a
// dotted field path, whose changes are evaluated
// against the domain heuristic (host/path/endpoint identity) rather
// than treated as an ordinary value change. Grounded on
// tests/drift/test_network_drift.py and
// tests/replay/drift/test_drift_basic.py's path scenario.
var domainFields = map[string]bool{
	"host": true, "hostname": true, "url": true, "uri": true,
	"endpoint": true, "domain": true, "path": true,
	"target": true, "destination": true,
}

// classifyChanges compares current against baseline field by field
// (including nested paths) and returns every detected Change.
func classifyChanges(baseline, current map[string]any) []Change {
	fields := map[string]bool{}
	for _, k := range flattenKeys(baseline, "") {
		fields[k] = true
	}
	for _, k := range flattenKeys(current, "") {
		fields[k] = true
	}

	var changes []Change
	for field := range fields {
		bv, bok := getNestedValue(baseline, field)
		cv, cok := getNestedValue(current, field)
		if bok && cok && equalValue(bv, cv) {
			continue
		}
		if !bok {
			bv = nil
		}
		if !cok {
			cv = nil
		}
		changes = append(changes, classifyOne(field, bv, cv))
	}
	return changes
}

func classifyOne(field string, baselineValue, currentValue any) Change {
	leaf := field
	if i := strings.LastIndexByte(field, '.'); i >= 0 {
		leaf = field[i+1:]
	}

	if domainFields[leaf] {
		if sameDomain(leaf, baselineValue, currentValue) {
			return valueChange(field, baselineValue, currentValue, "port or query changed, domain unchanged")
		}
		return Change{
			FieldPath:     field,
			ChangeType:    ChangeDomainChanged,
			BaselineValue: baselineValue,
			CurrentValue:  currentValue,
			Severity:      SeverityHigh,
			Reason:        fmt.Sprintf("%s changed destination from %v to %v", leaf, baselineValue, currentValue),
		}
	}

	if bf, bok := asFloat(baselineValue); bok {
		if cf, cok := asFloat(currentValue); cok && magnitudeRatio(bf, cf) >= 5 {
			return magnitudeChange(field, bf, cf, baselineValue, currentValue)
		}
	}

	return valueChange(field, baselineValue, currentValue, fmt.Sprintf("%s changed from %v to %v", field, baselineValue, currentValue))
}

func valueChange(field string, baselineValue, currentValue any, reason string) Change {
	return Change{
		FieldPath:     field,
		ChangeType:    ChangeValueChanged,
		BaselineValue: baselineValue,
		CurrentValue:  currentValue,
		Severity:      SeverityLow,
		Reason:        reason,
	}
}

func magnitudeChange(field string, baseline, current float64, baselineValue, currentValue any) Change {
	ratio := magnitudeRatio(baseline, current)
	severity := SeverityMedium
	if ratio >= 20 {
		severity = SeverityHigh
	}
	return Change{
		FieldPath:     field,
		ChangeType:    ChangeMagnitudeChanged,
		BaselineValue: baselineValue,
		CurrentValue:  currentValue,
		Severity:      severity,
		Reason:        fmt.Sprintf("%s changed by %.1fx (%v -> %v)", field, ratio, baselineValue, currentValue),
	}
}

func magnitudeRatio(baseline, current float64) float64 {
	if baseline == 0 {
		if current == 0 {
			return 1
		}
		return absFloat(current)
	}
	a, b := absFloat(baseline), absFloat(current)
	if a > b {
		if b == 0 {
			return a
		}
		return a / b
	}
	if a == 0 {
		return b
	}
	return b / a
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// sameDomain reports whether baseline and current resolve to the same
// destination identity for a domain-ish field: for host/url-like
// fields, the hostname without port; for path-like fields, any
// difference is treated as a domain change (a path root crossing is
// itself the security-relevant event).
func sameDomain(field string, baselineValue, currentValue any) bool {
	if field == "path" || field == "target" || field == "destination" || field == "domain" {
		return equalValue(baselineValue, currentValue)
	}

	bHost := extractHost(toString(baselineValue))
	cHost := extractHost(toString(currentValue))
	return bHost == cHost
}

// extractHost strips scheme, userinfo, path, and port from a host or
// URL-shaped string, leaving only the hostname for comparison.
func extractHost(s string) string {
	if s == "" {
		return s
	}
	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil && u.Hostname() != "" {
			return u.Hostname()
		}
	}
	if u, err := url.Parse("//" + s); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	if i := strings.LastIndexByte(s, ':'); i >= 0 && isAllDigits(s[i+1:]) {
		return s[:i]
	}
	return s
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func equalValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}
