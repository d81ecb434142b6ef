package taint

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

// secretPatterns mirror the DLP enricher's pattern set: anything that
// matches is treated as secret-sensitivity regardless of where it
// appears.
var secretPatterns = map[string]*regexp.Regexp{
	"OPENAI_API_KEY":  regexp.MustCompile(`sk-[A-Za-z0-9]{48}`),
	"AWS_ACCESS_KEY":  regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	"GITHUB_TOKEN":    regexp.MustCompile(`gh[ps]_[A-Za-z0-9]{36}`),
	"PRIVATE_KEY":     regexp.MustCompile(`-----BEGIN (?:RSA |DSA |EC )?PRIVATE KEY-----`),
	"GENERIC_API_KEY": regexp.MustCompile(`(?i)sk_live_[A-Za-z0-9]{10,}`),
}

var piiPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`),
	regexp.MustCompile(`\b\d{3}[-.\s]\d{3}[-.\s]\d{4}\b`),
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
}

// confidentialKeyHints are param/output key fragments that mark a value
// confidential even when its content carries no recognizable pattern.
var confidentialKeyHints = []string{
	"customer", "confidential", "internal_only", "proprietary", "salary", "ssn",
}

// InferSensitivity walks output looking for secret patterns, PII
// patterns, and confidential-sounding keys, returning the highest
// sensitivity found and a short reason string. A value with no match
// defaults to internal — the same conservative default the Python
// enrichers use for un-patterned data.
func InferSensitivity(output any) (DataSensitivity, string) {
	best := SensitivityInternal
	reason := "no sensitive pattern matched"

	text := flattenToText(output)
	for name, pattern := range secretPatterns {
		if pattern.MatchString(text) {
			return SensitivitySecret, "matched secret pattern " + name
		}
	}
	for _, pattern := range piiPatterns {
		if pattern.MatchString(text) {
			best, reason = SensitivityPII, "matched pii pattern"
		}
	}
	if best.rank() < SensitivityPII.rank() {
		if hasConfidentialKey(output) {
			best, reason = SensitivityConfidential, "confidential key name present"
		}
	}
	return best, reason
}

func hasConfidentialKey(v any) bool {
	switch vv := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			lower := strings.ToLower(k)
			for _, hint := range confidentialKeyHints {
				if strings.Contains(lower, hint) {
					return true
				}
			}
			if hasConfidentialKey(vv[k]) {
				return true
			}
		}
	case []any:
		for _, item := range vv {
			if hasConfidentialKey(item) {
				return true
			}
		}
	}
	return false
}

// flattenToText best-effort converts an arbitrary output value into a
// text blob for pattern matching, the same coercion the DLP enricher
// applies before scanning.
func flattenToText(v any) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	case []byte:
		return string(vv)
	default:
		b, err := json.Marshal(vv)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
