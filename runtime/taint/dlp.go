package taint

import (
	"regexp"
	"sort"
)

// maxScanChars bounds how much of a text blob DLP scanning touches, the
// same 64KiB fast-path cap the egress DLP enricher uses.
const maxScanChars = 65536

// redactionToken replaces a matched secret in sanitized output.
const redactionToken = "[REDACTED]"

// DLPPatterns is the default pattern registry, keyed by finding name.
var DLPPatterns = map[string]*regexp.Regexp{
	"OPENAI_API_KEY": regexp.MustCompile(`sk-[A-Za-z0-9]{48}`),
	"AWS_ACCESS_KEY": regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	"GITHUB_TOKEN":   regexp.MustCompile(`gh[ps]_[A-Za-z0-9]{36}`),
	"PRIVATE_KEY":    regexp.MustCompile(`-----BEGIN (?:RSA |DSA |EC )?PRIVATE KEY-----`),
}

// DLPScanner scans bounded text for sensitive patterns and can redact
// matches in place. It is shared between the sink SANITIZE action here
// and the egress proxy's DLP enricher.
type DLPScanner struct {
	Patterns map[string]*regexp.Regexp
}

func NewDLPScanner() *DLPScanner {
	patterns := make(map[string]*regexp.Regexp, len(DLPPatterns))
	for name, pattern := range DLPPatterns {
		patterns[name] = pattern
	}
	return &DLPScanner{Patterns: patterns}
}

// Scan returns the sorted names of every pattern that matches text,
// bounded to maxScanChars.
func (s *DLPScanner) Scan(text string) []string {
	if len(text) > maxScanChars {
		text = text[:maxScanChars]
	}
	var hits []string
	for name, pattern := range s.Patterns {
		if pattern.MatchString(text) {
			hits = append(hits, name)
		}
	}
	sort.Strings(hits)
	return hits
}

// Redact replaces every pattern match in text with redactionToken and
// reports whether anything changed.
func (s *DLPScanner) Redact(text string) (string, bool) {
	redacted := false
	out := text
	for _, pattern := range s.Patterns {
		next := pattern.ReplaceAllString(out, redactionToken)
		if next != out {
			redacted = true
			out = next
		}
	}
	return out, redacted
}

// RedactValue recursively redacts string leaves within an arbitrary
// JSON-shaped value (maps, slices, strings), leaving other types
// untouched. It never mutates v in place — callers get back a sanitized
// copy, preserving the original for audit trails.
func (s *DLPScanner) RedactValue(v any) (any, bool) {
	switch vv := v.(type) {
	case string:
		return s.Redact(vv)
	case map[string]any:
		out := make(map[string]any, len(vv))
		changed := false
		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			redacted, did := s.RedactValue(vv[k])
			out[k] = redacted
			changed = changed || did
		}
		return out, changed
	case []any:
		out := make([]any, len(vv))
		did := false
		for i, item := range vv {
			redacted, d := s.RedactValue(item)
			out[i] = redacted
			did = did || d
		}
		return out, did
	default:
		return v, false
	}
}
