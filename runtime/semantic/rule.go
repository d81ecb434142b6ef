package semantic

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Severity orders rule violations for the guard's minimum-severity gate.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// ParseSeverity parses a severity string, defaulting to high on an
// unrecognized value (fail toward the stricter posture).
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(s)) {
	case SeverityLow:
		return SeverityLow
	case SeverityMedium:
		return SeverityMedium
	case SeverityCritical:
		return SeverityCritical
	default:
		return SeverityHigh
	}
}

// atLeast reports whether s meets or exceeds min.
func (s Severity) atLeast(min Severity) bool {
	return severityRank[s] >= severityRank[min]
}

// Category groups rules by the kind of intent they detect.
type Category string

const (
	CategorySecretLeakage  Category = "secret_leakage"
	CategoryParamPollution Category = "param_pollution"
	CategoryDangerousCombo Category = "dangerous_combo"
	CategoryPathTraversal  Category = "path_traversal"
	CategoryInjection      Category = "injection"
)

// Finding is what a Rule reports when it matches.
type Finding struct {
	Message  string
	Evidence map[string]any
}

// Rule is a single deterministic detector. Match receives the tool name,
// raw params, and the parsed AST built for this call; it returns ok=true
// plus a Finding when the call matches the rule's pattern.
type Rule struct {
	ID          string
	Category    Category
	Severity    Severity
	Description string
	Match       func(tool string, params map[string]any, parsed ParsedParameters) (bool, Finding)
}

// RuleRegistry holds the active set of semantic rules. It is safe for
// concurrent read/registration, mirroring the validator Registry's
// locking shape.
type RuleRegistry struct {
	mu    sync.RWMutex
	rules map[string]Rule
}

// NewRuleRegistry returns an empty registry.
func NewRuleRegistry() *RuleRegistry {
	return &RuleRegistry{rules: make(map[string]Rule)}
}

// Register adds or replaces a rule.
func (r *RuleRegistry) Register(rule Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rule.ID] = rule
}

// List returns all registered rules sorted by id.
func (r *RuleRegistry) List() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns a rule by id.
func (r *RuleRegistry) Get(id string) (Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[id]
	return rule, ok
}

// sortedParsedKeys returns parsed's keys in a stable order so that rule
// matching over a map never depends on Go's randomized map iteration.
func sortedParsedKeys(parsed ParsedParameters) []string {
	keys := make([]string, 0, len(parsed))
	for k := range parsed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultRules registers the built-in rule set, grounded on the
// detectors implied by the parser helpers: dangerous shell flag
// combinations, likely SQL injection, path-traversal intent, and
// SSRF-shaped URL targets.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "dangerous_shell_command",
			Category:    CategoryDangerousCombo,
			Severity:    SeverityHigh,
			Description: "Shell command uses a destructive flag combination (recursive+force delete, 777 permissions, pipe-to-execute).",
			Match: func(tool string, params map[string]any, parsed ParsedParameters) (bool, Finding) {
				for _, key := range sortedParsedKeys(parsed) {
					v := parsed[key]
					ast, ok := v.(ShellAST)
					if !ok {
						continue
					}
					dangerous := ExtractDangerousFlags(ast)
					if len(dangerous) == 0 {
						continue
					}
					return true, Finding{
						Message: fmt.Sprintf("dangerous shell invocation in %q: %s", key, strings.Join(dangerous, ", ")),
						Evidence: map[string]any{
							"field": key, "program": ast.Program, "flags": dangerous,
						},
					}
				}
				return false, Finding{}
			},
		},
		{
			ID:          "sql_injection_likely",
			Category:    CategoryInjection,
			Severity:    SeverityHigh,
			Description: "Query parameter shows multiple dangerous SQL keywords, a stacked/commented statement, or a union-select pair.",
			Match: func(tool string, params map[string]any, parsed ParsedParameters) (bool, Finding) {
				for _, key := range sortedParsedKeys(parsed) {
					v := parsed[key]
					feat, ok := v.(SQLFeatures)
					if !ok {
						continue
					}
					if !IsInjectionLikely(feat) {
						continue
					}
					return true, Finding{
						Message: fmt.Sprintf("SQL injection pattern detected in %q", key),
						Evidence: map[string]any{
							"field": key, "keywords": feat.Keywords,
							"has_stacked": feat.HasStacked, "has_comments": feat.HasComments, "has_union": feat.HasUnion,
						},
					}
				}
				return false, Finding{}
			},
		},
		{
			ID:          "ssrf_intent",
			Category:    CategoryPathTraversal,
			Severity:    SeverityMedium,
			Description: "URL parameter targets a loopback/private/link-local host.",
			Match: func(tool string, params map[string]any, parsed ParsedParameters) (bool, Finding) {
				for _, key := range sortedParsedKeys(parsed) {
					v := parsed[key]
					u, ok := v.(URLNorm)
					if !ok || !u.IsInternal {
						continue
					}
					return true, Finding{
						Message: fmt.Sprintf("URL parameter %q targets an internal host", key),
						Evidence: map[string]any{"field": key, "host": u.Host, "reason": u.InternalReason},
					}
				}
				return false, Finding{}
			},
		},
		{
			ID:          "path_traversal_intent",
			Category:    CategoryPathTraversal,
			Severity:    SeverityMedium,
			Description: "Path parameter contains parent-directory segments or targets a known-sensitive absolute path.",
			Match: func(tool string, params map[string]any, parsed ParsedParameters) (bool, Finding) {
				for _, key := range sortedParsedKeys(parsed) {
					v := parsed[key]
					p, ok := v.(PathNorm)
					if !ok {
						continue
					}
					if !p.HasTraversal && !p.IsSensitive {
						continue
					}
					return true, Finding{
						Message: fmt.Sprintf("path parameter %q shows traversal/sensitive-target intent", key),
						Evidence: map[string]any{
							"field": key, "parent_count": p.ParentCount, "is_sensitive": p.IsSensitive,
						},
					}
				}
				return false, Finding{}
			},
		},
	}
}
