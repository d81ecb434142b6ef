package semantic

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/failcore/runtime/runtime/telemetry"
)

// Guard is the pre-execution intent inspector. Its default posture is
// disabled (zero cost to construct and not called); the pipeline only
// invokes Check when a run context has explicitly enabled the guard.
type Guard struct {
	Registry          *RuleRegistry
	MinSeverity       Severity
	EnabledCategories map[Category]bool // nil means all categories enabled
	BlockOnViolation  bool
	Logger            telemetry.Logger

	exceptions int // count of rule panics swallowed, for diagnostics
}

// NewGuard returns a Guard wired with the default rule set, minimum
// severity HIGH, and block-on-violation enabled — the documented default
// posture for a guard that has been turned on.
func NewGuard(logger telemetry.Logger) *Guard {
	reg := NewRuleRegistry()
	for _, rule := range DefaultRules() {
		reg.Register(rule)
	}
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Guard{
		Registry:         reg,
		MinSeverity:      SeverityHigh,
		BlockOnViolation: true,
		Logger:           logger,
	}
}

// categoryEnabled reports whether cat should be evaluated under the
// current configuration.
func (g *Guard) categoryEnabled(cat Category) bool {
	if g.EnabledCategories == nil {
		return true
	}
	return g.EnabledCategories[cat]
}

// Check parses params into a unified AST and runs every enabled rule
// against it, returning a Verdict with any violations at or above the
// configured minimum severity. A rule that panics is logged and treated
// as a non-match — a broken detector must never itself become a block.
func (g *Guard) Check(ctx context.Context, tool string, params map[string]any) Verdict {
	parsed := g.parseParameters(tool, params)

	var violations []Violation
	for _, rule := range g.Registry.List() {
		if !g.categoryEnabled(rule.Category) {
			continue
		}
		if !rule.Severity.atLeast(g.MinSeverity) {
			continue
		}
		matched, finding := g.runRule(ctx, rule, tool, params, parsed)
		if !matched {
			continue
		}
		violations = append(violations, Violation{
			RuleID:   rule.ID,
			Category: rule.Category,
			Severity: rule.Severity,
			Message:  finding.Message,
			Evidence: finding.Evidence,
		})
	}

	return Verdict{
		Tool:        tool,
		Violations:  violations,
		Explanation: explain(violations),
		Source:      "semantic",
	}
}

// runRule invokes rule.Match with panic recovery, since a third-party or
// hand-rolled rule is untrusted code from the pipeline's perspective.
func (g *Guard) runRule(ctx context.Context, rule Rule, tool string, params map[string]any, parsed ParsedParameters) (matched bool, finding Finding) {
	defer func() {
		if r := recover(); r != nil {
			g.exceptions++
			g.Logger.Warn(ctx, "semantic rule raised, treating as no match",
				"rule_id", rule.ID, "panic", fmt.Sprint(r))
			matched = false
		}
	}()
	return rule.Match(tool, params, parsed)
}

func explain(violations []Violation) string {
	if len(violations) == 0 {
		return "no semantic violations"
	}
	lines := make([]string, 0, len(violations))
	for _, v := range violations {
		lines = append(lines, fmt.Sprintf("[%s/%s] %s", v.Category, v.Severity, v.Message))
	}
	return strings.Join(lines, "; ")
}

// parseParameters builds the per-call unified AST the same way the
// guard's rules consume it: each string-valued param is parsed under
// every applicable lens, keyed by "<param>_<kind>" so evidence stays
// traceable to its source field.
func (g *Guard) parseParameters(tool string, params map[string]any) ParsedParameters {
	parsed := make(ParsedParameters)

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	shellTools := map[string]bool{
		"run_command": true, "exec_shell": true, "bash": true, "shell_exec": true,
	}

	for _, key := range keys {
		value, ok := params[key].(string)
		if !ok {
			continue
		}
		lowerKey := strings.ToLower(key)

		if shellTools[tool] {
			parsed[key+"_shell_ast"] = TokenizeShell(value)
		}
		if strings.Contains(lowerKey, "sql") || strings.Contains(lowerKey, "query") {
			parsed[key+"_sql_features"] = ExtractSQLKeywords(value)
		}
		if strings.Contains(lowerKey, "url") || strings.Contains(lowerKey, "uri") || strings.Contains(lowerKey, "endpoint") {
			parsed[key+"_url_norm"] = ParseURL(value)
		}
		if strings.Contains(lowerKey, "path") || strings.Contains(lowerKey, "file") {
			parsed[key+"_path_norm"] = NormalizePath(value)
		}
		trimmed := strings.TrimSpace(value)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			if payload := ParseJSONPayload(value); payload.Valid {
				parsed[key+"_payload"] = payload
			}
		}
	}

	return parsed
}
