package validate

import (
	"fmt"
	"sort"
	"time"

	"github.com/failcore/runtime/runtime/policy"
)

// domainPriority is the recommended execution order by domain, used as
// the tie-breaker under each validator's explicit policy priority.
var domainPriority = map[string]int{
	"contract": 10,
	"type":     20,
	"security": 30,
	"network":  40,
	"resource": 50,
}

// Engine orchestrates validator execution against policy. It contains no
// validation logic of its own: it selects, sorts, runs, and aggregates
// decisions produced by validators registered in Registry.
type Engine struct {
	Policy     *policy.Policy
	Registry   *Registry
	StrictMode bool

	// Now returns the current time; overridable for deterministic tests
	// of exception/override expiry.
	Now func() time.Time
}

// NewEngine constructs an Engine. A nil pol is treated as an empty,
// permissive policy (every registered validator runs enabled).
func NewEngine(pol *policy.Policy, reg *Registry, strictMode bool) *Engine {
	if pol == nil {
		pol = policy.New()
	}
	return &Engine{Policy: pol, Registry: reg, StrictMode: strictMode, Now: time.Now}
}

// BlockedError is returned by EvaluateAndRaise when any decision blocks.
type BlockedError struct {
	Blocking []Decision
	All      []Decision
}

func (e *BlockedError) Error() string {
	if len(e.Blocking) == 0 {
		return "validation blocked"
	}
	return fmt.Sprintf("validation blocked: %s", e.Blocking[0].Message)
}

// Evaluate runs validators (selected from policy if validators is nil)
// against ctx and returns every decision produced, in execution order.
func (e *Engine) Evaluate(ctx Context, validators []BaseValidator) []Decision {
	if validators == nil {
		validators = e.validatorsToExecute()
	}
	validators = e.sortValidators(validators)

	now := e.now()
	var decisions []Decision

	for _, v := range validators {
		cfg := e.Policy.GetValidatorConfig(v.ID())

		if cfg != nil && !cfg.Enabled {
			continue
		}

		if cfg != nil && e.hasActiveException(v.ID(), ctx, cfg, now) {
			decisions = append(decisions, AllowDecision(
				fmt.Sprintf("FC_EXCEPTION_%s", upper(v.ID())),
				v.ID(),
				"Validation bypassed due to active exception",
			))
			continue
		}

		vDecisions := e.runValidator(v, ctx, cfg)

		blocking := false
		for _, d := range vDecisions {
			d = e.applyEnforcementMode(d, cfg)
			d = e.applyOverride(d, cfg, now)
			decisions = append(decisions, d)
			if d.IsBlocking() {
				blocking = true
			}
		}

		if e.StrictMode && blocking {
			break
		}
	}

	return decisions
}

// EvaluateAndRaise runs Evaluate and returns a *BlockedError if any
// decision (after enforcement mode and override are applied) still
// blocks.
func (e *Engine) EvaluateAndRaise(ctx Context, validators []BaseValidator) ([]Decision, error) {
	decisions := e.Evaluate(ctx, validators)
	var blocking []Decision
	for _, d := range decisions {
		if d.IsBlocking() {
			blocking = append(blocking, d)
		}
	}
	if len(blocking) > 0 {
		return decisions, &BlockedError{Blocking: blocking, All: decisions}
	}
	return decisions, nil
}

func (e *Engine) runValidator(v BaseValidator, ctx Context, cfg *policy.ValidatorConfig) (decisions []Decision) {
	defer func() {
		if r := recover(); r != nil {
			decisions = []Decision{BlockDecision(
				"FC_ENGINE_VALIDATOR_ERROR",
				v.ID(),
				fmt.Sprintf("Validator error: %v", r),
				map[string]any{"error": fmt.Sprint(r), "validator": v.ID()},
			)}
		}
	}()
	return v.Evaluate(ctx, cfg)
}

func (e *Engine) validatorsToExecute() []BaseValidator {
	if e.Registry == nil {
		return nil
	}
	all := e.Registry.List()
	enabledIDs := e.Policy.EnabledIDs()
	if len(enabledIDs) == 0 {
		return all
	}
	var out []BaseValidator
	for _, v := range all {
		if _, ok := enabledIDs[v.ID()]; ok {
			out = append(out, v)
		}
	}
	return out
}

// sortValidators orders by (explicit policy priority, domain priority,
// validator id) ascending — the same three-key sort as the reference
// engine, so behavior is identical regardless of registration order.
func (e *Engine) sortValidators(validators []BaseValidator) []BaseValidator {
	out := make([]BaseValidator, len(validators))
	copy(out, validators)

	key := func(v BaseValidator) (int, int, string) {
		explicit := 100
		if cfg := e.Policy.GetValidatorConfig(v.ID()); cfg != nil {
			explicit = cfg.Priority
		}
		dp, ok := domainPriority[v.Domain()]
		if !ok {
			dp = 100
		}
		return explicit, dp, v.ID()
	}

	sort.SliceStable(out, func(i, j int) bool {
		ei, di, idi := key(out[i])
		ej, dj, idj := key(out[j])
		if ei != ej {
			return ei < ej
		}
		if di != dj {
			return di < dj
		}
		return idi < idj
	})
	return out
}

func (e *Engine) applyEnforcementMode(d Decision, cfg *policy.ValidatorConfig) Decision {
	if cfg == nil || !d.IsBlocking() {
		return d
	}
	switch cfg.Enforcement {
	case policy.Shadow:
		d.Outcome = Warn
		d.Evidence = cloneEvidence(d.Evidence)
		d.Evidence["enforcement_mode"] = "shadow"
		d.Evidence["original_decision"] = "block"
		d.Message = "[SHADOW] " + d.Message
	case policy.Warn:
		d.Outcome = Warn
		d.Evidence = cloneEvidence(d.Evidence)
		d.Evidence["enforcement_mode"] = "warn"
		d.Evidence["original_decision"] = "block"
	}
	return d
}

func (e *Engine) applyOverride(d Decision, cfg *policy.ValidatorConfig, now time.Time) Decision {
	if !d.IsBlocking() {
		return d
	}
	if cfg != nil && !cfg.AllowOverride {
		return d
	}
	if !e.Policy.GlobalOverride.Active(now) {
		return d
	}

	d.Outcome = Allow
	d.Evidence = cloneEvidence(d.Evidence)
	d.Evidence["override_active"] = true
	d.Evidence["override_reason"] = "emergency_override"
	d.Evidence["original_decision"] = "block"
	d.Overrideable = true
	d.Message = "[OVERRIDE] " + d.Message
	return d
}

func (e *Engine) hasActiveException(validatorID string, ctx Context, cfg *policy.ValidatorConfig, now time.Time) bool {
	for _, exc := range cfg.Exceptions {
		if exc.IsExpired(now) {
			continue
		}
		if !exc.MatchesScope(ctx.Tool, ctx.Params) {
			continue
		}
		return true
	}
	return false
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func cloneEvidence(e map[string]any) map[string]any {
	out := make(map[string]any, len(e)+2)
	for k, v := range e {
		out[k] = v
	}
	return out
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}
