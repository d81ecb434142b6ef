package validate_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/failcore/runtime/runtime/policy"
	"github.com/failcore/runtime/runtime/validate"
)

type stubValidator struct {
	id, domain string
	decisions  []validate.Decision
	calls      *[]string
}

func (s stubValidator) ID() string                   { return s.id }
func (s stubValidator) Domain() string                { return s.domain }
func (s stubValidator) DefaultConfig() map[string]any { return nil }
func (s stubValidator) ConfigSchema() map[string]any  { return nil }
func (s stubValidator) Evaluate(validate.Context, *policy.ValidatorConfig) []validate.Decision {
	if s.calls != nil {
		*s.calls = append(*s.calls, s.id)
	}
	return s.decisions
}

func TestEngineEvaluateOrdersByPolicyPriority(t *testing.T) {
	var calls []string
	reg := validate.NewRegistry()
	reg.Register(stubValidator{id: "b", domain: "network", calls: &calls})
	reg.Register(stubValidator{id: "a", domain: "security", calls: &calls})

	pol := policy.New()
	pol.Validators["a"] = &policy.ValidatorConfig{ID: "a", Enabled: true, Enforcement: policy.Block, Priority: 100}
	pol.Validators["b"] = &policy.ValidatorConfig{ID: "b", Enabled: true, Enforcement: policy.Block, Priority: 10}

	eng := validate.NewEngine(pol, reg, false)
	eng.Evaluate(validate.Context{Tool: "t"}, nil)
	require.Equal(t, []string{"b", "a"}, calls, "lower explicit priority runs first")
}

func TestEngineAppliesShadowMode(t *testing.T) {
	reg := validate.NewRegistry()
	reg.Register(stubValidator{
		id: "blocker", domain: "security",
		decisions: []validate.Decision{validate.BlockDecision("FC_TEST", "blocker", "blocked", nil)},
	})

	pol := policy.New()
	pol.Validators["blocker"] = &policy.ValidatorConfig{
		ID: "blocker", Enabled: true, Enforcement: policy.Shadow, Priority: 100,
	}

	eng := validate.NewEngine(pol, reg, false)
	decisions := eng.Evaluate(validate.Context{Tool: "t"}, nil)
	require.Len(t, decisions, 1)
	require.True(t, decisions[0].IsWarning())
	require.Equal(t, "block", decisions[0].Evidence["original_decision"])
}

func TestEngineAppliesOverride(t *testing.T) {
	t.Setenv("FAILCORE_OVERRIDE_TOKEN", "present")

	reg := validate.NewRegistry()
	reg.Register(stubValidator{
		id: "blocker", domain: "security",
		decisions: []validate.Decision{validate.BlockDecision("FC_TEST", "blocker", "blocked", nil)},
	})

	pol := policy.New()
	pol.Validators["blocker"] = &policy.ValidatorConfig{
		ID: "blocker", Enabled: true, Enforcement: policy.Block, Priority: 100, AllowOverride: true,
	}
	pol.GlobalOverride = policy.GlobalOverride{Enabled: true, RequireToken: true, TokenEnvVar: "FAILCORE_OVERRIDE_TOKEN"}

	eng := validate.NewEngine(pol, reg, false)
	decisions := eng.Evaluate(validate.Context{Tool: "t"}, nil)
	require.Len(t, decisions, 1)
	require.True(t, decisions[0].IsAllow())
	require.True(t, decisions[0].Overrideable)
}

func TestEngineOverrideRequiresAllowOverrideOnValidator(t *testing.T) {
	t.Setenv("FAILCORE_OVERRIDE_TOKEN", "present")

	reg := validate.NewRegistry()
	reg.Register(stubValidator{
		id: "blocker", domain: "security",
		decisions: []validate.Decision{validate.BlockDecision("FC_TEST", "blocker", "blocked", nil)},
	})

	pol := policy.New()
	pol.Validators["blocker"] = &policy.ValidatorConfig{
		ID: "blocker", Enabled: true, Enforcement: policy.Block, Priority: 100, AllowOverride: false,
	}
	pol.GlobalOverride = policy.GlobalOverride{Enabled: true, RequireToken: true, TokenEnvVar: "FAILCORE_OVERRIDE_TOKEN"}

	eng := validate.NewEngine(pol, reg, false)
	decisions := eng.Evaluate(validate.Context{Tool: "t"}, nil)
	require.Len(t, decisions, 1)
	require.True(t, decisions[0].IsBlocking())
}

func TestEngineExceptionBypassesValidator(t *testing.T) {
	reg := validate.NewRegistry()
	reg.Register(stubValidator{
		id: "blocker", domain: "security",
		decisions: []validate.Decision{validate.BlockDecision("FC_TEST", "blocker", "blocked", nil)},
	})

	pol := policy.New()
	pol.Validators["blocker"] = &policy.ValidatorConfig{
		ID: "blocker", Enabled: true, Enforcement: policy.Block, Priority: 100,
		Exceptions: []policy.Exception{{
			RuleID:    "exc1",
			ExpiresAt: time.Now().Add(time.Hour).Format(time.RFC3339),
		}},
	}

	eng := validate.NewEngine(pol, reg, false)
	decisions := eng.Evaluate(validate.Context{Tool: "t"}, nil)
	require.Len(t, decisions, 1)
	require.True(t, decisions[0].IsAllow())
	require.Equal(t, "FC_EXCEPTION_BLOCKER", decisions[0].Code)
}

func TestEngineStrictModeShortCircuits(t *testing.T) {
	reg := validate.NewRegistry()
	reg.Register(stubValidator{
		id: "a", domain: "security",
		decisions: []validate.Decision{validate.BlockDecision("FC_A", "a", "blocked", nil)},
	})
	reg.Register(stubValidator{
		id: "z", domain: "security",
		decisions: []validate.Decision{validate.BlockDecision("FC_Z", "z", "blocked", nil)},
	})

	pol := policy.New()
	pol.Validators["a"] = &policy.ValidatorConfig{ID: "a", Enabled: true, Enforcement: policy.Block, Priority: 10}
	pol.Validators["z"] = &policy.ValidatorConfig{ID: "z", Enabled: true, Enforcement: policy.Block, Priority: 20}

	eng := validate.NewEngine(pol, reg, true)
	decisions := eng.Evaluate(validate.Context{Tool: "t"}, nil)
	require.Len(t, decisions, 1)
	require.Equal(t, "FC_A", decisions[0].Code)
}

func TestEngineDisabledValidatorSkipped(t *testing.T) {
	reg := validate.NewRegistry()
	reg.Register(stubValidator{
		id: "blocker", domain: "security",
		decisions: []validate.Decision{validate.BlockDecision("FC_TEST", "blocker", "blocked", nil)},
	})

	pol := policy.New()
	pol.Validators["blocker"] = &policy.ValidatorConfig{ID: "blocker", Enabled: false}

	eng := validate.NewEngine(pol, reg, false)
	decisions := eng.Evaluate(validate.Context{Tool: "t"}, nil)
	require.Empty(t, decisions)
}

func TestEvaluateAndRaise(t *testing.T) {
	reg := validate.NewRegistry()
	reg.Register(stubValidator{
		id: "blocker", domain: "security",
		decisions: []validate.Decision{validate.BlockDecision("FC_TEST", "blocker", "blocked", nil)},
	})
	pol := policy.New()
	pol.Validators["blocker"] = &policy.ValidatorConfig{ID: "blocker", Enabled: true, Enforcement: policy.Block}

	eng := validate.NewEngine(pol, reg, false)
	_, err := eng.EvaluateAndRaise(validate.Context{Tool: "t"}, nil)
	require.Error(t, err)

	var blocked *validate.BlockedError
	require.ErrorAs(t, err, &blocked)
	require.Len(t, blocked.Blocking, 1)
}
