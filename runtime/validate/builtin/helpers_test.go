package builtin_test

import "github.com/failcore/runtime/runtime/policy"

func configWithAllowlist(allowlist []string) *policy.ValidatorConfig {
	return &policy.ValidatorConfig{
		ID:      "network_ssrf",
		Enabled: true,
		Config:  map[string]any{"allowlist": allowlist},
	}
}
