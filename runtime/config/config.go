// Package config loads process-level runtime configuration from the
// environment. It deliberately avoids a global singleton: callers build a
// Config once (typically in main) and pass it down to the constructors
// that need it, the same pattern the teacher uses for its runtime options
// structs rather than a package-level config variable.
package config

import (
	"os"
	"strconv"
	"time"
)

// Runtime holds process-wide defaults for a run context: where the
// sandbox and trace tree live, the default enforcement posture, and
// upstream provider credentials for the proxy.
type Runtime struct {
	// FailcoreRoot is the root directory under which runs/ and validate/
	// (policy) live. Defaults to ".failcore".
	FailcoreRoot string

	// DefaultEnforcement is read from FAILCORE_DEFAULT_ENFORCEMENT. No
	// other package consults it: a policy entry that omits an explicit
	// enforcement mode is defaulted by policy.Parse, not from this field.
	DefaultEnforcement string

	// StrictMode short-circuits the validation engine on the first
	// remaining BLOCK, per §4.2.
	StrictMode bool

	// SummarizeLimit truncates long StepError messages (and so the error
	// message carried on STEP_END trace events); params are not truncated.
	SummarizeLimit int

	// UpstreamTimeout bounds the proxy server's graceful shutdown in
	// cmd/failcore-proxy. The UpstreamClient implementations do not read
	// it: each forwards through its own HTTP client with a fixed 120s
	// timeout.
	UpstreamTimeout time.Duration

	// Upstream holds provider credentials, read from the environment so
	// the proxy never hard-codes a secret source.
	Upstream UpstreamCredentials
}

// UpstreamCredentials carries the provider API keys the proxy's
// UpstreamClient implementations need to authenticate forwarded calls.
type UpstreamCredentials struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	AWSRegion       string
}

// FromEnv builds a Runtime from environment variables, applying the
// documented defaults for anything unset.
func FromEnv() Runtime {
	return Runtime{
		FailcoreRoot:       envOr("FAILCORE_ROOT", ".failcore"),
		DefaultEnforcement: envOr("FAILCORE_DEFAULT_ENFORCEMENT", "warn"),
		StrictMode:         envBool("FAILCORE_STRICT_MODE", false),
		SummarizeLimit:     envInt("FAILCORE_SUMMARIZE_LIMIT", 200),
		UpstreamTimeout:    envDuration("FAILCORE_UPSTREAM_TIMEOUT", 30*time.Second),
		Upstream: UpstreamCredentials{
			AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
			OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
			AWSRegion:       envOr("AWS_REGION", "us-east-1"),
		},
	}
}

// RunsDir returns the directory holding every run's trace and sandbox:
// "<FailcoreRoot>/runs".
func (r Runtime) RunsDir() string {
	return r.FailcoreRoot + "/runs"
}

// PolicyDir returns the directory holding the layered policy files:
// "<FailcoreRoot>/validate".
func (r Runtime) PolicyDir() string {
	return r.FailcoreRoot + "/validate"
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
