// Package proxy implements the Egress Engine (§4.8): an HTTP surface
// that sits between a running agent and its model provider, records
// every outbound call as a trace event, enriches that event with
// usage/DLP/taint findings, and forwards the request regardless of
// whether any enrichment step failed.
//
// Grounded on failcore/core/proxy/interfaces.py's UpstreamClient
// protocol and failcore/gateways/proxy/app.py's composition of
// ProxyPipeline + EgressEngine + enrichers; the pipeline.py and
// stream.py modules that composition imports were not retrieved into
// the corpus, so ProxyPipeline and StreamHandler below are built from
// their test suites (tests/proxy/*) rather than transliterated.
package proxy

import "context"

// EgressType classifies the kind of boundary a ProxyPipeline call
// crosses. NETWORK is the only kind a model-provider proxy emits.
type EgressType string

// Recognized egress types.
const (
	EgressNetwork EgressType = "NETWORK"
)

// PolicyDecision is the enforcement verdict recorded against an egress
// event. The proxy itself is fail-open: ALLOW is the only decision it
// ever assigns today, but the field exists so a future policy layer
// (rate limiting, provider allowlists) can downgrade it without a
// schema change.
type PolicyDecision string

// Recognized policy decisions.
const (
	DecisionAllow PolicyDecision = "ALLOW"
	DecisionWarn  PolicyDecision = "WARN"
	DecisionBlock PolicyDecision = "BLOCK"
)

// Event is one egress record: a single outbound call, pre- or
// post-forward, carrying whatever enrichers have added to Evidence.
// Grounded on EgressEvent in
// src/failcore/core/egress/enrichers/{dlp,taint}.py.
type Event struct {
	Egress   EgressType
	Action   string
	Target   string
	RunID    string
	StepID   string
	ToolName string
	Decision PolicyDecision
	Evidence map[string]any
}

// Response is a protocol-agnostic upstream response: status, headers,
// and the raw body. Grounded on
// failcore/core/proxy/interfaces.py's UpstreamResponse.
type Response struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

// UpstreamClient is the protocol-agnostic interface every provider
// backend (anthropic, openai, bedrock) implements. Grounded on
// failcore/core/proxy/interfaces.py's UpstreamClient Protocol.
type UpstreamClient interface {
	// ResolveURL maps a provider + endpoint pair to the concrete
	// upstream URL (or, for SDK-mediated providers like Bedrock, an
	// opaque identifier the client understands as "url").
	ResolveURL(provider, endpoint string) string
	// ForwardRequest issues the request against the resolved upstream
	// and returns its raw response. Implementations never swallow
	// upstream errors: a failed forward is a pipeline error, not a
	// fail-open condition (only tracing/enrichment is fail-open).
	ForwardRequest(ctx context.Context, url, method string, headers map[string]string, body []byte) (*Response, error)
}

// Config mirrors failcore.config.proxy.ProxyConfig's defaults exactly
// (tests/proxy/test_proxy_pipeline.py::TestProxyConfig::test_default_config).
type Config struct {
	Host                string
	Port                int
	EnableStreaming     bool
	StreamingStrictMode bool
	EnableDLP           bool
	DLPStrictMode       bool
	DropOnFull          bool
	RunID               string
}

// DefaultConfig returns the same defaults the Python ProxyConfig()
// zero-value constructs.
func DefaultConfig() Config {
	return Config{
		Host:                "127.0.0.1",
		Port:                8000,
		EnableStreaming:     true,
		StreamingStrictMode: false,
		EnableDLP:           true,
		DLPStrictMode:       false,
		DropOnFull:          true,
	}
}
