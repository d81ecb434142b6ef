package proxy_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/failcore/runtime/runtime/proxy"
)

func TestUsageEnricherExtractsTokenCounts(t *testing.T) {
	event := &proxy.Event{Evidence: map[string]any{
		"response_body": []byte(`{"usage": {"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30}}`),
	}}

	proxy.UsageEnricher{}.Enrich(event)

	usage, ok := event.Evidence["usage"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, float64(30), usage["total_tokens"])
}

func TestUsageEnricherNoUsageFieldIsNoop(t *testing.T) {
	event := &proxy.Event{Evidence: map[string]any{"response_body": []byte(`{"id": "x"}`)}}
	proxy.UsageEnricher{}.Enrich(event)
	_, ok := event.Evidence["usage"]
	require.False(t, ok)
}

func TestDLPEnricherDetectsAndRedactsSecret(t *testing.T) {
	enricher := proxy.NewDLPEnricher()
	event := &proxy.Event{Evidence: map[string]any{
		"response": "here is a key: sk-xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx",
	}}

	enricher.Enrich(event)

	hits, ok := event.Evidence["dlp_hits"].([]string)
	require.True(t, ok)
	require.NotEmpty(t, hits)
	require.Equal(t, true, event.Evidence["dlp_redacted"])
	require.NotContains(t, event.Evidence["response"], "sk-")
}

func TestDLPEnricherNoHitsLeavesEvidenceUntouched(t *testing.T) {
	enricher := proxy.NewDLPEnricher()
	event := &proxy.Event{Evidence: map[string]any{"response": "hello world"}}

	enricher.Enrich(event)

	_, ok := event.Evidence["dlp_hits"]
	require.False(t, ok)
}

func TestTaintEnricherRespectsExplicitOverride(t *testing.T) {
	event := &proxy.Event{ToolName: "http_request", Evidence: map[string]any{"taint_source": "system"}}
	proxy.TaintEnricher{}.Enrich(event)
	require.Equal(t, "system", event.Evidence["taint_source"])
	require.Equal(t, "high", event.Evidence["taint_confidence"])
}

func TestTaintEnricherFallsBackToModelForToolCalls(t *testing.T) {
	event := &proxy.Event{ToolName: "http_request", Evidence: map[string]any{}}
	proxy.TaintEnricher{}.Enrich(event)
	require.Equal(t, "model", event.Evidence["taint_source"])
}

func TestTaintEnricherUnknownWithoutTool(t *testing.T) {
	event := &proxy.Event{Evidence: map[string]any{}}
	proxy.TaintEnricher{}.Enrich(event)
	require.Equal(t, "unknown", event.Evidence["taint_source"])
}
