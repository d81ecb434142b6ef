package upstream_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/failcore/runtime/runtime/proxy/upstream"
)

func TestAnthropicUpstreamResolveURL(t *testing.T) {
	u := upstream.NewAnthropicUpstream("test-key")
	require.Equal(t, "https://api.anthropic.com/v1/messages", u.ResolveURL("anthropic", "v1/messages"))
}

func TestOpenAIUpstreamResolveURL(t *testing.T) {
	u := upstream.NewOpenAIUpstream("test-key")
	require.Equal(t, "https://api.openai.com/v1/chat/completions", u.ResolveURL("openai", "v1/chat/completions"))
}
