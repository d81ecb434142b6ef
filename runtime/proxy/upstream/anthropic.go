// Package upstream implements proxy.UpstreamClient for the model
// providers the egress engine forwards to. Each client performs the
// forward as a raw byte passthrough: the proxy's contract is
// protocol-agnostic (it forwards whatever body the caller sent, not a
// typed SDK request), unlike goa-ai's model.Client adapters which build
// typed SDK requests for an agent loop.
package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/failcore/runtime/runtime/proxy"
)

const anthropicBaseURL = "https://api.anthropic.com"

// AnthropicUpstream forwards proxied requests to the Anthropic API. It
// also constructs an SDK client from the API key and keeps it on the
// struct; sdk.NewClient returns no error, so the key is not checked at
// construction. The forward itself goes through a raw *http.Client
// since the proxy must pass the
// caller's body through byte-for-byte, including request shapes the
// typed SDK does not model.
type AnthropicUpstream struct {
	httpClient *http.Client
	apiKey     string
	sdkClient  sdk.Client
}

var _ proxy.UpstreamClient = (*AnthropicUpstream)(nil)

// NewAnthropicUpstream builds an AnthropicUpstream for apiKey.
func NewAnthropicUpstream(apiKey string) *AnthropicUpstream {
	return &AnthropicUpstream{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		apiKey:     apiKey,
		sdkClient:  sdk.NewClient(option.WithAPIKey(apiKey)),
	}
}

// ResolveURL maps an endpoint (e.g. "v1/messages") to the Anthropic
// base URL.
func (u *AnthropicUpstream) ResolveURL(provider, endpoint string) string {
	return fmt.Sprintf("%s/%s", anthropicBaseURL, endpoint)
}

// ForwardRequest issues the raw HTTP request against Anthropic,
// attaching the headers the SDK requires (API key, version) if the
// caller did not already supply them.
func (u *AnthropicUpstream) ForwardRequest(ctx context.Context, url, method string, headers map[string]string, body []byte) (*proxy.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("upstream: build anthropic request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("x-api-key") == "" {
		req.Header.Set("x-api-key", u.apiKey)
	}
	if req.Header.Get("anthropic-version") == "" {
		req.Header.Set("anthropic-version", "2023-06-01")
	}
	if req.Header.Get("content-type") == "" {
		req.Header.Set("content-type", "application/json")
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: anthropic request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("upstream: read anthropic response: %w", err)
	}

	respHeaders := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		respHeaders[k] = resp.Header.Get(k)
	}

	return &proxy.Response{Status: resp.StatusCode, Headers: respHeaders, Body: respBody}, nil
}
