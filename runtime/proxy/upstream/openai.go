package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/failcore/runtime/runtime/proxy"
)

const openaiBaseURL = "https://api.openai.com"

// OpenAIUpstream forwards proxied requests to the OpenAI API. As with
// AnthropicUpstream, an SDK client is built from the API key, but the
// key is not checked at construction; forwarding is a raw HTTP
// passthrough of the caller's body.
type OpenAIUpstream struct {
	httpClient *http.Client
	apiKey     string
	sdkClient  openai.Client
}

var _ proxy.UpstreamClient = (*OpenAIUpstream)(nil)

// NewOpenAIUpstream builds an OpenAIUpstream for apiKey.
func NewOpenAIUpstream(apiKey string) *OpenAIUpstream {
	return &OpenAIUpstream{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		apiKey:     apiKey,
		sdkClient:  openai.NewClient(option.WithAPIKey(apiKey)),
	}
}

// ResolveURL maps an endpoint (e.g. "v1/chat/completions") to the
// OpenAI base URL.
func (u *OpenAIUpstream) ResolveURL(provider, endpoint string) string {
	return fmt.Sprintf("%s/%s", openaiBaseURL, endpoint)
}

// ForwardRequest issues the raw HTTP request against OpenAI, attaching
// bearer auth if the caller did not already supply it.
func (u *OpenAIUpstream) ForwardRequest(ctx context.Context, url, method string, headers map[string]string, body []byte) (*proxy.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("upstream: build openai request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("authorization") == "" {
		req.Header.Set("authorization", "Bearer "+u.apiKey)
	}
	if req.Header.Get("content-type") == "" {
		req.Header.Set("content-type", "application/json")
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: openai request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("upstream: read openai response: %w", err)
	}

	respHeaders := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		respHeaders[k] = resp.Header.Get(k)
	}

	return &proxy.Response{Status: resp.StatusCode, Headers: respHeaders, Body: respBody}, nil
}
