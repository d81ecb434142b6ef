package upstream

import (
	"context"
	"fmt"
	"strings"

	"github.com/failcore/runtime/runtime/proxy"
)

// Router dispatches a proxied request to the UpstreamClient registered
// for its provider name. It is itself a proxy.UpstreamClient, letting a
// ProxyPipeline stay provider-agnostic: the pipeline only ever talks to
// one UpstreamClient, and the Router is the one that knows there are
// several.
//
// Router identifies the target provider for ForwardRequest by matching
// url against the base URL each registered client's ResolveURL
// produces — proxy.UpstreamClient.ForwardRequest receives only a url,
// not the provider name, so this is necessarily a best-effort match
// for HTTP-addressed providers (Anthropic, OpenAI). A provider whose
// ResolveURL returns an opaque identifier rather than a URL (Bedrock's
// model id) cannot be disambiguated this way; route Bedrock traffic to
// a dedicated pipeline instead of mixing it into a multi-provider
// Router.
type Router struct {
	clients map[string]proxy.UpstreamClient
	bases   map[string]string
}

var _ proxy.UpstreamClient = (*Router)(nil)

// NewRouter returns an empty Router; register providers with Register.
func NewRouter() *Router {
	return &Router{clients: map[string]proxy.UpstreamClient{}, bases: map[string]string{}}
}

// Register binds provider to client.
func (r *Router) Register(provider string, client proxy.UpstreamClient) {
	r.clients[provider] = client
	r.bases[provider] = client.ResolveURL(provider, "")
}

// ResolveURL delegates to the provider's registered client.
func (r *Router) ResolveURL(provider, endpoint string) string {
	client, ok := r.clients[provider]
	if !ok {
		return endpoint
	}
	return client.ResolveURL(provider, endpoint)
}

// ForwardRequest delegates to whichever registered client's base URL
// prefixes url.
func (r *Router) ForwardRequest(ctx context.Context, url, method string, headers map[string]string, body []byte) (*proxy.Response, error) {
	for provider, base := range r.bases {
		if base != "" && strings.HasPrefix(url, base) {
			return r.clients[provider].ForwardRequest(ctx, url, method, headers, body)
		}
	}
	return nil, fmt.Errorf("upstream: no registered client matches url %q", url)
}
