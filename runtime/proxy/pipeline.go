package proxy

import (
	"context"
	"fmt"
	"strings"

	"github.com/failcore/runtime/runtime/trace"
)

// ProxyPipeline is the request path of the Egress Engine: record a
// pre-forward event, forward the request, record a post-forward event,
// return the response to the caller.
//
// Grounded on tests/proxy/test_proxy_pipeline.py. Unlike enrichment,
// forwarding is NOT fail-open: test_process_request_error_handling
// requires an upstream error to propagate to the caller rather than be
// swallowed.
type ProxyPipeline struct {
	Egress   *EgressEngine
	Upstream UpstreamClient
}

// NewProxyPipeline builds a ProxyPipeline over the given egress engine
// and upstream client.
func NewProxyPipeline(egress *EgressEngine, upstream UpstreamClient) *ProxyPipeline {
	return &ProxyPipeline{Egress: egress, Upstream: upstream}
}

// ProcessRequest forwards one request to provider/endpoint and traces a
// pre- and post-event around the call. runID/stepID label the trace;
// stepID may be empty for proxy calls made outside a pipeline run.
func (p *ProxyPipeline) ProcessRequest(
	ctx context.Context,
	provider, endpoint, method string,
	headers map[string]string,
	body []byte,
	runID, stepID string,
) (*Response, error) {
	step := &trace.StepRef{ID: stepID, Tool: fmt.Sprintf("proxy.%s", provider)}

	pre := p.createPreEvent(provider, endpoint, method, headers, body, runID, stepID)
	p.Egress.Emit(ctx, trace.LevelInfo, step, pre)

	url := p.Upstream.ResolveURL(provider, endpoint)
	resp, err := p.Upstream.ForwardRequest(ctx, url, method, headers, body)
	if err != nil {
		post := pre
		post.Action = fmt.Sprintf("proxy.%s.error", strings.ToLower(method))
		post.Decision = DecisionAllow
		post.Evidence = map[string]any{"provider": provider, "error": err.Error()}
		p.Egress.Emit(ctx, trace.LevelError, step, post)
		return nil, err
	}

	post := p.createPostEvent(provider, endpoint, method, runID, stepID, resp)
	p.Egress.Emit(ctx, trace.LevelInfo, step, post)

	return resp, nil
}

func (p *ProxyPipeline) createPreEvent(provider, endpoint, method string, headers map[string]string, body []byte, runID, stepID string) Event {
	return Event{
		Egress:   EgressNetwork,
		Action:   fmt.Sprintf("proxy.%s", strings.ToLower(method)),
		Target:   fmt.Sprintf("%s:%s", provider, endpoint),
		RunID:    runID,
		StepID:   stepID,
		ToolName: fmt.Sprintf("proxy.%s", provider),
		Decision: DecisionAllow,
		Evidence: map[string]any{
			"provider":     provider,
			"endpoint":     endpoint,
			"method":       method,
			"request_body": string(body),
		},
	}
}

func (p *ProxyPipeline) createPostEvent(provider, endpoint, method, runID, stepID string, resp *Response) Event {
	evidence := map[string]any{
		"provider":      provider,
		"endpoint":      endpoint,
		"status":        resp.Status,
		"response_body": resp.Body,
		"response":      string(resp.Body),
	}
	return Event{
		Egress:   EgressNetwork,
		Action:   fmt.Sprintf("proxy.%s.response", strings.ToLower(method)),
		Target:   fmt.Sprintf("%s:%s", provider, endpoint),
		RunID:    runID,
		StepID:   stepID,
		ToolName: fmt.Sprintf("proxy.%s", provider),
		Decision: DecisionAllow,
		Evidence: evidence,
	}
}
