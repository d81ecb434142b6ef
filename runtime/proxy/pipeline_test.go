package proxy_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/failcore/runtime/runtime/proxy"
	"github.com/failcore/runtime/runtime/telemetry"
	"github.com/failcore/runtime/runtime/trace"
)

type memSink struct {
	events []trace.Event
	fail   bool
}

func (s *memSink) Append(_ context.Context, e trace.Event) error {
	if s.fail {
		return errors.New("trace sink write failed (simulated)")
	}
	s.events = append(s.events, e)
	return nil
}
func (s *memSink) Flush(context.Context) error { return nil }
func (s *memSink) Close() error                { return nil }

type mockUpstream struct {
	status  int
	body    []byte
	err     error
	lastURL string
}

func (m *mockUpstream) ResolveURL(provider, endpoint string) string {
	return provider + "/" + endpoint
}

func (m *mockUpstream) ForwardRequest(_ context.Context, url, _ string, _ map[string]string, _ []byte) (*proxy.Response, error) {
	m.lastURL = url
	if m.err != nil {
		return nil, m.err
	}
	status := m.status
	if status == 0 {
		status = 200
	}
	return &proxy.Response{Status: status, Headers: map[string]string{"content-type": "application/json"}, Body: m.body}, nil
}

func newTestWriter(sink trace.Sink) *trace.Writer {
	tc := trace.NewContext("test_run", time.Now().UTC(), "", "")
	return trace.NewWriter(tc, sink, telemetry.NewNoopLogger())
}

// Grounded on tests/proxy/test_proxy_pipeline.py: a request is
// forwarded and its response returned unchanged.
func TestProcessRequestForwardsResponse(t *testing.T) {
	sink := &memSink{}
	engine := proxy.NewEgressEngine(newTestWriter(sink), telemetry.NewNoopLogger())
	upstream := &mockUpstream{body: []byte(`{"id": "test"}`)}
	pipeline := proxy.NewProxyPipeline(engine, upstream)

	resp, err := pipeline.ProcessRequest(context.Background(), "openai", "v1/chat/completions", "POST", nil, []byte(`{}`), "run1", "step1")

	require.NoError(t, err)
	require.Equal(t, 200, resp.Status)
	require.Equal(t, `{"id": "test"}`, string(resp.Body))
	require.Len(t, sink.events, 2, "expected a pre- and a post-event")
}

// Grounded on test_process_request_error_handling: an upstream error is
// NOT fail-open and propagates to the caller.
func TestProcessRequestPropagatesUpstreamError(t *testing.T) {
	sink := &memSink{}
	engine := proxy.NewEgressEngine(newTestWriter(sink), telemetry.NewNoopLogger())
	upstream := &mockUpstream{err: errors.New("connection refused")}
	pipeline := proxy.NewProxyPipeline(engine, upstream)

	resp, err := pipeline.ProcessRequest(context.Background(), "openai", "v1/chat/completions", "POST", nil, []byte(`{}`), "run1", "step1")

	require.Error(t, err)
	require.Nil(t, resp)
}

// Grounded on test_proxy_failopen.py::TestFailOpenTraceSink: a failing
// trace sink must not break the request.
func TestFailOpenTraceSinkWrite(t *testing.T) {
	sink := &memSink{fail: true}
	engine := proxy.NewEgressEngine(newTestWriter(sink), telemetry.NewNoopLogger())
	upstream := &mockUpstream{body: []byte(`{"id": "test"}`)}
	pipeline := proxy.NewProxyPipeline(engine, upstream)

	resp, err := pipeline.ProcessRequest(context.Background(), "openai", "v1/chat/completions", "POST", nil, []byte(`{}`), "run1", "step1")

	require.NoError(t, err)
	require.Equal(t, 200, resp.Status)
}

type badEnricher struct{}

func (badEnricher) Enrich(*proxy.Event) { panic("BadEnricher failed (simulated)") }

// Grounded on test_proxy_failopen.py::TestFailOpenEnricher: a panicking
// enricher must not break the request, and later enrichers/the sink
// still run.
func TestFailOpenEnricherPanic(t *testing.T) {
	sink := &memSink{}
	engine := &proxy.EgressEngine{
		Trace:     newTestWriter(sink),
		Enrichers: []proxy.Enricher{badEnricher{}, proxy.UsageEnricher{}},
		Logger:    telemetry.NewNoopLogger(),
	}
	upstream := &mockUpstream{body: []byte(`{"usage": {"total_tokens": 5}}`)}
	pipeline := proxy.NewProxyPipeline(engine, upstream)

	resp, err := pipeline.ProcessRequest(context.Background(), "openai", "v1/chat/completions", "POST", nil, []byte(`{}`), "run1", "step1")

	require.NoError(t, err)
	require.Equal(t, 200, resp.Status)
	require.NotEmpty(t, sink.events)
}
