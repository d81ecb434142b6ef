package proxy

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/failcore/runtime/runtime/telemetry"
)

// Server is the HTTP surface of the Egress Engine: it accepts requests
// shaped as /{provider}/{endpoint...}, forwards them through a
// ProxyPipeline, and returns the upstream response unchanged (modulo
// enrichment/tracing, which is fail-open and invisible to the caller).
//
// Grounded on failcore/gateways/proxy/app.py's FastAPI route wiring;
// chi is the router the corpus uses for its own gateway surfaces
// (go.mod carries go-chi/chi/v5 and no other router).
type Server struct {
	Config     Config
	Pipeline   *ProxyPipeline
	Logger     telemetry.Logger
	limiters   map[string]*rate.Limiter
	limitRate  rate.Limit
	limitBurst int
}

// NewServer builds a Server. ratePerSecond/burst configure a
// per-provider token bucket; pass 0 for ratePerSecond to disable
// limiting.
func NewServer(cfg Config, pipeline *ProxyPipeline, log telemetry.Logger, ratePerSecond float64, burst int) *Server {
	return &Server{
		Config:     cfg,
		Pipeline:   pipeline,
		Logger:     log,
		limiters:   make(map[string]*rate.Limiter),
		limitRate:  rate.Limit(ratePerSecond),
		limitBurst: burst,
	}
}

// Router builds the chi router exposing the proxy's HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))
	r.Handle("/{provider}/*", http.HandlerFunc(s.handleProxy))
	return r
}

func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	endpoint := strings.TrimPrefix(chi.URLParam(r, "*"), "/")

	if s.limitRate > 0 && !s.limiterFor(provider).Allow() {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}

	runID := r.Header.Get("x-failcore-run-id")
	if runID == "" {
		runID = s.Config.RunID
	}
	stepID := r.Header.Get("x-failcore-step-id")

	resp, err := s.Pipeline.ProcessRequest(r.Context(), provider, endpoint, r.Method, headers, body, runID, stepID)
	if err != nil {
		s.logError(r.Context(), err)
		http.Error(w, "upstream request failed", http.StatusBadGateway)
		return
	}

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(resp.Body)
}

func (s *Server) limiterFor(provider string) *rate.Limiter {
	if l, ok := s.limiters[provider]; ok {
		return l
	}
	l := rate.NewLimiter(s.limitRate, s.limitBurst)
	s.limiters[provider] = l
	return l
}

func (s *Server) logError(ctx context.Context, err error) {
	if s.Logger == nil {
		return
	}
	s.Logger.Error(ctx, "proxy: upstream forward failed", "error", err.Error())
}
