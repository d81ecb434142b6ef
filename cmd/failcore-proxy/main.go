// Command failcore-proxy runs the Egress Engine's HTTP surface: it
// opens a Run Context, selects an upstream client for the requested
// provider from environment-supplied credentials, and serves proxied
// model-provider traffic on the configured host/port.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/failcore/runtime/runtime/config"
	"github.com/failcore/runtime/runtime/pipeline"
	"github.com/failcore/runtime/runtime/proxy"
	"github.com/failcore/runtime/runtime/proxy/upstream"
	"github.com/failcore/runtime/runtime/run"
	"github.com/failcore/runtime/runtime/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := telemetry.NewClueLogger()
	cfg := config.FromEnv()

	// 1) Run Context: tool registry is empty here since the proxy path
	// never dispatches a local tool, only forwards to an upstream.
	tools := pipeline.NewToolRegistry()
	rc, err := run.Open(cfg, tools, logger, run.Options{
		PostRunDrift: true,
		Tags:         []string{"proxy"},
	})
	if err != nil {
		panic(fmt.Sprintf("failcore-proxy: open run context: %v", err))
	}
	defer func() {
		if _, err := rc.Close(ctx); err != nil {
			logger.Error(ctx, "failcore-proxy: close run context", "error", err.Error())
		}
	}()

	// 2) Upstream router: one UpstreamClient per provider, selected by
	// the {provider} path segment the proxy server parses.
	router := upstream.NewRouter()
	if cfg.Upstream.AnthropicAPIKey != "" {
		router.Register("anthropic", upstream.NewAnthropicUpstream(cfg.Upstream.AnthropicAPIKey))
	}
	if cfg.Upstream.OpenAIAPIKey != "" {
		router.Register("openai", upstream.NewOpenAIUpstream(cfg.Upstream.OpenAIAPIKey))
	}

	proxyPipeline := proxy.NewProxyPipeline(rc.Egress, router)

	// 3) HTTP surface.
	proxyCfg := proxy.DefaultConfig()
	proxyCfg.RunID = rc.RunID
	server := proxy.NewServer(proxyCfg, proxyPipeline, logger, 10, 20)

	addr := fmt.Sprintf("%s:%d", proxyCfg.Host, proxyCfg.Port)
	logger.Info(ctx, "failcore-proxy: listening", "addr", addr, "run_id", rc.RunID)

	httpServer := &http.Server{Addr: addr, Handler: server.Router()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.UpstreamTimeout)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("failcore-proxy: serve: %v", err))
	}
}
