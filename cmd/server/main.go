package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codecritics/codecritic/internal/config"
	"github.com/codecritics/codecritic/internal/diffproc"
	"github.com/codecritics/codecritic/internal/health"
	"github.com/codecritics/codecritic/internal/hostclient"
	"github.com/codecritics/codecritic/internal/llm"
	"github.com/codecritics/codecritic/internal/logging"
	"github.com/codecritics/codecritic/internal/orchestrator"
	"github.com/codecritics/codecritic/internal/webhook"
)

const serviceName = "codecritic"

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, logCleanup := logging.Setup(cfg)
	defer logCleanup()

	host := hostclient.NewMCPClient(cfg)

	if _, _, err := host.ValidateIdentity(context.Background()); err != nil {
		logger.Warn("source host identity check failed, starting anyway", "error", err)
	}

	gateway, err := llm.NewGateway(cfg)
	if err != nil {
		// A zero Gateway fails every Complete call with ProviderUnavailable,
		// so the service keeps serving and each review job fails cleanly.
		logger.Error("no llm provider available, review jobs will fail", "error", err)
		gateway = &llm.Gateway{}
	}
	logger.Info("llm gateway ready", "provider", gateway.ProviderName())

	fetcher := diffproc.NewFetcher(host, nil)
	processor := diffproc.NewProcessor(cfg)

	reviewOrchestrator := orchestrator.New(cfg, host, gateway, fetcher, processor)
	dispatcher := webhook.NewDispatcher(cfg, reviewOrchestrator)
	healthHandler := health.NewHandler(cfg, host, gateway)

	mux := http.NewServeMux()
	mux.Handle("/api/webhooks", dispatcher)
	mux.Handle("/health", healthHandler)
	mux.HandleFunc("/api/info", infoHandler)
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server start failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("server stopping")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown forced", "error", err)
		os.Exit(1)
	}

	logger.Info("waiting for in-flight review jobs")
	done := make(chan struct{})
	go func() {
		dispatcher.WaitForCompletion()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("review jobs drained")
	case <-time.After(30 * time.Second):
		logger.Warn("timed out waiting for review jobs, exiting anyway")
	}

	logger.Info("server stopped")
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"name":    serviceName,
		"version": version,
		"endpoints": []string{
			"POST /api/webhooks",
			"GET /health",
			"GET /api/info",
			"GET /metrics",
		},
	})
}
