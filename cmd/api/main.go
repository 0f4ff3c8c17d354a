package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/compliance-copilot/internal/adapters/http"
	"github.com/kirillkom/compliance-copilot/internal/bootstrap"
	"github.com/kirillkom/compliance-copilot/internal/config"
	"github.com/kirillkom/compliance-copilot/internal/observability/logging"
	"github.com/kirillkom/compliance-copilot/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewJSONLogger("compliance-copilot-api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	m := metrics.NewHTTPServerMetrics("compliance-copilot-api")
	router := httpadapter.NewRouter(app.IngestUC, app.QueryUC, app.Repo, m, httpadapter.Options{
		RateLimitRPS:        cfg.APIRateLimitRPS,
		RateLimitBurst:      cfg.APIRateLimitBurst,
		MaxConcurrent:       cfg.APIMaxConcurrent,
		BackpressureTimeout: time.Duration(cfg.APIBackpressureMS) * time.Millisecond,
	}).Handler()

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown error", "error", err)
	}
}
