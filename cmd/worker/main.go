package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/compliance-copilot/internal/bootstrap"
	"github.com/kirillkom/compliance-copilot/internal/config"
	"github.com/kirillkom/compliance-copilot/internal/observability/logging"
	"github.com/kirillkom/compliance-copilot/internal/observability/metrics"
)

const serviceName = "compliance-copilot-worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	m := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: m.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeDocumentUploaded(ctx, func(handlerCtx context.Context, documentID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()

		if doc, lookupErr := app.Repo.GetByID(processCtx, documentID); lookupErr == nil {
			m.ObserveQueueLag(serviceName, time.Since(doc.CreatedAt))
		}

		m.StartDocument()
		start := time.Now()
		report, err := app.ProcessUC.ProcessByID(processCtx, documentID)

		status := "error"
		chunks := 0
		if report != nil {
			status = string(report.Status)
			chunks = report.ChunkCount
		}
		m.FinishDocument(serviceName, status, chunks, time.Since(start))

		if err != nil {
			logger.Error("document processing failed",
				"document_id", documentID, "status", status, "error", err)
			return err
		}
		logger.Info("document processed",
			"document_id", documentID, "status", status, "chunks", chunks)
		return nil
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
