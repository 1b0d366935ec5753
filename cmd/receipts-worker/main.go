package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"receipts/internal/amqp"
	"receipts/internal/cli"
	"receipts/internal/metrics"
	"receipts/internal/services"
	"receipts/internal/worker"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig()
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the ingestion worker")
		os.Exit(1)
	}

	logger.Info("Starting receipts-worker", "backend", cfg.StoreBackend, "queue", cfg.AMQPQueue)

	backend := cli.InitStore(context.Background(), logger, cfg)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	ingestion := services.NewIngestionService(backend.Store, amqpClient, m, services.IngestionConfig{
		Source:         cfg.IngestSource,
		AllowZeroTotal: cfg.AllowZeroTotal,
	})
	w := worker.NewIngestWorker(ingestion, 5*time.Second)

	// Metrics only; the worker serves no API.
	metricsSrv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Metrics listener stopped", "error", err)
		}
	}()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		_ = metricsSrv.Shutdown(ctx)
		amqpClient.Close()
		if backend.Cleanup != nil {
			if err := backend.Cleanup(); err != nil {
				logger.Error("Failed to close store", "error", err)
			}
		}
	})

	if err := w.Run(ctx, amqpClient); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Receipt consumption failed", "error", err)
	}

	cli.WaitForShutdown(ctx, done)
	stats := w.Stats()
	logger.Info("Worker shutdown complete",
		"ingested", stats.Ingested,
		"rejected", stats.Rejected,
		"failed", stats.Failed)
}
