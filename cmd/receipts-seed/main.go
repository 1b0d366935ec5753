package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"receipts/internal/amqp"
	"receipts/internal/cli"
	"receipts/internal/core"
	"receipts/internal/services"
)

// queueIngester hands receipts to the ingestion queue instead of the store.
type queueIngester struct {
	client *amqp.Client
}

func (q queueIngester) Ingest(ctx context.Context, rec core.Record) (services.IngestResult, error) {
	if err := q.client.PublishReceipt(ctx, rec); err != nil {
		return services.IngestResult{}, core.NewDependencyError("amqp", err)
	}
	return services.IngestResult{Vendor: rec[core.FieldVendor], Total: rec[core.FieldTotal], Date: rec[core.FieldDate]}, nil
}

func main() {
	n := flag.Int("n", 100, "number of sample receipts to generate")
	file := flag.String("file", "", "JSON file with an array of receipts (overrides -n)")
	seed := flag.Uint64("seed", uint64(time.Now().UnixNano()), "random seed for sample receipts")
	toQueue := flag.Bool("queue", false, "publish to the AMQP ingestion queue instead of writing to the store")
	flag.Parse()

	cfg, logger := cli.LoadAndValidateConfig()

	var (
		recs []core.Record
		err  error
	)
	if *file != "" {
		recs, err = services.ReadRecordsFile(*file)
		if err != nil {
			logger.Error("Failed to read receipts file", "error", err, "path", *file)
			os.Exit(1)
		}
	} else {
		recs = services.SampleReceipts(*n, time.Now(), *seed)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var ingester services.Ingester
	if *toQueue {
		if cfg.AMQPURL == "" {
			logger.Error("AMQP_URL is required with -queue")
			os.Exit(1)
		}
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		ingester = queueIngester{client: client}
	} else {
		backend := cli.InitStore(ctx, logger, cfg)
		if backend.Cleanup != nil {
			defer backend.Cleanup()
		}
		ingester = services.NewIngestionService(backend.Store, nil, nil, services.IngestionConfig{
			Source:         cfg.IngestSource,
			AllowZeroTotal: cfg.AllowZeroTotal,
		})
	}

	loader := services.NewLoader(ingester, services.LoaderConfig{
		ChunkSize:  cfg.SeedChunkSize,
		ChunkDelay: cfg.SeedChunkDelay,
	})

	logger.Info("Loading receipts", "count", len(recs), "queue", *toQueue, "backend", cfg.StoreBackend)
	start := time.Now()
	rep, err := loader.Load(ctx, recs)
	logger.Info("Load finished",
		"written", rep.Written,
		"rejected", rep.Rejected,
		"failed", rep.Failed,
		"duration", time.Since(start).Round(time.Millisecond).String())
	if err != nil {
		logger.Error("Load interrupted", "error", err)
		os.Exit(1)
	}
}
