package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"receipts/internal/amqp"
	"receipts/internal/cache"
	"receipts/internal/cli"
	"receipts/internal/config"
	apphttp "receipts/internal/http"
	"receipts/internal/insights"
	"receipts/internal/llm"
	applog "receipts/internal/log"
	"receipts/internal/metrics"
	"receipts/internal/services"
	ports "receipts/internal/sheets"
	gsheet "receipts/internal/sheets/google"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig()

	ctx := context.Background()
	m := metrics.New()

	backend := cli.InitStore(ctx, logger, cfg)
	st := backend.Store

	// Event publishing is optional; ingestion never depends on the broker.
	var publisher services.EventPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			amqpClient = c
			publisher = c
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	var (
		exporter   ports.ReceiptExporter
		categories ports.CategoryReader
	)
	if cfg.HasSheets() {
		sc, err := gsheet.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		exporter, categories = sc, sc
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	}

	cacheManager := cache.NewManager()
	aiProvider, closeAI := newAIProvider(ctx, cfg, logger, cacheManager)
	cacheManager.StartCleanup(5 * time.Minute)

	insightOpts := insights.Options{
		AI:       aiProvider,
		Timeout:  cfg.LLMTimeout,
		Logger:   logger.With(applog.FieldComponent, applog.ComponentInsights),
		Recorder: m,
	}

	ingestion := services.NewIngestionService(st, publisher, m, services.IngestionConfig{
		Source:         cfg.IngestSource,
		AllowZeroTotal: cfg.AllowZeroTotal,
	})
	exports := services.NewExportService(st, exporter, cfg.ExportDefaultLimit)

	var mirror *services.MirrorProcessor
	if exporter != nil && cfg.SheetsMirrorEvery > 0 {
		mirror = services.NewMirrorProcessor(st, exports, services.MirrorConfig{
			PollInterval: cfg.SheetsMirrorEvery,
			Limit:        cfg.ExportDefaultLimit,
		})
		if err := mirror.Start(ctx); err != nil {
			logger.Error("Failed to start sheets mirror", "error", err)
			mirror = nil
		}
	}

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               net.JoinHostPort("", cfg.Port),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		MaxBodyBytes:       apphttp.DefaultMaxBodyBytes,
	}, apphttp.Deps{
		Ingestion:  ingestion,
		Exports:    exports,
		Insights:   insights.NewEngine(insightOpts),
		Advisor:    insights.NewBudgetAdvisor(insightOpts),
		Categories: services.NewCategoryService(st, categories),
		Receipts:   services.NewReceiptService(st),
		Metrics:    m,
		Logger:     applog.New(applog.Config{Handler: logger.Handler(), Component: applog.ComponentHTTP}),
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = cfg.LLMTimeout + 15*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if mirror != nil {
			if err := mirror.Stop(ctx); err != nil {
				logger.Warn("Sheets mirror did not stop cleanly", "error", err)
			}
		}
		cacheManager.Stop()
		closeAI()
		if amqpClient != nil {
			amqpClient.Close()
		}
		if backend.Cleanup != nil {
			if err := backend.Cleanup(); err != nil {
				logger.Error("Failed to close store", "error", err)
			}
		}
	})

	logger.Info("Starting receipts server",
		"port", cfg.Port,
		"backend", cfg.StoreBackend,
		"ai_enabled", aiProvider != nil,
		"sheets_enabled", exporter != nil,
		"events_enabled", publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}

// newAIProvider returns nil when no model credential is configured. Responses
// are cached in Redis when REDIS_URL is set, in process otherwise.
func newAIProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger, manager *cache.Manager) (insights.InsightProvider, func()) {
	noop := func() {}
	if !cfg.HasAI() {
		logger.Info("No OPENAI_API_KEY configured, insights use the heuristic path")
		return nil, noop
	}

	var (
		responses cache.Cache[string]
		closeFn   = noop
	)
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis unavailable, falling back to in-process AI cache", "error", err)
		} else {
			responses = cache.NewRedisCache(client, "receipts:ai:", cfg.AICacheTTL)
			closeFn = func() { _ = client.Close() }
		}
	}
	if responses == nil {
		lru := cache.NewLRUCache[string](cfg.AICacheSize, cfg.AICacheTTL)
		manager.Register(lru)
		responses = lru
	}

	client := llm.NewClient(llm.Config{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.OpenAIModel,
		Temperature: cfg.OpenAITemperature,
		Timeout:     cfg.LLMTimeout,
	}, logger.With(applog.FieldComponent, "llm"))

	return insights.NewAIProvider(client, client.Model(), responses, logger), closeFn
}
