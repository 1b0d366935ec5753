package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"receipts/internal/core"
	"receipts/internal/insights"
	"receipts/internal/log"
	"receipts/internal/metrics"
	"receipts/internal/middleware/ratelimit"
	"receipts/internal/middleware/security"
	"receipts/internal/middleware/trace"
	"receipts/internal/services"
)

// Ingester validates and stores one upstream receipt.
type Ingester interface {
	Ingest(ctx context.Context, rec core.Record) (services.IngestResult, error)
}

// Exporter renders stored receipts for download.
type Exporter interface {
	CSV(ctx context.Context, req services.ExportRequest) (services.CSVExport, error)
	Summary(ctx context.Context, limit int) (services.SummaryExport, error)
	XLSX(ctx context.Context, req services.ExportRequest) (services.XLSXExport, error)
	ExportToSheets(ctx context.Context, req services.ExportRequest) (services.SheetsExport, error)
}

// InsightGenerator turns receipts into markdown insights.
type InsightGenerator interface {
	Generate(ctx context.Context, receipts []core.Receipt, maxInsights int) (insights.Result, error)
}

// Advisor produces budget suggestions and saving advice.
type Advisor interface {
	SuggestBudgets(ctx context.Context, categories []insights.CategorySpend) ([]insights.BudgetSuggestion, bool, error)
	SavingAdvice(ctx context.Context, receipts []core.Receipt, maxTips int) (insights.Result, error)
}

// CategoryLister returns category names, seeding defaults on first use.
type CategoryLister interface {
	List(ctx context.Context) ([]string, error)
}

// ReceiptManager covers the maintenance endpoints.
type ReceiptManager interface {
	List(ctx context.Context, f services.ListFilter) ([]core.Record, error)
	Update(ctx context.Context, id string, partial core.Record) (core.Record, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (services.Stats, error)
	Ping(ctx context.Context) error
}

// Deps are the collaborators behind the routes. Metrics and Logger may be nil.
type Deps struct {
	Ingestion  Ingester
	Exports    Exporter
	Insights   InsightGenerator
	Advisor    Advisor
	Categories CategoryLister
	Receipts   ReceiptManager
	Metrics    *metrics.Metrics
	Logger     *log.Logger
}

// Config holds listener and middleware settings.
type Config struct {
	Addr               string
	RateLimitPerMinute int
	MaxBodyBytes       int64
	ReadyTimeout       time.Duration
}

// Server is the JSON API.
type Server struct {
	http.Server
	deps        Deps
	cfg         Config
	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware
	startedAt   time.Time
}

func NewServer(cfg Config, deps Deps) *Server {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 2 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = log.FromContext(context.Background()).WithComponent(log.ComponentHTTP)
	}

	s := &Server{
		deps:        deps,
		cfg:         cfg,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		detector:    security.NewDetector(),
		startedAt:   time.Now(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	s.handle(mux, "GET /healthz", s.handleHealth)
	s.handle(mux, "GET /readyz", s.handleReady)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
	}

	s.handle(mux, "POST /api/receipts/ingest", s.handleIngest)
	s.handle(mux, "GET /api/receipts", s.handleListReceipts)
	s.handle(mux, "PATCH /api/receipts/{id}", s.handleUpdateReceipt)
	s.handle(mux, "DELETE /api/receipts/{id}", s.handleDeleteReceipt)

	s.handle(mux, "POST /api/export/csv", s.handleExportCSV)
	s.handle(mux, "POST /api/export/summary", s.handleExportSummary)
	s.handle(mux, "POST /api/export/xlsx", s.handleExportXLSX)
	s.handle(mux, "POST /api/export/sheets", s.handleExportSheets)

	s.handle(mux, "POST /api/insights", s.handleInsights)
	s.handle(mux, "POST /api/budget/suggestions", s.handleBudgetSuggestions)
	s.handle(mux, "POST /api/budget/advice", s.handleBudgetAdvice)

	s.handle(mux, "GET /api/categories", s.handleCategories)
	s.handle(mux, "GET /api/stats", s.handleStats)

	s.registerMetrics()

	// Outermost first: trace, headers, detection, rate limit, logger context.
	var h http.Handler = mux
	h = log.RequestIDMiddleware(func(r *http.Request) string { return trace.GetRequestID(r.Context()) })(h)
	h = log.Middleware(deps.Logger)(h)
	h = s.rateLimiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		slog.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	}, http.MethodPost)(h)
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// handle registers h under pattern and records its latency by route.
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := trace.NewResponseWriter(w)
		h(rw, r)
		s.deps.Metrics.ObserveHTTP(r.Method, pattern, rw.StatusCode(), time.Since(start))
	})
}

func (s *Server) registerMetrics() {
	m := s.deps.Metrics
	if m == nil {
		return
	}
	m.GaugeFunc("rate_limit_active_clients", "Clients currently tracked by the rate limiter.",
		func() float64 { return float64(s.rateLimiter.ActiveClients()) })
	m.CounterFunc("rate_limit_rejections_total", "Requests rejected by the rate limiter.",
		func() float64 { return float64(s.rateLimiter.GetMetrics().TotalHits) })
	m.CounterFunc("security_suspicious_requests_total", "Requests flagged by the security detector.",
		func() float64 { return float64(s.detector.GetMetrics().SuspiciousRequests) })
	m.CounterFunc("security_invalid_ip_headers_total", "Forwarded-address headers that failed to parse.",
		func() float64 { return float64(s.detector.GetMetrics().InvalidIPAttempts) })
}

// Shutdown drains connections and stops the rate limiter sweep.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.InfoContext(ctx, "Shutting down HTTP server")
	s.rateLimiter.Stop()

	tm := s.tracer.GetMetrics()
	slog.InfoContext(ctx, "HTTP traffic summary",
		"total_requests", tm.TotalRequests,
		"average_response_time_us", tm.AverageResponseTime)

	return s.Server.Shutdown(ctx)
}
