// Package metrics exposes Prometheus counters and histograms for the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ingestion outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics owns a private registry so tests can build as many instances as they need.
type Metrics struct {
	registry         *prometheus.Registry
	receiptsIngested *prometheus.CounterVec
	insights         *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	eventsPublished  *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		receiptsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "receipts_ingested_total",
			Help: "Receipts submitted for ingestion, by outcome.",
		}, []string{"outcome"}),
		insights: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "insights_generated_total",
			Help: "Insight, advice and budget results, by kind and generation path.",
		}, []string{"kind", "path"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "receipt_events_published_total",
			Help: "receipt.ingested events handed to the broker, by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		m.receiptsIngested,
		m.insights,
		m.httpDuration,
		m.eventsPublished,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ReceiptIngested counts one ingestion attempt.
func (m *Metrics) ReceiptIngested(outcome string) {
	if m == nil {
		return
	}
	m.receiptsIngested.WithLabelValues(outcome).Inc()
}

// InsightGenerated counts one generated result. path is ai, heuristic or fallback.
func (m *Metrics) InsightGenerated(kind, path string) {
	if m == nil {
		return
	}
	m.insights.WithLabelValues(kind, path).Inc()
}

// EventPublished counts one event publish attempt.
func (m *Metrics) EventPublished(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.eventsPublished.WithLabelValues(result).Inc()
}

// ObserveHTTP records the latency of one request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// GaugeFunc registers a gauge sampled from fn at scrape time.
func (m *Metrics) GaugeFunc(name, help string, fn func() float64) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, fn))
}

// CounterFunc registers a counter sampled from fn at scrape time.
func (m *Metrics) CounterFunc(name, help string, fn func() float64) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{Name: name, Help: help}, fn))
}
