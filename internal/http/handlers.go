package http

import (
	"context"
	"net/http"
	"time"

	"receipts/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	Success().
		Set("status", "ok").
		Set("timestamp", time.Now().UTC().Format(time.RFC3339)).
		Set("uptime", time.Since(s.startedAt).Round(time.Second).String()).
		Write(w)
}

// handleReady probes the store and reports middleware state.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ReadyTimeout)
	defer cancel()

	checks := map[string]any{
		"rate_limiter": map[string]any{
			"active_clients": s.rateLimiter.ActiveClients(),
			"status":         "ok",
		},
	}

	status, code := "ready", http.StatusOK
	if s.deps.Receipts == nil {
		checks["store"] = "not_configured"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else if err := s.deps.Receipts.Ping(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Readiness probe failed", log.FieldError, err)
		checks["store"] = "failed: " + err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	NewJSONResponse().
		Status(code).
		Set("success", code == http.StatusOK).
		Set("status", status).
		Set("timestamp", time.Now().UTC().Format(time.RFC3339)).
		Set("checks", checks).
		Write(w)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Receipts.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	Success().
		Set("receipts", stats.Receipts).
		Set("categories", stats.Categories).
		Write(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	names, err := s.deps.Categories.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	Success().Set("categories", orEmpty(names)).Write(w)
}
