package http

import (
	"net/http"

	"receipts/internal/log"
	"receipts/internal/services"
)

const msgReceiptSaved = "Receipt saved successfully"

// handleIngest accepts one receipt document from the upstream workflow.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rec, err := NewRequestBodyParser(w, r, s.cfg.MaxBodyBytes).Record()
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.deps.Ingestion.Ingest(ctx, rec)
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.FromContext(ctx).DebugContext(ctx, "Receipt accepted", log.FieldReceiptID, res.ID)
	Success().
		Set("id", res.ID).
		Set("message", msgReceiptSaved).
		Set("data", map[string]any{
			"vendor": res.Vendor,
			"total":  res.Total,
			"date":   res.Date,
		}).
		Write(w)
}

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := QueryLimit(q, "limit", services.DefaultListLimit, services.MaxListLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	recs, err := s.deps.Receipts.List(r.Context(), services.ListFilter{
		Limit:    limit,
		Vendor:   QueryString(q, "vendor"),
		Category: QueryString(q, "category"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	Success().
		Set("receipts", orEmpty(recs)).
		Set("count", len(recs)).
		Write(w)
}

func (s *Server) handleUpdateReceipt(w http.ResponseWriter, r *http.Request) {
	id := sanitizeInput(r.PathValue("id"))

	partial, err := NewRequestBodyParser(w, r, s.cfg.MaxBodyBytes).Record()
	if err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := s.deps.Receipts.Update(r.Context(), id, partial)
	if err != nil {
		writeError(w, r, err)
		return
	}
	Success().Set("receipt", updated).Write(w)
}

func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	id := sanitizeInput(r.PathValue("id"))
	if err := s.deps.Receipts.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	Success().Set("id", id).Write(w)
}
