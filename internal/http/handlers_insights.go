package http

import (
	"net/http"

	"receipts/internal/core"
	"receipts/internal/insights"
)

type insightsRequest struct {
	Receipts    []core.Record `json:"receipts"`
	MaxInsights int           `json:"maxInsights"`
}

type budgetSuggestionsRequest struct {
	Categories []insights.CategorySpend `json:"categories"`
}

type budgetAdviceRequest struct {
	Receipts []core.Record `json:"receipts"`
	MaxTips  int           `json:"maxTips"`
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	var req insightsRequest
	if err := NewRequestBodyParser(w, r, s.cfg.MaxBodyBytes).Decode(&req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Receipts) == 0 {
		writeError(w, r, core.ErrNoReceipts)
		return
	}

	res, err := s.deps.Insights.Generate(r.Context(), core.ReceiptsFromRecords(req.Receipts), req.MaxInsights)
	if err != nil {
		writeError(w, r, err)
		return
	}
	Success().
		Set("insights", res.Text).
		SetIf(res.Fallback, "fallback", true).
		Write(w)
}

func (s *Server) handleBudgetSuggestions(w http.ResponseWriter, r *http.Request) {
	var req budgetSuggestionsRequest
	if err := NewRequestBodyParser(w, r, s.cfg.MaxBodyBytes).Decode(&req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Categories) == 0 {
		writeError(w, r, core.ErrNoCategories)
		return
	}

	suggestions, fallback, err := s.deps.Advisor.SuggestBudgets(r.Context(), req.Categories)
	if err != nil {
		writeError(w, r, err)
		return
	}
	Success().
		Set("suggestions", orEmpty(suggestions)).
		SetIf(fallback, "fallback", true).
		Write(w)
}

func (s *Server) handleBudgetAdvice(w http.ResponseWriter, r *http.Request) {
	var req budgetAdviceRequest
	if err := NewRequestBodyParser(w, r, s.cfg.MaxBodyBytes).Decode(&req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Receipts) == 0 {
		writeError(w, r, core.ErrNoReceipts)
		return
	}

	res, err := s.deps.Advisor.SavingAdvice(r.Context(), core.ReceiptsFromRecords(req.Receipts), req.MaxTips)
	if err != nil {
		writeError(w, r, err)
		return
	}
	Success().
		Set("advice", res.Text).
		SetIf(res.Fallback, "fallback", true).
		Write(w)
}
