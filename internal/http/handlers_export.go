package http

import (
	"net/http"

	"receipts/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) exportRequest(w http.ResponseWriter, r *http.Request) (services.ExportRequest, error) {
	var req services.ExportRequest
	err := NewRequestBodyParser(w, r, s.cfg.MaxBodyBytes).Decode(&req)
	req.Period = sanitizeInput(req.Period)
	return req, err
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	req, err := s.exportRequest(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.deps.Exports.CSV(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	Success().Set("data", out).Write(w)
}

func (s *Server) handleExportSummary(w http.ResponseWriter, r *http.Request) {
	req, err := s.exportRequest(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.deps.Exports.Summary(r.Context(), req.Limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	Success().Set("data", out).Write(w)
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	req, err := s.exportRequest(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.deps.Exports.XLSX(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Attachment(xlsxContentType, out.Filename, out.Data).
		Write(w)
}

func (s *Server) handleExportSheets(w http.ResponseWriter, r *http.Request) {
	req, err := s.exportRequest(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.deps.Exports.ExportToSheets(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	Success().Set("data", out).Write(w)
}
