package http

import (
	"errors"
	"net/http"

	"receipts/internal/core"
	"receipts/internal/log"
	"receipts/internal/services"
)

// Fixed wire messages for the ingestion endpoint.
const (
	msgMissingFields = "Missing required fields"
	msgUpstream      = "Invalid receipt data received from workflow"
)

// writeError maps err onto a JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.FromContext(r.Context())

	var (
		missing  *core.MissingFieldsError
		upstream *core.UpstreamError
	)
	switch {
	case errors.As(err, &missing):
		BadRequestError(msgMissingFields).
			Set("missing_fields", orEmpty(missing.Missing)).
			Set("received_fields", orEmpty(missing.Received)).
			Write(w)
	case errors.As(err, &upstream):
		BadRequestError(msgUpstream).Set("details", upstream.Details).Write(w)
	case errors.Is(err, core.ErrNothingToExport):
		NewJSONResponse().
			Status(http.StatusNotFound).
			Set("success", false).
			Set("message", core.Message(err)).
			Write(w)
	case errors.Is(err, services.ErrSheetsNotConfigured):
		ServiceUnavailableError(err.Error()).Write(w)
	case errors.Is(err, core.ErrNotFound):
		NotFoundError("Receipt not found").Write(w)
	case core.IsClientError(err):
		BadRequestError(core.Message(err)).Write(w)
	default:
		logger.ErrorContext(r.Context(), "Request failed",
			log.FieldError, err,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			"dependency", core.IsDependencyError(err),
		)
		InternalServerError(core.Message(err)).Write(w)
	}
}
