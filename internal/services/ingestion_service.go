package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"receipts/internal/core"
	applog "receipts/internal/log"
	"receipts/internal/metrics"
	"receipts/internal/store"
)

// DefaultSource tags receipts whose provenance was not configured.
const DefaultSource = "n8n-workflow"

// IngestedEvent announces a stored receipt.
type IngestedEvent struct {
	ID          string  `json:"id"`
	Vendor      string  `json:"vendor"`
	Total       float64 `json:"total"`
	Category    string  `json:"category"`
	Date        string  `json:"date"`
	Source      string  `json:"source"`
	ProcessedAt string  `json:"processed_at"`
}

// EventPublisher delivers ingestion events. Failures never fail an ingestion.
type EventPublisher interface {
	PublishReceiptIngested(ctx context.Context, ev IngestedEvent) error
}

// IngestionRecorder counts ingestion outcomes and event deliveries.
type IngestionRecorder interface {
	ReceiptIngested(outcome string)
	EventPublished(ok bool)
}

// IngestResult echoes the stored receipt's key fields.
type IngestResult struct {
	ID     string `json:"id"`
	Vendor any    `json:"vendor"`
	Total  any    `json:"total"`
	Date   any    `json:"date"`
}

// IngestionConfig tunes IngestionService.
type IngestionConfig struct {
	Source         string
	AllowZeroTotal bool
}

// IngestionService validates and stores receipts produced by the upstream workflow.
type IngestionService struct {
	store     store.Store
	publisher EventPublisher
	recorder  IngestionRecorder
	cfg       IngestionConfig
	logs      *applog.StructuredLogger
	now       func() time.Time
}

// NewIngestionService wires the service. publisher and recorder may be nil.
func NewIngestionService(st store.Store, publisher EventPublisher, recorder IngestionRecorder, cfg IngestionConfig) *IngestionService {
	if strings.TrimSpace(cfg.Source) == "" {
		cfg.Source = DefaultSource
	}
	return &IngestionService{
		store:     st,
		publisher: publisher,
		recorder:  recorder,
		cfg:       cfg,
		logs:      applog.NewStructuredLogger(nil),
		now:       time.Now,
	}
}

// Ingest validates rec, stamps server fields and appends it to the receipts
// collection. Identical submissions produce separate documents.
//
// Errors: *core.UpstreamError or *core.MissingFieldsError for bad input (no
// write happens), *core.DependencyError when the store rejects the write.
func (s *IngestionService) Ingest(ctx context.Context, rec core.Record) (IngestResult, error) {
	if details, failed := upstreamFailure(rec); failed {
		s.count(metrics.OutcomeRejected)
		slog.WarnContext(ctx, "Upstream workflow reported an error", "details", details)
		return IngestResult{}, &core.UpstreamError{Details: details}
	}

	if missing := core.ValidateRecordWith(rec, core.ValidateOptions{AllowZeroTotal: s.cfg.AllowZeroTotal}); len(missing) > 0 {
		s.count(metrics.OutcomeRejected)
		slog.WarnContext(ctx, "Receipt rejected", "missing_fields", missing)
		return IngestResult{}, &core.MissingFieldsError{Missing: missing, Received: rec.Keys()}
	}

	doc := rec.Clone()
	delete(doc, core.FieldID)
	processedAt := s.now().UTC().Format(time.RFC3339Nano)
	doc[core.FieldProcessedAt] = processedAt
	doc[core.FieldStatus] = string(core.StatusProcessed)
	doc[core.FieldSource] = s.cfg.Source

	id, err := s.store.Append(ctx, core.CollectionReceipts, doc)
	if err != nil {
		s.count(metrics.OutcomeFailed)
		s.logs.LogError(ctx, "Failed to save receipt", err, applog.ComponentIngest, applog.OpIngest,
			applog.NewFields().WithReceipt("", doc.String(core.FieldVendor), doc.Number(core.FieldTotal), doc.String(core.FieldCategory)))
		return IngestResult{}, core.NewDependencyError("store", fmt.Errorf("save receipt: %w", err))
	}
	s.count(metrics.OutcomeAccepted)

	s.logs.LogReceiptIngested(ctx, id, doc.String(core.FieldVendor), doc.Number(core.FieldTotal),
		doc.String(core.FieldCategory), s.cfg.Source)

	s.publish(ctx, IngestedEvent{
		ID:          id,
		Vendor:      doc.String(core.FieldVendor),
		Total:       doc.Number(core.FieldTotal),
		Category:    doc.String(core.FieldCategory),
		Date:        doc.String(core.FieldDate),
		Source:      s.cfg.Source,
		ProcessedAt: processedAt,
	})

	return IngestResult{
		ID:     id,
		Vendor: rec[core.FieldVendor],
		Total:  rec[core.FieldTotal],
		Date:   rec[core.FieldDate],
	}, nil
}

func (s *IngestionService) publish(ctx context.Context, ev IngestedEvent) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishReceiptIngested(ctx, ev)
	if s.recorder != nil {
		s.recorder.EventPublished(err == nil)
	}
	if err != nil {
		// Don't fail the request - the receipt is stored
		slog.ErrorContext(ctx, "Failed to publish receipt event", "receipt_id", ev.ID, "error", err)
	}
}

func (s *IngestionService) count(outcome string) {
	if s.recorder != nil {
		s.recorder.ReceiptIngested(outcome)
	}
}

// upstreamFailure reports whether the workflow flagged rec as failed: a truthy
// "error" field or success == false.
func upstreamFailure(rec core.Record) (any, bool) {
	if e, ok := rec["error"]; ok && truthy(e) {
		return e, true
	}
	if v, ok := rec["success"].(bool); ok && !v {
		if d, ok := rec["details"]; ok {
			return d, true
		}
		if m, ok := rec["message"]; ok {
			return m, true
		}
		return "workflow reported success=false", true
	}
	return nil, false
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return strings.TrimSpace(t) != ""
	case float64:
		return t != 0
	default:
		return true
	}
}
