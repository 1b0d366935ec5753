package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"receipts/internal/core"
	"receipts/internal/services"
)

// ReceiptConsumer delivers queued receipts to a handler until ctx is done.
type ReceiptConsumer interface {
	ConsumeReceipts(ctx context.Context, handler func(context.Context, core.Record) error) error
}

// Stats counts handled messages by outcome.
type Stats struct {
	Ingested int64 `json:"ingested"`
	Rejected int64 `json:"rejected"`
	Failed   int64 `json:"failed"`
}

// IngestWorker ingests receipts delivered over the message queue.
type IngestWorker struct {
	ingester   services.Ingester
	retryDelay time.Duration

	ingested atomic.Int64
	rejected atomic.Int64
	failed   atomic.Int64
}

func NewIngestWorker(ingester services.Ingester, retryDelay time.Duration) *IngestWorker {
	if retryDelay <= 0 {
		retryDelay = 5 * time.Second
	}
	return &IngestWorker{ingester: ingester, retryDelay: retryDelay}
}

// HandleReceipt ingests one queued receipt. The error is returned unchanged
// so the consumer can tell poison messages (client errors) from transient
// failures.
func (w *IngestWorker) HandleReceipt(ctx context.Context, rec core.Record) error {
	res, err := w.ingester.Ingest(ctx, rec)
	switch {
	case err == nil:
		w.ingested.Add(1)
		slog.InfoContext(ctx, "Ingested queued receipt", "id", res.ID, "vendor", res.Vendor)
	case core.IsClientError(err):
		w.rejected.Add(1)
		slog.WarnContext(ctx, "Rejected queued receipt", "error", err)
	default:
		w.failed.Add(1)
		slog.ErrorContext(ctx, "Failed to ingest queued receipt", "error", err)
	}
	return err
}

// Run consumes until ctx is done, restarting the consumer after retryDelay
// whenever it stops with an error.
func (w *IngestWorker) Run(ctx context.Context, consumer ReceiptConsumer) error {
	for {
		err := consumer.ConsumeReceipts(ctx, w.HandleReceipt)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil || errors.Is(err, context.Canceled) {
			return err
		}

		slog.ErrorContext(ctx, "Receipt consumer stopped, restarting", "error", err, "retry_in", w.retryDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.retryDelay):
		}
	}
}

func (w *IngestWorker) Stats() Stats {
	return Stats{
		Ingested: w.ingested.Load(),
		Rejected: w.rejected.Load(),
		Failed:   w.failed.Load(),
	}
}
