package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"receipts/internal/core"
	"receipts/internal/services"
	"receipts/internal/store/memory"
)

type scriptedConsumer struct {
	calls   atomic.Int32
	records []core.Record
	errs    []error
	handled []error
}

func (c *scriptedConsumer) ConsumeReceipts(ctx context.Context, handler func(context.Context, core.Record) error) error {
	n := int(c.calls.Add(1)) - 1
	if n == 0 {
		for _, r := range c.records {
			c.handled = append(c.handled, handler(ctx, r))
		}
	}
	if n < len(c.errs) {
		return c.errs[n]
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestIngestWorker_HandleReceipt(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	w := NewIngestWorker(services.NewIngestionService(st, nil, nil, services.IngestionConfig{Source: "queue"}), 0)

	valid := core.Record{"vendor": "A", "date": "2024-01-02", "total": 3.5, "category": "Food"}
	if err := w.HandleReceipt(ctx, valid); err != nil {
		t.Fatalf("valid receipt: %v", err)
	}

	err := w.HandleReceipt(ctx, core.Record{"vendor": "A"})
	if !core.IsClientError(err) {
		t.Fatalf("expected client error, got %v", err)
	}

	got, _ := st.GetByField(ctx, core.CollectionReceipts, "source", "queue")
	if len(got) != 1 {
		t.Fatalf("stored %d receipts with source=queue, want 1", len(got))
	}
	if s := w.Stats(); s.Ingested != 1 || s.Rejected != 1 || s.Failed != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestIngestWorker_RunRestartsConsumer(t *testing.T) {
	consumer := &scriptedConsumer{
		records: []core.Record{{"vendor": "A", "date": "2024-01-02", "total": 1.0, "category": "Food"}},
		errs:    []error{errors.New("message channel closed")},
	}
	w := NewIngestWorker(services.NewIngestionService(memory.New(), nil, nil, services.IngestionConfig{}), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, consumer) }()

	deadline := time.After(2 * time.Second)
	for consumer.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("consumer was not restarted")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
	if len(consumer.handled) != 1 || consumer.handled[0] != nil {
		t.Errorf("handled = %v", consumer.handled)
	}
}
