package services

import (
	"context"
	"errors"
	"testing"

	"receipts/internal/core"
	"receipts/internal/store"
	"receipts/internal/store/memory"
)

func seedListReceipts(t *testing.T, st store.Store) []string {
	t.Helper()
	ctx := context.Background()
	rows := []core.Record{
		{"vendor": "Acme", "category": "Groceries", "total": 10.0, "processed_at": "2024-03-01T10:00:00Z"},
		{"vendor": "Acme", "category": "Shopping", "total": 20.0, "processed_at": "2024-03-03T10:00:00Z"},
		{"vendor": "Shell", "category": "Gas", "total": 30.0, "processed_at": "2024-03-02T10:00:00Z"},
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		id, err := st.Append(ctx, core.CollectionReceipts, r)
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestReceiptServiceList(t *testing.T) {
	st := memory.New()
	seedListReceipts(t, st)
	svc := NewReceiptService(st)

	tests := []struct {
		name    string
		filter  ListFilter
		vendors []string
	}{
		{"all newest first", ListFilter{}, []string{"Acme", "Shell", "Acme"}},
		{"limit", ListFilter{Limit: 1}, []string{"Acme"}},
		{"vendor", ListFilter{Vendor: "Acme"}, []string{"Acme", "Acme"}},
		{"vendor and category", ListFilter{Vendor: "Acme", Category: "Groceries"}, []string{"Acme"}},
		{"category", ListFilter{Category: "Gas"}, []string{"Shell"}},
		{"no match", ListFilter{Vendor: "Nobody"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := svc.List(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(recs) != len(tt.vendors) {
				t.Fatalf("got %d records, want %d", len(recs), len(tt.vendors))
			}
			for i, r := range recs {
				if r.String("vendor") != tt.vendors[i] {
					t.Errorf("recs[%d].vendor = %q, want %q", i, r.String("vendor"), tt.vendors[i])
				}
			}
		})
	}
}

func TestReceiptServiceVendorListIsSorted(t *testing.T) {
	st := memory.New()
	seedListReceipts(t, st)
	recs, err := NewReceiptService(st).List(context.Background(), ListFilter{Vendor: "Acme"})
	if err != nil {
		t.Fatal(err)
	}
	if recs[0].String("category") != "Shopping" {
		t.Errorf("first = %v, want newest (Shopping)", recs[0])
	}
}

func TestReceiptServiceUpdate(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	ids := seedListReceipts(t, st)
	svc := NewReceiptService(st)

	got, err := svc.Update(ctx, ids[0], core.Record{"category": "Restaurants", "id": "hijack"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.String("category") != "Restaurants" {
		t.Errorf("category = %q", got.String("category"))
	}
	if got.String("id") != ids[0] {
		t.Errorf("id changed to %q", got.String("id"))
	}
	if got.String("vendor") != "Acme" {
		t.Errorf("untouched field lost: %v", got)
	}

	if _, err := svc.Update(ctx, ids[0], core.Record{"id": "x"}); !errors.Is(err, ErrEmptyUpdate) {
		t.Errorf("id-only update error = %v, want ErrEmptyUpdate", err)
	}
	if _, err := svc.Update(ctx, "missing", core.Record{"total": 1}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown id error = %v, want ErrNotFound", err)
	}
}

func TestReceiptServiceDeleteAndStats(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	ids := seedListReceipts(t, st)
	st.Append(ctx, core.CollectionCategories, core.Record{"name": "Gas"})
	svc := NewReceiptService(st)

	if err := svc.Delete(ctx, ids[1]); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, ids[1]); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second Delete error = %v, want ErrNotFound", err)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats != (Stats{Receipts: 2, Categories: 1}) {
		t.Errorf("Stats = %+v", stats)
	}
	if err := svc.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
