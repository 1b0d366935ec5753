package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"receipts/internal/core"
	"receipts/internal/store"
)

// Listing bounds for ReceiptService.List.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// ErrEmptyUpdate is returned when a partial update carries no fields.
var ErrEmptyUpdate = core.NewClientError(core.CodeEmptyInput, "update must contain at least one field")

// ListFilter selects receipts by exact vendor and/or category.
type ListFilter struct {
	Limit    int
	Vendor   string
	Category string
}

// Stats counts the stored documents.
type Stats struct {
	Receipts   int `json:"receipts"`
	Categories int `json:"categories"`
}

// ReceiptService exposes maintenance operations on stored receipts.
type ReceiptService struct {
	store store.Store
}

func NewReceiptService(st store.Store) *ReceiptService {
	return &ReceiptService{store: st}
}

// List returns receipts newest processed first. With a vendor the store is
// queried by vendor and category is applied in memory; with only a category
// the store is queried by category.
func (s *ReceiptService) List(ctx context.Context, f ListFilter) ([]core.Record, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	var (
		recs []core.Record
		err  error
	)
	switch {
	case f.Vendor != "":
		recs, err = s.store.GetByField(ctx, core.CollectionReceipts, core.FieldVendor, f.Vendor)
	case f.Category != "":
		recs, err = s.store.GetByField(ctx, core.CollectionReceipts, core.FieldCategory, f.Category)
	default:
		recs, err = s.store.GetAll(ctx, core.CollectionReceipts,
			store.OrderBy(core.FieldProcessedAt, true), store.Limit(limit))
	}
	if err != nil {
		return nil, core.NewDependencyError("store", fmt.Errorf("list receipts: %w", err))
	}

	if f.Vendor != "" && f.Category != "" {
		filtered := recs[:0]
		for _, r := range recs {
			if r.String(core.FieldCategory) == f.Category {
				filtered = append(filtered, r)
			}
		}
		recs = filtered
	}
	if f.Vendor != "" || f.Category != "" {
		sortNewestFirst(recs)
	}
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// Get returns one receipt by id.
func (s *ReceiptService) Get(ctx context.Context, id string) (core.Record, error) {
	recs, err := s.store.GetByField(ctx, core.CollectionReceipts, core.FieldID, id)
	if err != nil {
		return nil, core.NewDependencyError("store", fmt.Errorf("get receipt %s: %w", id, err))
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("receipt %s: %w", id, store.ErrNotFound)
	}
	return recs[0], nil
}

// Update shallow-merges partial into the receipt and returns the result.
// The id field cannot be changed.
func (s *ReceiptService) Update(ctx context.Context, id string, partial core.Record) (core.Record, error) {
	partial = partial.Clone()
	delete(partial, core.FieldID)
	if len(partial) == 0 {
		return nil, ErrEmptyUpdate
	}

	if err := s.store.UpdateByID(ctx, core.CollectionReceipts, id, partial); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("receipt %s: %w", id, store.ErrNotFound)
		}
		return nil, core.NewDependencyError("store", fmt.Errorf("update receipt %s: %w", id, err))
	}
	slog.InfoContext(ctx, "Receipt updated", "id", id, "fields", partial.Keys())
	return s.Get(ctx, id)
}

// Delete hard-deletes a receipt.
func (s *ReceiptService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteByID(ctx, core.CollectionReceipts, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("receipt %s: %w", id, store.ErrNotFound)
		}
		return core.NewDependencyError("store", fmt.Errorf("delete receipt %s: %w", id, err))
	}
	slog.InfoContext(ctx, "Receipt deleted", "id", id)
	return nil
}

// Stats counts receipts and categories.
func (s *ReceiptService) Stats(ctx context.Context) (Stats, error) {
	receipts, err := s.store.Count(ctx, core.CollectionReceipts)
	if err != nil {
		return Stats{}, core.NewDependencyError("store", fmt.Errorf("count receipts: %w", err))
	}
	categories, err := s.store.Count(ctx, core.CollectionCategories)
	if err != nil {
		return Stats{}, core.NewDependencyError("store", fmt.Errorf("count categories: %w", err))
	}
	return Stats{Receipts: receipts, Categories: categories}, nil
}

// Ping checks that the store answers.
func (s *ReceiptService) Ping(ctx context.Context) error {
	_, err := s.store.Count(ctx, core.CollectionReceipts)
	return err
}

func sortNewestFirst(recs []core.Record) {
	slices.SortStableFunc(recs, func(a, b core.Record) int {
		return -store.CompareValues(a[core.FieldProcessedAt], b[core.FieldProcessedAt])
	})
}
