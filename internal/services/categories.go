package services

import (
	"context"
	"fmt"
	"log/slog"

	"receipts/internal/core"
	"receipts/internal/sheets"
	"receipts/internal/store"
)

// CategoryService manages the categories side collection.
type CategoryService struct {
	store  store.Store
	source sheets.CategoryReader
}

// NewCategoryService wires the service. source may be nil.
func NewCategoryService(st store.Store, source sheets.CategoryReader) *CategoryService {
	return &CategoryService{store: st, source: source}
}

// List returns the category names. An empty collection is seeded first from
// source when it yields names, otherwise from core.DefaultCategories.
func (s *CategoryService) List(ctx context.Context) ([]string, error) {
	n, err := s.store.Count(ctx, core.CollectionCategories)
	if err != nil {
		return nil, core.NewDependencyError("store", fmt.Errorf("count categories: %w", err))
	}
	if n == 0 {
		if err := s.seed(ctx); err != nil {
			return nil, err
		}
	}

	recs, err := s.store.GetAll(ctx, core.CollectionCategories)
	if err != nil {
		return nil, core.NewDependencyError("store", fmt.Errorf("list categories: %w", err))
	}
	names := make([]string, 0, len(recs))
	for _, r := range recs {
		if name := r.String(core.FieldName); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

func (s *CategoryService) seed(ctx context.Context) error {
	names, origin := core.DefaultCategories, "defaults"
	if s.source != nil {
		fromSheet, err := s.source.ListCategories(ctx)
		switch {
		case err != nil:
			slog.WarnContext(ctx, "Category source unavailable, seeding defaults", "error", err)
		case len(fromSheet) > 0:
			names, origin = fromSheet, "sheet"
		}
	}

	for _, name := range names {
		if _, err := s.store.Append(ctx, core.CollectionCategories, core.Record{core.FieldName: name}); err != nil {
			return core.NewDependencyError("store", fmt.Errorf("seed category %s: %w", name, err))
		}
	}
	slog.InfoContext(ctx, "Seeded categories", "count", len(names), "origin", origin)
	return nil
}
