package services

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"receipts/internal/core"
	sheetsmem "receipts/internal/sheets/memory"
	"receipts/internal/store/memory"
)

type brokenCategorySource struct{}

func (brokenCategorySource) ListCategories(context.Context) ([]string, error) {
	return nil, errors.New("quota exceeded")
}

func TestCategoryServiceSeedsOnce(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := NewCategoryService(st, nil)

	for i := 0; i < 2; i++ {
		names, err := svc.List(ctx)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if !reflect.DeepEqual(names, core.DefaultCategories) {
			t.Fatalf("names = %v", names)
		}
	}
	if n, _ := st.Count(ctx, core.CollectionCategories); n != len(core.DefaultCategories) {
		t.Fatalf("count = %d, want %d", n, len(core.DefaultCategories))
	}
}

func TestCategoryServiceKeepsExisting(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	st.Append(ctx, core.CollectionCategories, core.Record{"name": "Travel"})

	names, err := NewCategoryService(st, nil).List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names, []string{"Travel"}) {
		t.Fatalf("names = %v", names)
	}
}

func TestCategoryServiceSeedsFromSource(t *testing.T) {
	tests := []struct {
		name string
		svc  func(*memory.Store) *CategoryService
		want []string
	}{
		{"sheet names", func(st *memory.Store) *CategoryService {
			return NewCategoryService(st, sheetsmem.New([]string{"Travel", "Pets"}))
		}, []string{"Travel", "Pets"}},
		{"empty sheet falls back", func(st *memory.Store) *CategoryService {
			return NewCategoryService(st, sheetsmem.New(nil))
		}, core.DefaultCategories},
		{"failing sheet falls back", func(st *memory.Store) *CategoryService {
			return NewCategoryService(st, brokenCategorySource{})
		}, core.DefaultCategories},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names, err := tt.svc(memory.New()).List(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(names, tt.want) {
				t.Fatalf("names = %v, want %v", names, tt.want)
			}
		})
	}
}
