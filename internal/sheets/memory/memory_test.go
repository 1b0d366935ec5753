package memory

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestExportRowsReplacesSheet(t *testing.T) {
	s := New(nil)
	ctx := context.Background()

	if _, err := s.ExportRows(ctx, []string{"A"}, [][]string{{"1"}, {"2"}}); err != nil {
		t.Fatal(err)
	}
	ref, err := s.ExportRows(ctx, []string{"A", "B"}, [][]string{{"x", "y"}})
	if err != nil || ref != "mem:A1:2" {
		t.Fatalf("unexpected export: ref=%q err=%v", ref, err)
	}

	header, rows := s.Sheet()
	if !reflect.DeepEqual(header, []string{"A", "B"}) || !reflect.DeepEqual(rows, [][]string{{"x", "y"}}) {
		t.Fatalf("sheet = %v %v", header, rows)
	}
	if s.Exports() != 2 {
		t.Fatalf("exports = %d", s.Exports())
	}
}

func TestNewFromFilesSeedsAndDedupe(t *testing.T) {
	dir := t.TempDir()
	s := NewFromFiles(dir)
	if cats, _ := s.ListCategories(context.Background()); len(cats) != 0 {
		t.Fatalf("expected no categories when file missing, got %v", cats)
	}

	if err := os.WriteFile(filepath.Join(dir, "seed_categories.txt"), []byte("# header\nTravel\n Dining \nTravel\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cats, _ := NewFromFiles(dir).ListCategories(context.Background())
	if !reflect.DeepEqual(cats, []string{"Travel", "Dining"}) {
		t.Fatalf("unexpected cats: %v", cats)
	}
}
