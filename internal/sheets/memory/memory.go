package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ports "receipts/internal/sheets"
)

// Store is an in-memory spreadsheet used in tests and local runs.
type Store struct {
	mu      sync.Mutex
	cats    []string
	header  []string
	rows    [][]string
	exports int
}

var (
	_ ports.ReceiptExporter = (*Store)(nil)
	_ ports.CategoryReader  = (*Store)(nil)
)

func New(cats []string) *Store {
	return &Store{cats: dedupe(cats)}
}

// NewFromFiles reads categories from base/seed_categories.txt, one per line.
func NewFromFiles(base string) *Store {
	return New(readLines(filepath.Join(base, "seed_categories.txt")))
}

// ExportRows replaces the stored sheet and returns a synthetic range reference.
func (s *Store) ExportRows(_ context.Context, header []string, rows [][]string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.header = append([]string(nil), header...)
	s.rows = make([][]string, len(rows))
	for i, r := range rows {
		s.rows[i] = append([]string(nil), r...)
	}
	s.exports++
	return fmt.Sprintf("mem:A1:%d", len(rows)+1), nil
}

func (s *Store) ListCategories(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cats...), nil
}

// Sheet returns the last exported header and rows.
func (s *Store) Sheet() ([]string, [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.header, s.rows
}

// Exports counts ExportRows calls.
func (s *Store) Exports() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exports
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// dedupe trims values and drops blanks and repeats, preserving input order.
func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
