package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"receipts/internal/core"
	"receipts/internal/store"
)

// Store is an in-process document store. It backs local development and tests.
type Store struct {
	mu          sync.Mutex
	collections map[string][]core.Record
	newID       func() string
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		collections: make(map[string][]core.Record),
		newID:       func() string { return uuid.NewString() },
	}
}

// NewFromFiles creates a store whose categories collection is seeded from
// base/seed_categories.txt when that file exists.
func NewFromFiles(base string) *Store {
	s := New()
	for _, name := range readLines(filepath.Join(base, "seed_categories.txt")) {
		s.collections[core.CollectionCategories] = append(s.collections[core.CollectionCategories],
			core.Record{core.FieldID: s.newID(), core.FieldName: name})
	}
	return s
}

// WithIDGenerator replaces the id source. Tests use it for stable ids.
func (s *Store) WithIDGenerator(gen func() string) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.newID = gen
	return s
}

// Append stores a copy of rec and returns its id.
func (s *Store) Append(ctx context.Context, collection string, rec core.Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.newID()
	doc := rec.Clone()
	doc[core.FieldID] = id
	s.collections[collection] = append(s.collections[collection], doc)
	return id, nil
}

// GetAll returns copies of the collection's records in insertion order unless sorted.
func (s *Store) GetAll(ctx context.Context, collection string, opts ...store.QueryOption) ([]core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := store.BuildQuery(opts...)

	s.mu.Lock()
	out := cloneAll(s.collections[collection])
	s.mu.Unlock()

	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			a, aok := out[i][q.OrderBy]
			b, bok := out[j][q.OrderBy]
			switch {
			case !aok || a == nil:
				return false
			case !bok || b == nil:
				return true
			}
			c := store.CompareValues(a, b)
			if q.Descending {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// GetByField returns records whose field equals value.
func (s *Store) GetByField(ctx context.Context, collection, field string, value any) ([]core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Record
	for _, rec := range s.collections[collection] {
		if v, ok := rec[field]; ok && store.Equal(v, value) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

// UpdateByID merges partial into the stored record. The id cannot be changed.
func (s *Store) UpdateByID(ctx context.Context, collection, id string, partial core.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.collections[collection] {
		if rec[core.FieldID] != id {
			continue
		}
		for k, v := range partial {
			if k == core.FieldID {
				continue
			}
			rec[k] = v
		}
		return nil
	}
	return fmt.Errorf("update %s/%s: %w", collection, id, store.ErrNotFound)
}

// DeleteByID removes the record with the given id.
func (s *Store) DeleteByID(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.collections[collection]
	for i, rec := range recs {
		if rec[core.FieldID] == id {
			s.collections[collection] = append(recs[:i:i], recs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("delete %s/%s: %w", collection, id, store.ErrNotFound)
}

// Count returns the number of records in collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.collections[collection]), nil
}

func (s *Store) Close() error { return nil }

func cloneAll(in []core.Record) []core.Record {
	out := make([]core.Record, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	seen := map[string]struct{}{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
