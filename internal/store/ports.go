// Package store defines the document store contract used by ingestion and reporting.
//
// Backends live in subpackages (memory) and in internal/storage (sqlite, postgres).
package store

import (
	"context"
	"errors"
	"strings"

	"receipts/internal/core"
)

// ErrNotFound is returned by UpdateByID and DeleteByID for an unknown id.
var ErrNotFound = core.ErrNotFound

// Store persists receipt documents grouped into named collections.
//
// Implementations assign ids on Append and inject them under the "id" field of
// every record they return. Writes are serialized by the backend; callers hold no locks.
type Store interface {
	// Append inserts rec into collection and returns the assigned id.
	Append(ctx context.Context, collection string, rec core.Record) (string, error)

	// GetAll returns every record of collection, shaped by opts.
	GetAll(ctx context.Context, collection string, opts ...QueryOption) ([]core.Record, error)

	// GetByField returns the records whose field equals value.
	GetByField(ctx context.Context, collection, field string, value any) ([]core.Record, error)

	// UpdateByID shallow-merges partial into the record with the given id.
	UpdateByID(ctx context.Context, collection, id string, partial core.Record) error

	// DeleteByID removes the record with the given id.
	DeleteByID(ctx context.Context, collection, id string) error

	// Count returns the number of records in collection.
	Count(ctx context.Context, collection string) (int, error)

	Close() error
}

// Query holds the resolved GetAll options.
type Query struct {
	OrderBy    string
	Descending bool
	Limit      int
}

// QueryOption configures a GetAll call.
type QueryOption func(*Query)

// OrderBy sorts by field. Records lacking the field sort last.
func OrderBy(field string, desc bool) QueryOption {
	return func(q *Query) {
		q.OrderBy = field
		q.Descending = desc
	}
}

// Limit caps the number of returned records. Zero or negative means no limit.
func Limit(n int) QueryOption {
	return func(q *Query) {
		q.Limit = n
	}
}

// BuildQuery applies opts to an empty Query.
func BuildQuery(opts ...QueryOption) Query {
	var q Query
	for _, opt := range opts {
		if opt != nil {
			opt(&q)
		}
	}
	return q
}

// ValidateField rejects field names that cannot be used as JSON paths.
func ValidateField(field string) error {
	if field == "" {
		return errors.New("field name is empty")
	}
	for _, r := range field {
		if !(r == '_' || r == '-' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return errors.New("field name contains invalid characters: " + field)
		}
	}
	return nil
}

// CompareValues orders two document values. Numbers compare numerically,
// everything else by its text form. It returns -1, 0 or 1.
func CompareValues(a, b any) int {
	an, aok := core.Amount(a)
	bn, bok := core.Amount(b)
	if _, isStr := a.(string); isStr {
		aok = false
	}
	if _, isStr := b.(string); isStr {
		bok = false
	}
	if aok && bok {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(textOf(a), textOf(b))
}

// Equal reports whether a stored value matches a lookup value.
func Equal(stored, want any) bool {
	if stored == nil || want == nil {
		return stored == nil && want == nil
	}
	return CompareValues(stored, want) == 0 && sameKind(stored, want)
}

func sameKind(a, b any) bool {
	_, as := a.(string)
	_, bs := b.(string)
	return as == bs
}

func textOf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		if n, ok := core.Amount(v); ok {
			return core.FormatAmount(n)
		}
		return ""
	}
}
