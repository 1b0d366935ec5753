// Package postgres implements the document store on PostgreSQL JSONB.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"receipts/internal/core"
	"receipts/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	seq BIGSERIAL,
	id UUID PRIMARY KEY,
	collection TEXT NOT NULL,
	body JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_documents_collection_seq ON documents (collection, seq);
CREATE INDEX IF NOT EXISTS idx_documents_body ON documents USING GIN (body jsonb_path_ops);
`

type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// Store is a store.Store backed by a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

// Open connects to PostgreSQL and ensures the documents schema exists.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pc, err := pgxpool.ParseConfig(normalizeDSN(cfg.DSN))
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "receipts"

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	logger.InfoContext(ctx, "Connected to PostgreSQL document store", "max_conns", pc.MaxConns)
	return &Store{pool: pool, logger: logger}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Append implements store.Store.
func (s *Store) Append(ctx context.Context, collection string, rec core.Record) (string, error) {
	id := uuid.New()
	body, err := encodeBody(rec)
	if err != nil {
		return "", err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (id, collection, body) VALUES ($1, $2, $3)`,
		id, collection, body)
	if err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}
	return id.String(), nil
}

// GetAll implements store.Store.
func (s *Store) GetAll(ctx context.Context, collection string, opts ...store.QueryOption) ([]core.Record, error) {
	q := store.BuildQuery(opts...)

	query := `SELECT id::text, body FROM documents WHERE collection = $1`
	args := []any{collection}
	if q.OrderBy != "" {
		if err := store.ValidateField(q.OrderBy); err != nil {
			return nil, fmt.Errorf("order by: %w", err)
		}
		dir := "ASC"
		if q.Descending {
			dir = "DESC"
		}
		query += ` ORDER BY (body->($2::text)) IS NULL, body->($2::text) ` + dir + `, seq`
		args = append(args, q.OrderBy)
	} else {
		query += ` ORDER BY seq`
	}
	if q.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, q.Limit)
	}
	return s.query(ctx, query, args...)
}

// GetByField implements store.Store. Values compare as JSON, so 5 matches 5.0 but not "5".
func (s *Store) GetByField(ctx context.Context, collection, field string, value any) ([]core.Record, error) {
	if field == core.FieldID {
		id, err := uuid.Parse(fmt.Sprint(value))
		if err != nil {
			return nil, nil
		}
		return s.query(ctx, `SELECT id::text, body FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	}
	if err := store.ValidateField(field); err != nil {
		return nil, fmt.Errorf("get by field: %w", err)
	}
	want, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode lookup value: %w", err)
	}
	return s.query(ctx,
		`SELECT id::text, body FROM documents WHERE collection = $1 AND body->($2::text) = $3::jsonb ORDER BY seq`,
		collection, field, string(want))
}

// UpdateByID implements store.Store. The top-level merge is done by the jsonb || operator.
func (s *Store) UpdateByID(ctx context.Context, collection, id string, partial core.Record) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, store.ErrNotFound)
	}
	body, err := encodeBody(partial)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET body = body || $1::jsonb, updated_at = now() WHERE collection = $2 AND id = $3`,
		body, collection, uid)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s/%s: %w", collection, id, store.ErrNotFound)
	}
	return nil
}

// DeleteByID implements store.Store.
func (s *Store) DeleteByID(ctx context.Context, collection, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, store.ErrNotFound)
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, uid)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete %s/%s: %w", collection, id, store.ErrNotFound)
	}
	return nil
}

// Count implements store.Store.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents WHERE collection = $1`, collection).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// HealthCheck pings the pool within timeout.
func (s *Store) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.pool.Ping(ctx)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]core.Record, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Record, error) {
		var id string
		var raw []byte
		if err := row.Scan(&id, &raw); err != nil {
			return nil, err
		}
		var doc core.Record
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", id, err)
		}
		if doc == nil {
			doc = core.Record{}
		}
		doc[core.FieldID] = id
		return doc, nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("collect documents: %w", err)
	}
	return out, nil
}

func encodeBody(rec core.Record) (string, error) {
	doc := rec.Clone()
	delete(doc, core.FieldID)
	b, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(b), nil
}

// normalizeDSN rewrites postgresql:// to postgres:// and defaults sslmode to disable.
func normalizeDSN(dsn string) string {
	if strings.HasPrefix(dsn, "postgresql://") {
		dsn = "postgres://" + strings.TrimPrefix(dsn, "postgresql://")
	}
	if strings.HasPrefix(dsn, "postgres://") && !strings.Contains(dsn, "sslmode=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "sslmode=disable"
	}
	return dsn
}
