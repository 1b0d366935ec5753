package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"receipts/internal/core"
	"receipts/internal/store"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores documents as JSON text in a single SQLite table.
type SQLiteRepository struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(ctx context.Context, dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if _, err := RunMigrations(ctx, dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Append implements store.Store.
func (r *SQLiteRepository) Append(ctx context.Context, collection string, rec core.Record) (string, error) {
	id := uuid.NewString()
	body, err := encodeBody(rec)
	if err != nil {
		return "", err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO documents (id, collection, body) VALUES (?, ?, ?)`,
		id, collection, body)
	if err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}
	return id, nil
}

// GetAll implements store.Store. Without ordering, records come back in insertion order.
func (r *SQLiteRepository) GetAll(ctx context.Context, collection string, opts ...store.QueryOption) ([]core.Record, error) {
	q := store.BuildQuery(opts...)

	query := `SELECT id, body FROM documents WHERE collection = ?`
	args := []any{collection}
	if q.OrderBy != "" {
		if err := store.ValidateField(q.OrderBy); err != nil {
			return nil, fmt.Errorf("order by: %w", err)
		}
		dir := "ASC"
		if q.Descending {
			dir = "DESC"
		}
		query += ` ORDER BY json_extract(body, ?) IS NULL, json_extract(body, ?) ` + dir + `, rowid`
		path := "$." + q.OrderBy
		args = append(args, path, path)
	} else {
		query += ` ORDER BY rowid`
	}
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	return r.query(ctx, query, args...)
}

// GetByField implements store.Store.
func (r *SQLiteRepository) GetByField(ctx context.Context, collection, field string, value any) ([]core.Record, error) {
	if field == core.FieldID {
		return r.query(ctx, `SELECT id, body FROM documents WHERE collection = ? AND id = ? ORDER BY rowid`, collection, value)
	}
	if err := store.ValidateField(field); err != nil {
		return nil, fmt.Errorf("get by field: %w", err)
	}
	return r.query(ctx,
		`SELECT id, body FROM documents WHERE collection = ? AND json_extract(body, ?) = ? ORDER BY rowid`,
		collection, "$."+field, sqlValue(value))
}

// UpdateByID implements store.Store with a read-merge-write inside one transaction.
func (r *SQLiteRepository) UpdateByID(ctx context.Context, collection, id string, partial core.Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update %s/%s: %w", collection, id, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("select document: %w", err)
	}

	var doc core.Record
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("decode document %s: %w", id, err)
	}
	for k, v := range partial {
		doc[k] = v
	}
	body, err := encodeBody(doc)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE documents SET body = ?, updated_at = ? WHERE collection = ? AND id = ?`,
		body, time.Now().UTC().Format(time.RFC3339Nano), collection, id)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return tx.Commit()
}

// DeleteByID implements store.Store.
func (r *SQLiteRepository) DeleteByID(ctx context.Context, collection, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete %s/%s: %w", collection, id, store.ErrNotFound)
	}
	return nil
}

// Count implements store.Store.
func (r *SQLiteRepository) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE collection = ?`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]core.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var out []core.Record
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		var doc core.Record
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", id, err)
		}
		if doc == nil {
			doc = core.Record{}
		}
		doc[core.FieldID] = id
		out = append(out, doc)
	}
	return out, rows.Err()
}

// encodeBody marshals rec without its id, which lives in its own column.
func encodeBody(rec core.Record) (string, error) {
	doc := rec.Clone()
	delete(doc, core.FieldID)
	b, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(b), nil
}

// sqlValue maps a lookup value onto what json_extract yields for it.
func sqlValue(v any) any {
	switch t := v.(type) {
	case bool:
		if t {
			return 1
		}
		return 0
	case int:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return v
	}
}
