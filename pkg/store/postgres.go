package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Postgres stores each document as one JSONB row:
//
//	CREATE TABLE documents (
//	    collection TEXT  NOT NULL,
//	    id         TEXT  NOT NULL,
//	    data       JSONB NOT NULL DEFAULT '{}'::jsonb,
//	    PRIMARY KEY (collection, id)
//	);
//
// Update merges top-level keys with the jsonb || operator, so keys that are
// not part of the update keep their stored value.
type Postgres struct {
	db    *sql.DB
	table string // already quoted
}

// NewPostgres wraps an open database handle. table is quoted with
// pq.QuoteIdentifier before it is used in any statement.
func NewPostgres(db *sql.DB, table string) *Postgres {
	return &Postgres{db: db, table: pq.QuoteIdentifier(table)}
}

// OpenPostgres opens a connection pool using the DSN from the environment,
// pings it, and creates the documents table if it is missing.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	dsn := cfg.DSN()
	if dsn == "" {
		return nil, fmt.Errorf("store: postgres: environment variable %q is empty", cfg.DSNEnv)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: postgres open: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
		db.SetMaxIdleConns(cfg.MaxConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("store: postgres ping: %w", err)
	}

	p := NewPostgres(db, cfg.Table)
	if err := p.EnsureSchema(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return p, nil
}

// EnsureSchema creates the documents table if it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+p.table+` (
		collection TEXT  NOT NULL,
		id         TEXT  NOT NULL,
		data       JSONB NOT NULL DEFAULT '{}'::jsonb,
		PRIMARY KEY (collection, id)
	)`)
	if err != nil {
		return fmt.Errorf("store: postgres create table: %w", err)
	}
	return nil
}

// List returns every document in collection ordered by ID.
func (p *Postgres) List(ctx context.Context, collection string) ([]Document, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, data FROM `+p.table+` WHERE collection = $1 ORDER BY id`, collection)
	if err != nil {
		return nil, fmt.Errorf("store: postgres list %q: %w", collection, err)
	}
	defer rows.Close()

	out := make([]Document, 0)
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("store: postgres list %q: scan: %w", collection, err)
		}
		fields, err := decodeJSONB(raw)
		if err != nil {
			return nil, fmt.Errorf("store: postgres list %q: document %q: %w", collection, id, err)
		}
		out = append(out, Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: postgres list %q: %w", collection, err)
	}
	return out, nil
}

// Get returns one document or ErrNotFound.
func (p *Postgres) Get(ctx context.Context, collection, id string) (Document, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT data FROM `+p.table+` WHERE collection = $1 AND id = $2`, collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("store: postgres get %q/%q: %w", collection, id, err)
	}
	fields, err := decodeJSONB(raw)
	if err != nil {
		return Document{}, fmt.Errorf("store: postgres get %q/%q: %w", collection, id, err)
	}
	return Document{ID: id, Fields: fields}, nil
}

// Update merges fields into the stored JSONB object.
func (p *Postgres) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("store: postgres update %q/%q: encode: %w", collection, id, err)
	}
	res, err := p.db.ExecContext(ctx,
		`UPDATE `+p.table+` SET data = data || $3::jsonb WHERE collection = $1 AND id = $2`,
		collection, id, string(patch))
	if err != nil {
		return fmt.Errorf("store: postgres update %q/%q: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: postgres update %q/%q: rows affected: %w", collection, id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Put inserts the document unless a row with the same key already exists.
func (p *Postgres) Put(ctx context.Context, collection, id string, fields map[string]any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("store: postgres put %q/%q: encode: %w", collection, id, err)
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO `+p.table+` (collection, id, data) VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (collection, id) DO NOTHING`,
		collection, id, string(data))
	if err != nil {
		return fmt.Errorf("store: postgres put %q/%q: %w", collection, id, err)
	}
	return nil
}

// Close closes the connection pool.
func (p *Postgres) Close() error { return p.db.Close() }

func decodeJSONB(raw []byte) (map[string]any, error) {
	fields := make(map[string]any)
	if len(raw) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode jsonb: %w", err)
	}
	return fields, nil
}
