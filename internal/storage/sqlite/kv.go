// Package sqlite stores snapshots in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-faster/errors"
	_ "modernc.org/sqlite"

	"github.com/xenking/storefront/internal/storage"
)

const (
	schemaSQL = `CREATE TABLE IF NOT EXISTS snapshots (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`

	getSQL    = `SELECT value FROM snapshots WHERE key = ?`
	putSQL    = `INSERT INTO snapshots (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	deleteSQL = `DELETE FROM snapshots WHERE key = ?`
)

var _ storage.KV = (*KV)(nil)

// KV is a storage.KV backed by a single SQLite table.
type KV struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. Use ":memory:" for
// a throwaway database.
func Open(ctx context.Context, path string) (*KV, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite %s", path)
	}
	// SQLite serializes writers; one connection keeps ":memory:" shared too.
	db.SetMaxOpenConns(1)

	kv, err := New(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return kv, nil
}

// New wraps an open database and creates the table.
func New(ctx context.Context, db *sql.DB) (*KV, error) {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return nil, errors.Wrap(err, "migrate")
	}
	return &KV{db: db}, nil
}

func (s *KV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	if err := s.db.QueryRowContext(ctx, getSQL, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("getting snapshot %q: %w", key, err)
	}
	return value, nil
}

func (s *KV) Put(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, putSQL, key, value); err != nil {
		return fmt.Errorf("putting snapshot %q: %w", key, err)
	}
	return nil
}

func (s *KV) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, deleteSQL, key); err != nil {
		return fmt.Errorf("deleting snapshot %q: %w", key, err)
	}
	return nil
}

func (s *KV) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *KV) Close() error {
	return s.db.Close()
}
