package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/firechat/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.KeyValueStore = (*KVRepo)(nil)

// KVRepo is the SQLite implementation of the KeyValueStore port interface.
type KVRepo struct {
	db *DB
}

// NewKVRepo creates a new KVRepo backed by the given DB.
func NewKVRepo(db *DB) *KVRepo {
	return &KVRepo{db: db}
}

// Get returns the value stored under key. ok is false when the key is absent.
func (r *KVRepo) Get(ctx context.Context, key string) (string, bool, error) {
	const query = `SELECT value FROM kv WHERE key = ?`

	var value string
	err := r.db.Reader.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores or replaces the value for key.
func (r *KVRepo) Set(ctx context.Context, key, value string) error {
	const query = `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`

	if _, err := r.db.Writer.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Remove deletes key.
func (r *KVRepo) Remove(ctx context.Context, key string) error {
	const query = `DELETE FROM kv WHERE key = ?`

	if _, err := r.db.Writer.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}
