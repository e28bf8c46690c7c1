package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"familyvault/internal/repository"
)

// LocalStoragePostgres is a PostgreSQL implementation of
// repository.ScopedStorage. Rows are keyed by (scope, key) so many
// browser sessions share one table.
type LocalStoragePostgres struct {
	db    *sql.DB
	scope string
}

// NewLocalStoragePostgres creates a new LocalStoragePostgres repository.
func NewLocalStoragePostgres(db *sql.DB) *LocalStoragePostgres {
	return &LocalStoragePostgres{db: db}
}

var (
	_ repository.ScopedStorage = (*LocalStoragePostgres)(nil)
	_ repository.LocalStorage  = (*LocalStoragePostgres)(nil)
)

// Scope returns a copy bound to the given scope.
func (r *LocalStoragePostgres) Scope(scope string) repository.LocalStorage {
	return &LocalStoragePostgres{db: r.db, scope: scope}
}

// Get fetches the value stored under key.
func (r *LocalStoragePostgres) Get(ctx context.Context, key string) (string, bool, error) {
	const q = `
		SELECT value
		FROM local_storage
		WHERE scope = $1 AND key = $2
	`
	var v string
	if err := r.db.QueryRowContext(ctx, q, r.scope, key).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

// Set upserts the value stored under key.
func (r *LocalStoragePostgres) Set(ctx context.Context, key, value string) error {
	const q = `
		INSERT INTO local_storage (scope, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (scope, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`
	if _, err := r.db.ExecContext(ctx, q, r.scope, key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Remove deletes the given keys. Missing rows are ignored.
func (r *LocalStoragePostgres) Remove(ctx context.Context, keys ...string) error {
	const q = `DELETE FROM local_storage WHERE scope = $1 AND key = $2`
	for _, key := range keys {
		if _, err := r.db.ExecContext(ctx, q, r.scope, key); err != nil {
			return fmt.Errorf("remove %s: %w", key, err)
		}
	}
	return nil
}
