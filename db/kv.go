package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// KVStore is a generic string key/value table, used as the preference backing
// store.
type KVStore struct {
	DB *sql.DB
}

// Get reads a key. ok is false when the key does not exist.
func (k *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := k.DB.QueryRowContext(ctx, `SELECT value FROM kv WHERE key=$1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv get %q: %w", key, err)
	}
	return value, true, nil
}

// Set upserts a key.
func (k *KVStore) Set(ctx context.Context, key, value string) error {
	_, err := k.DB.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`,
		key, value)
	if err != nil {
		return fmt.Errorf("kv set %q: %w", key, err)
	}
	return nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (k *KVStore) Delete(ctx context.Context, key string) error {
	if _, err := k.DB.ExecContext(ctx, `DELETE FROM kv WHERE key=$1`, key); err != nil {
		return fmt.Errorf("kv delete %q: %w", key, err)
	}
	return nil
}
