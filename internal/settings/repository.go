// Package settings provides access to the keyed text settings table used
// for small pieces of deployment configuration that live in the database
// rather than the config file.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Well-known setting keys.
const (
	// KeyTrustAnchor holds the certificate authority material handed to
	// readers during pairing.
	KeyTrustAnchor = "reader_trust_anchor"
)

// ErrNotSet is returned when a setting key has no value.
var ErrNotSet = errors.New("settings: not set")

// Repository defines the interface for settings operations.
type Repository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// SQLiteRepository reads and writes settings in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new settings repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Get returns the value for a key, or ErrNotSet.
func (r *SQLiteRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = ?", key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotSet
		}
		return "", fmt.Errorf("querying setting %q: %w", key, err)
	}
	return value, nil
}

// Set stores the value for a key, inserting or replacing as needed.
func (r *SQLiteRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("storing setting %q: %w", key, err)
	}
	return nil
}
