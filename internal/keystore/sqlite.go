package keystore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/markb/authlite/internal/db"
)

// SQLiteStore is the durable Store used outside of tests, backed by the
// authlite database's secrets table.
type SQLiteStore struct {
	db *db.DB
}

func NewSQLiteStore(database *db.DB) *SQLiteStore {
	return &SQLiteStore{db: database}
}

func (s *SQLiteStore) Get(ctx context.Context, name string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM secrets WHERE name = ?", name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: read secret: %v", ErrStorageUnavailable, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, name string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO secrets (name, value) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET value = excluded.value",
		name, value)
	if err != nil {
		return fmt.Errorf("%w: write secret: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) PutIfAbsent(ctx context.Context, name string, value []byte) ([]byte, error) {
	// ON CONFLICT DO NOTHING makes the first writer win even across
	// processes; the re-read below converges everyone on that secret.
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO secrets (name, value) VALUES (?, ?) ON CONFLICT(name) DO NOTHING",
		name, value)
	if err != nil {
		return nil, fmt.Errorf("%w: write secret: %v", ErrStorageUnavailable, err)
	}

	stored, ok, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: secret missing after insert", ErrStorageUnavailable)
	}
	return stored, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM secrets WHERE name = ?", name); err != nil {
		return fmt.Errorf("%w: delete secret: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// CreatedAt reports when the secret under name was first stored. Used by
// "authlite key status"; not part of the Store interface.
func (s *SQLiteStore) CreatedAt(ctx context.Context, name string) (time.Time, bool, error) {
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT created_at FROM secrets WHERE name = ?", name).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: read secret metadata: %v", ErrStorageUnavailable, err)
	}

	ts, err := time.Parse("2006-01-02 15:04:05", createdAt)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse created_at: %w", err)
	}
	return ts, true, nil
}
