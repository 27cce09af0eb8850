// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package grant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ManuGH/matchcast/internal/persistence/sqlite"
)

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS grants (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		expires_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_grants_expires_at ON grants(expires_at)`,
}

// SQLiteMedium stores grants in a WAL-mode SQLite file. Expired rows are
// invisible to Get and removed by Sweep.
type SQLiteMedium struct {
	db    *sql.DB
	clock clockwork.Clock
}

// NewSQLiteMedium opens (and migrates) the database at path.
func NewSQLiteMedium(ctx context.Context, path string, clock clockwork.Clock) (*SQLiteMedium, error) {
	if path == "" {
		return nil, errors.New("grant: sqlite medium requires a path")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	db, err := sqlite.Open(path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if err := sqlite.Migrate(ctx, db, sqliteMigrations); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteMedium{db: db, clock: clock}, nil
}

func (m *SQLiteMedium) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := m.db.QueryRowContext(ctx,
		`SELECT value FROM grants WHERE key = ? AND expires_at >= ?`,
		key, m.clock.Now().UnixMilli(),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("grant: sqlite get: %w", err)
	}
	return value, nil
}

func (m *SQLiteMedium) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	expiresAt := m.clock.Now().Add(ttl).UnixMilli()
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO grants (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("grant: sqlite set: %w", err)
	}
	return nil
}

func (m *SQLiteMedium) Delete(ctx context.Context, key string) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM grants WHERE key = ?`, key); err != nil {
		return fmt.Errorf("grant: sqlite delete: %w", err)
	}
	return nil
}

func (m *SQLiteMedium) Sweep(ctx context.Context) (int, error) {
	res, err := m.db.ExecContext(ctx, `DELETE FROM grants WHERE expires_at < ?`, m.clock.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("grant: sqlite sweep: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (m *SQLiteMedium) Close() error {
	return m.db.Close()
}
