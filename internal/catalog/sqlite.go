// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ManuGH/matchcast/internal/persistence/sqlite"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS match_streams (
		match_id TEXT NOT NULL,
		device   TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT '',
		url      TEXT NOT NULL,
		PRIMARY KEY (match_id, device, language)
	)`,
}

// SQLiteCatalog reads streams from the match_streams table.
type SQLiteCatalog struct {
	db *sql.DB
}

// OpenSQLite opens and migrates the catalog database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteCatalog, error) {
	db, err := sqlite.Open(path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if err := sqlite.Migrate(ctx, db, migrations); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteCatalog{db: db}, nil
}

func (c *SQLiteCatalog) Put(ctx context.Context, s Stream) error {
	if err := s.validate(); err != nil {
		return err
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO match_streams (match_id, device, language, url) VALUES (?, ?, ?, ?)
		 ON CONFLICT(match_id, device, language) DO UPDATE SET url = excluded.url`,
		s.MatchID, s.Device, s.Language, s.URL)
	if err != nil {
		return fmt.Errorf("catalog: put: %w", err)
	}
	return nil
}

func (c *SQLiteCatalog) Lookup(ctx context.Context, matchID, device, lang string) (string, bool, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT language, url FROM match_streams WHERE match_id = ? AND device = ? ORDER BY rowid`,
		matchID, device)
	if err != nil {
		return "", false, fmt.Errorf("catalog: lookup: %w", err)
	}
	defer rows.Close()

	var streams []Stream
	for rows.Next() {
		s := Stream{MatchID: matchID, Device: device}
		if err := rows.Scan(&s.Language, &s.URL); err != nil {
			return "", false, fmt.Errorf("catalog: scan: %w", err)
		}
		streams = append(streams, s)
	}
	if err := rows.Err(); err != nil {
		return "", false, fmt.Errorf("catalog: lookup: %w", err)
	}

	s, ok := pick(streams, lang)
	return s.URL, ok, nil
}

func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}
