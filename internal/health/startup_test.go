// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/matchcast/internal/config"
)

func TestPerformStartupChecks(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		mutate  func(*config.AppConfig)
		wantErr string
	}{
		{name: "defaults", mutate: func(*config.AppConfig) {}},
		{
			name: "sqlite grants in writable dir",
			mutate: func(c *config.AppConfig) {
				c.Grants.Backend = "sqlite"
				c.Grants.Path = filepath.Join(dir, "grants.db")
			},
		},
		{
			name:   "badger creates its directory",
			mutate: func(c *config.AppConfig) { c.Grants.Backend = "badger"; c.Grants.Path = filepath.Join(dir, "badger") },
		},
		{
			name:    "file backend without path",
			mutate:  func(c *config.AppConfig) { c.Grants.Backend = "bolt" },
			wantErr: "requires a path",
		},
		{
			name: "grants dir missing",
			mutate: func(c *config.AppConfig) {
				c.Grants.Backend = "sqlite"
				c.Grants.Path = filepath.Join(dir, "nope", "g.db")
			},
			wantErr: "does not exist",
		},
		{
			name:    "bad listen addr",
			mutate:  func(c *config.AppConfig) { c.API.ListenAddr = "8088" },
			wantErr: "invalid API listen address",
		},
		{
			name:    "origin with path",
			mutate:  func(c *config.AppConfig) { c.API.PublicOrigin = "https://watch.example.com/app" },
			wantErr: "must not carry a path",
		},
		{
			name:    "origin scheme",
			mutate:  func(c *config.AppConfig) { c.API.PublicOrigin = "ftp://watch.example.com" },
			wantErr: "scheme must be http or https",
		},
		{
			name:    "catalog dir missing",
			mutate:  func(c *config.AppConfig) { c.Catalog.Path = filepath.Join(dir, "missing", "catalog.db") },
			wantErr: "catalog directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			tt.mutate(&cfg)
			err := PerformStartupChecks(cfg)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
