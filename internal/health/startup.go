// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ManuGH/matchcast/internal/config"
	"github.com/ManuGH/matchcast/internal/log"
)

// PerformStartupChecks validates the environment before the server starts.
func PerformStartupChecks(cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := checkListenAddr(logger, cfg.API.ListenAddr); err != nil {
		return err
	}
	if err := checkPublicOrigin(logger, cfg.API.PublicOrigin); err != nil {
		return err
	}

	switch cfg.Grants.Backend {
	case "sqlite", "badger", "bolt":
		if cfg.Grants.Path == "" {
			return fmt.Errorf("grants backend %q requires a path", cfg.Grants.Backend)
		}
		// badger owns a directory, the others a file inside one.
		dir := filepath.Dir(cfg.Grants.Path)
		if cfg.Grants.Backend == "badger" {
			dir = cfg.Grants.Path
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("grants directory: %w", err)
			}
		}
		if err := checkWritableDir(logger, dir); err != nil {
			return fmt.Errorf("grants directory check failed: %w", err)
		}
	case "memory":
		logger.Warn().Msg("grants are kept in memory; lobby grants do not survive restarts")
	}

	if cfg.Catalog.Path != "" {
		if err := checkWritableDir(logger, filepath.Dir(cfg.Catalog.Path)); err != nil {
			return fmt.Errorf("catalog directory check failed: %w", err)
		}
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkListenAddr(logger zerolog.Logger, addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid API listen address %q: %w", addr, err)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 65535 {
		return fmt.Errorf("invalid API listen port %q in %q", port, addr)
	}
	logger.Debug().Str("addr", addr).Msg("API listen address is valid")
	return nil
}

func checkPublicOrigin(logger zerolog.Logger, origin string) error {
	u, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid public origin: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("public origin scheme must be http or https, got: %s", u.Scheme)
	}
	if u.Path != "" && u.Path != "/" {
		return fmt.Errorf("public origin must not carry a path: %s", origin)
	}
	logger.Debug().Str("origin", origin).Msg("public origin is valid")
	return nil
}

func checkWritableDir(logger zerolog.Logger, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Debug().Str("path", path).Msg("directory is writable")
	return nil
}
