// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence.
type Loader struct {
	configPath string
	version    string
	// ConsumedEnvKeys records every environment key the last Load read.
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Load resolves defaults, the YAML file and the environment, then validates.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()
	cfg.Version = l.version
	cfg.ConfigPath = l.configPath

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// loadFile decodes one strict YAML document on top of cfg. Keys absent from
// the file keep their current value.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return ErrMultipleDocuments
	}
	return nil
}

func (l *Loader) env(key string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return key
}

// mergeEnv applies MATCHCAST_* overrides (highest priority).
func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.LogLevel = ParseString(l.env("MATCHCAST_LOG_LEVEL"), cfg.LogLevel)

	cfg.API.ListenAddr = ParseString(l.env("MATCHCAST_LISTEN"), cfg.API.ListenAddr)
	cfg.API.PublicOrigin = ParseString(l.env("MATCHCAST_PUBLIC_ORIGIN"), cfg.API.PublicOrigin)
	cfg.API.MaxConnections = ParseInt(l.env("MATCHCAST_MAX_CONNECTIONS"), cfg.API.MaxConnections)
	cfg.API.RateLimit.Enabled = ParseBool(l.env("MATCHCAST_RATELIMIT_ENABLED"), cfg.API.RateLimit.Enabled)
	cfg.API.RateLimit.Requests = ParseInt(l.env("MATCHCAST_RATELIMIT_REQUESTS"), cfg.API.RateLimit.Requests)
	cfg.API.RateLimit.Window = ParseDuration(l.env("MATCHCAST_RATELIMIT_WINDOW"), cfg.API.RateLimit.Window)

	cfg.Gate.LobbyPath = ParseString(l.env("MATCHCAST_LOBBY_PATH"), cfg.Gate.LobbyPath)
	cfg.Gate.GrantTTL = ParseDuration(l.env("MATCHCAST_GRANT_TTL"), cfg.Gate.GrantTTL)

	cfg.Grants.Backend = strings.ToLower(ParseString(l.env("MATCHCAST_GRANTS_BACKEND"), cfg.Grants.Backend))
	cfg.Grants.Path = ParseString(l.env("MATCHCAST_GRANTS_PATH"), cfg.Grants.Path)
	cfg.Grants.Redis.Addr = ParseString(l.env("MATCHCAST_REDIS_ADDR"), cfg.Grants.Redis.Addr)
	cfg.Grants.Redis.Password = ParseString(l.env("MATCHCAST_REDIS_PASSWORD"), cfg.Grants.Redis.Password)
	cfg.Grants.Redis.DB = ParseInt(l.env("MATCHCAST_REDIS_DB"), cfg.Grants.Redis.DB)

	cfg.Identity.UserinfoURL = ParseString(l.env("MATCHCAST_IDENTITY_URL"), cfg.Identity.UserinfoURL)
	cfg.Catalog.Path = ParseString(l.env("MATCHCAST_CATALOG_PATH"), cfg.Catalog.Path)

	cfg.Engine.LibraryURL = ParseString(l.env("MATCHCAST_ENGINE_URL"), cfg.Engine.LibraryURL)
	cfg.Engine.Version = ParseString(l.env("MATCHCAST_ENGINE_VERSION"), cfg.Engine.Version)

	cfg.Playback.RetryDebounce = ParseDuration(l.env("MATCHCAST_RETRY_DEBOUNCE"), cfg.Playback.RetryDebounce)

	cfg.Telemetry.Enabled = ParseBool(l.env("MATCHCAST_OTEL_ENABLED"), cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = ParseString(l.env("MATCHCAST_OTEL_EXPORTER"), cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = ParseString(l.env("MATCHCAST_OTEL_ENDPOINT"), cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = ParseFloat(l.env("MATCHCAST_OTEL_SAMPLING_RATE"), cfg.Telemetry.SamplingRate)
}
