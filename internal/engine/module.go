// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package engine adapts the adaptive HLS playback engine for sessions: it
// loads the engine library once per process, binds engine instances to
// sinks and reports raw engine errors through a closed fault taxonomy.
package engine

import (
	"encoding/json"
	"fmt"
	"time"
)

// Module describes a loaded engine library.
type Module struct {
	Version   string `json:"version"`
	Supported bool   `json:"supported"`
	Config    Config `json:"config"`
}

// Config tunes the engine's own segment-level resilience.
type Config struct {
	FragmentRetries    int
	FragmentRetryDelay time.Duration
	// MaxFragmentsPerSecond paces segment fetches. Zero means unpaced.
	MaxFragmentsPerSecond float64
	RequestTimeout        time.Duration
	// LiveEdgeSegments is how many segments behind the live edge playback starts.
	LiveEdgeSegments int
}

type configJSON struct {
	FragmentRetries       int     `json:"fragmentRetries"`
	FragmentRetryDelayMs  int64   `json:"fragmentRetryDelayMs"`
	MaxFragmentsPerSecond float64 `json:"maxFragmentsPerSecond"`
	RequestTimeoutMs      int64   `json:"requestTimeoutMs"`
	LiveEdgeSegments      int     `json:"liveEdgeSegments"`
}

func (c Config) MarshalJSON() ([]byte, error) {
	return json.Marshal(configJSON{
		FragmentRetries:       c.FragmentRetries,
		FragmentRetryDelayMs:  c.FragmentRetryDelay.Milliseconds(),
		MaxFragmentsPerSecond: c.MaxFragmentsPerSecond,
		RequestTimeoutMs:      c.RequestTimeout.Milliseconds(),
		LiveEdgeSegments:      c.LiveEdgeSegments,
	})
}

func (c *Config) UnmarshalJSON(data []byte) error {
	var raw configJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Config{
		FragmentRetries:       raw.FragmentRetries,
		FragmentRetryDelay:    time.Duration(raw.FragmentRetryDelayMs) * time.Millisecond,
		MaxFragmentsPerSecond: raw.MaxFragmentsPerSecond,
		RequestTimeout:        time.Duration(raw.RequestTimeoutMs) * time.Millisecond,
		LiveEdgeSegments:      raw.LiveEdgeSegments,
	}
	return nil
}

// DefaultConfig is the built-in engine tuning.
func DefaultConfig() Config {
	return Config{
		FragmentRetries:       3,
		FragmentRetryDelay:    500 * time.Millisecond,
		MaxFragmentsPerSecond: 8,
		RequestTimeout:        10 * time.Second,
		LiveEdgeSegments:      3,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FragmentRetries < 0 {
		c.FragmentRetries = 0
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.LiveEdgeSegments <= 0 {
		c.LiveEdgeSegments = d.LiveEdgeSegments
	}
	return c
}

func (m *Module) validate(wantVersion string) error {
	if m.Version == "" {
		return fmt.Errorf("engine module has no version")
	}
	if wantVersion != "" && m.Version != wantVersion {
		return fmt.Errorf("engine module version %q, want %q", m.Version, wantVersion)
	}
	if !m.Supported {
		return ErrUnsupported
	}
	return nil
}
