// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ManuGH/matchcast/internal/resilience"
)

// Source produces the engine module.
type Source interface {
	Fetch(ctx context.Context) (*Module, error)
}

// BuiltinSource returns the module compiled into the binary.
type BuiltinSource struct {
	Version string
}

func (s BuiltinSource) Fetch(context.Context) (*Module, error) {
	v := s.Version
	if v == "" {
		v = "1"
	}
	return &Module{Version: v, Supported: true, Config: DefaultConfig()}, nil
}

// RemoteSource fetches <baseURL>/<version>/engine.json.
type RemoteSource struct {
	manifest string
	version  string
	client   *http.Client
	breaker  *resilience.CircuitBreaker
}

// NewRemoteSource builds a source for one versioned library endpoint. A nil
// breaker disables circuit breaking.
func NewRemoteSource(baseURL, version string, breaker *resilience.CircuitBreaker) (*RemoteSource, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("engine: invalid library url %q", baseURL)
	}
	manifest := base.JoinPath(version, "engine.json")
	return &RemoteSource{
		manifest: manifest.String(),
		version:  version,
		client:   &http.Client{Timeout: 15 * time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		breaker:  breaker,
	}, nil
}

func (s *RemoteSource) Fetch(ctx context.Context) (*Module, error) {
	var mod *Module
	fetch := func(ctx context.Context) error {
		var err error
		mod, err = s.fetch(ctx)
		return err
	}
	var err error
	if s.breaker != nil {
		err = s.breaker.ExecuteContext(ctx, fetch)
	} else {
		err = fetch(ctx)
	}
	if err != nil {
		return nil, err
	}
	return mod, nil
}

func (s *RemoteSource) fetch(ctx context.Context) (*Module, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.manifest, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch engine library: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch engine library: status %d", resp.StatusCode)
	}
	var mod Module
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&mod); err != nil {
		return nil, fmt.Errorf("decode engine library: %w", err)
	}
	if mod.Version == "" {
		mod.Version = s.version
	}
	return &mod, nil
}
