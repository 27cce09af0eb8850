// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ManuGH/matchcast/internal/resilience"
)

// ErrProvider reports an identity provider response that says nothing about the session.
var ErrProvider = errors.New("identity: provider error")

// HTTPResolver asks the identity provider's userinfo endpoint about a token.
type HTTPResolver struct {
	userinfoURL string
	client      *http.Client
	breaker     *resilience.CircuitBreaker
}

// NewHTTPResolver creates a resolver. A nil breaker disables circuit breaking.
func NewHTTPResolver(userinfoURL string, timeout time.Duration, breaker *resilience.CircuitBreaker) *HTTPResolver {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPResolver{
		userinfoURL: userinfoURL,
		client:      &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		breaker:     breaker,
	}
}

type userinfo struct {
	Profile json.RawMessage `json:"profile"`
}

// Resolve returns SignedOut for an empty token without calling the provider.
// 401/403 mean no session. 200 means a session, and a profile when the body's
// "profile" is present and not null.
func (r *HTTPResolver) Resolve(ctx context.Context, token string) (Snapshot, error) {
	if token == "" {
		return SignedOut, nil
	}
	var snap Snapshot
	call := func(ctx context.Context) error {
		var err error
		snap, err = r.fetch(ctx, token)
		return err
	}
	var err error
	if r.breaker != nil {
		err = r.breaker.ExecuteContext(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (r *HTTPResolver) fetch(ctx context.Context, token string) (Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.userinfoURL, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("identity: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("identity: userinfo request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return SignedOut, nil
	default:
		return Snapshot{}, fmt.Errorf("%w: userinfo status %d", ErrProvider, resp.StatusCode)
	}

	var info userinfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return Snapshot{}, fmt.Errorf("%w: decode userinfo: %v", ErrProvider, err)
	}
	snap := Snapshot{Session: Present, Profile: Absent}
	if len(info.Profile) > 0 && string(info.Profile) != "null" {
		snap.Profile = Present
	}
	return snap, nil
}
