// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package grant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/ManuGH/matchcast/internal/log"
	"github.com/ManuGH/matchcast/internal/metrics"
)

// DefaultTTL is the fixed grant window.
const DefaultTTL = time.Hour

const keyPrefix = "matchcast:grant:"

// mediumSlack keeps entries in the medium past the grant window so IsValid
// alone decides the boundary, whatever the medium's expiry precision.
const mediumSlack = time.Minute

// Grants hands out per-tab Stores sharing one medium, clock and TTL.
type Grants struct {
	medium Medium
	clock  clockwork.Clock
	ttl    time.Duration
	logger zerolog.Logger
}

// Option configures Grants.
type Option func(*Grants)

// WithClock injects the clock used for issuedAt and expiry checks.
func WithClock(c clockwork.Clock) Option {
	return func(g *Grants) { g.clock = c }
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(g *Grants) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// New creates a Grants factory over medium.
func New(medium Medium, opts ...Option) *Grants {
	g := &Grants{
		medium: medium,
		clock:  clockwork.NewRealClock(),
		ttl:    DefaultTTL,
		logger: log.WithComponent("grant"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// TTL returns the grant window.
func (g *Grants) TTL() time.Duration { return g.ttl }

// For returns the store bound to tabID.
func (g *Grants) For(tabID string) *Store {
	return &Store{grants: g, tabID: tabID, key: keyPrefix + tabID}
}

// Store is the grant of a single tab.
type Store struct {
	grants *Grants
	tabID  string
	key    string
}

// Issue records a fresh grant. Issuing again re-arms the window.
func (s *Store) Issue(ctx context.Context) error {
	rec := Record{Granted: true, IssuedAt: s.grants.clock.Now().UnixMilli()}
	data, err := encodeRecord(rec)
	if err != nil {
		metrics.IncGrantOperation("issue", "error")
		return fmt.Errorf("grant: encode: %w", err)
	}
	if err := s.grants.medium.Set(ctx, s.key, data, s.grants.ttl+mediumSlack); err != nil {
		metrics.IncGrantOperation("issue", "error")
		return err
	}
	metrics.IncGrantOperation("issue", "ok")
	s.grants.logger.Debug().
		Str(log.FieldTabID, s.tabID).
		Str(log.FieldEvent, "grant.issued").
		Int64("issued_at", rec.IssuedAt).
		Msg("lobby grant issued")
	return nil
}

// IsValid reports whether the tab holds a grant issued no more than TTL ago.
// Grants that are expired, issued in the future or unreadable are deleted.
func (s *Store) IsValid(ctx context.Context) (bool, error) {
	data, err := s.grants.medium.Get(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		metrics.IncGrantOperation("check", "absent")
		return false, nil
	}
	if err != nil {
		metrics.IncGrantOperation("check", "error")
		return false, err
	}

	rec, err := decodeRecord(data)
	if err != nil {
		s.grants.logger.Warn().Err(err).Str(log.FieldTabID, s.tabID).Msg("discarding unreadable grant")
		return false, s.expire(ctx)
	}
	if !rec.Granted {
		metrics.IncGrantOperation("check", "absent")
		return false, nil
	}

	age := s.grants.clock.Now().UnixMilli() - rec.IssuedAt
	if age < 0 || age > s.grants.ttl.Milliseconds() {
		return false, s.expire(ctx)
	}
	metrics.IncGrantOperation("check", "valid")
	return true, nil
}

func (s *Store) expire(ctx context.Context) error {
	metrics.IncGrantOperation("check", "expired")
	s.grants.logger.Debug().
		Str(log.FieldTabID, s.tabID).
		Str(log.FieldEvent, "grant.expired").
		Msg("lobby grant expired")
	return s.grants.medium.Delete(ctx, s.key)
}

// Revoke deletes the grant. Revoking an absent grant is a no-op.
func (s *Store) Revoke(ctx context.Context) error {
	if err := s.grants.medium.Delete(ctx, s.key); err != nil {
		metrics.IncGrantOperation("revoke", "error")
		return err
	}
	metrics.IncGrantOperation("revoke", "ok")
	s.grants.logger.Debug().
		Str(log.FieldTabID, s.tabID).
		Str(log.FieldEvent, "grant.revoked").
		Msg("lobby grant revoked")
	return nil
}
