// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package identity

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ManuGH/matchcast/internal/cache"
	"github.com/ManuGH/matchcast/internal/log"
)

// SignOutListener is called synchronously once per observed sign-out of a tab.
type SignOutListener func(ctx context.Context, tabID string)

// Tracker remembers the last session presence seen per tab and reports
// present-to-absent transitions.
type Tracker struct {
	seen *cache.MemoryCache[Presence]
	ttl  time.Duration

	mu        sync.RWMutex
	listeners []SignOutListener
}

// NewTracker creates a tracker that forgets a tab after ttl without observations.
func NewTracker(clock clockwork.Clock, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Tracker{
		seen: cache.NewMemoryCache[Presence](clock, time.Minute),
		ttl:  ttl,
	}
}

// OnSignOut registers a listener.
func (t *Tracker) OnSignOut(fn SignOutListener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// Observe records snap for tabID. It reports whether this observation was a
// sign-out transition, in which case the listeners have already run.
func (t *Tracker) Observe(ctx context.Context, tabID string, snap Snapshot) bool {
	prev, known := t.seen.Swap(tabID, snap.Session, t.ttl)
	if !known || prev != Present || snap.Session != Absent {
		return false
	}
	t.fire(ctx, tabID, "session_lost")
	return true
}

// SignOut records an explicit sign-out. Listeners run unless the tab is
// already known to be signed out.
func (t *Tracker) SignOut(ctx context.Context, tabID string) bool {
	prev, known := t.seen.Swap(tabID, Absent, t.ttl)
	if known && prev == Absent {
		return false
	}
	t.fire(ctx, tabID, "explicit")
	return true
}

func (t *Tracker) fire(ctx context.Context, tabID, cause string) {
	logger := log.WithComponentFromContext(ctx, "identity")
	logger.Info().
		Str(log.FieldTabID, tabID).
		Str(log.FieldEvent, "identity.signed_out").
		Str("cause", cause).
		Msg("sign-out observed")

	t.mu.RLock()
	listeners := append([]SignOutListener(nil), t.listeners...)
	t.mu.RUnlock()
	for _, fn := range listeners {
		fn(ctx, tabID)
	}
}

// Close stops the tracker's background eviction.
func (t *Tracker) Close() {
	t.seen.Stop()
}
