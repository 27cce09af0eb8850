// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package grant

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ManuGH/matchcast/internal/cache"
)

// MemoryMedium keeps grants in process memory. Grants die with the process,
// which matches a tab that lives no longer than its page.
type MemoryMedium struct {
	entries *cache.MemoryCache[[]byte]
}

// NewMemoryMedium creates a memory medium. A nil clock uses the real clock.
func NewMemoryMedium(clock clockwork.Clock) *MemoryMedium {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryMedium{entries: cache.NewMemoryCache[[]byte](clock, time.Minute)}
}

func (m *MemoryMedium) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.entries.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryMedium) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.entries.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

func (m *MemoryMedium) Delete(_ context.Context, key string) error {
	m.entries.Delete(key)
	return nil
}

func (m *MemoryMedium) Close() error {
	m.entries.Stop()
	return nil
}
