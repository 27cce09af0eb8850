// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package cache provides a typed in-memory cache with TTL support.
package cache

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Cache provides thread-safe caching with expiration support.
type Cache[V any] interface {
	// Get retrieves a value. Expired entries are reported as absent.
	Get(key string) (V, bool)
	// Set stores a value with the specified TTL.
	Set(key string, value V, ttl time.Duration)
	// Delete removes a value.
	Delete(key string)
	// Stats returns cache statistics.
	Stats() Stats
}

// Stats holds cache performance metrics.
type Stats struct {
	Hits        int64
	Misses      int64
	Sets        int64
	Evictions   int64
	CurrentSize int
}

type entry[V any] struct {
	value      V
	expiration time.Time
}

// MemoryCache is an in-memory implementation of Cache.
type MemoryCache[V any] struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	entries map[string]entry[V]
	stats   Stats

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewMemoryCache creates a cache. A positive cleanupInterval starts a
// janitor goroutine that removes expired entries; Stop ends it.
func NewMemoryCache[V any](clock clockwork.Clock, cleanupInterval time.Duration) *MemoryCache[V] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	c := &MemoryCache[V]{
		clock:   clock,
		entries: make(map[string]entry[V]),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.janitor(cleanupInterval)
	} else {
		close(c.done)
	}
	return c
}

func (c *MemoryCache[V]) expired(e entry[V]) bool {
	return c.clock.Now().After(e.expiration)
}

// Get retrieves a value from the cache.
func (c *MemoryCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.entries[key]
	if !found || c.expired(e) {
		c.stats.Misses++
		var zero V
		return zero, false
	}
	c.stats.Hits++
	return e.value, true
}

// Set stores a value in the cache.
func (c *MemoryCache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{value: value, expiration: c.clock.Now().Add(ttl)}
	c.stats.Sets++
}

// Swap stores value and returns the previous live value, if any, under one lock.
func (c *MemoryCache[V]) Swap(key string, value V, ttl time.Duration) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, found := c.entries[key]
	live := found && !c.expired(prev)
	c.entries[key] = entry[V]{value: value, expiration: c.clock.Now().Add(ttl)}
	c.stats.Sets++
	if !live {
		var zero V
		return zero, false
	}
	return prev.value, true
}

// Delete removes a value from the cache.
func (c *MemoryCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Stats returns cache statistics.
func (c *MemoryCache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.CurrentSize = len(c.entries)
	return stats
}

// deleteExpired removes all expired entries and returns how many it removed.
func (c *MemoryCache[V]) deleteExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, key)
			count++
		}
	}
	c.stats.Evictions += int64(count)
	return count
}

// Stop ends the janitor goroutine and waits for it. Safe to call repeatedly.
func (c *MemoryCache[V]) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}

func (c *MemoryCache[V]) janitor(interval time.Duration) {
	defer close(c.done)
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			c.deleteExpired()
		case <-c.stop:
			return
		}
	}
}
