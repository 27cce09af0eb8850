// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package catalog

import (
	"context"
	"sync"
)

type streamKey struct {
	matchID string
	device  string
}

// MemoryCatalog keeps streams in insertion order per (match, device).
type MemoryCatalog struct {
	mu      sync.RWMutex
	streams map[streamKey][]Stream
}

func NewMemoryCatalog(seed ...Stream) *MemoryCatalog {
	c := &MemoryCatalog{streams: make(map[streamKey][]Stream)}
	for _, s := range seed {
		_ = c.Put(context.Background(), s)
	}
	return c
}

// Put adds s, replacing a stream with the same match, device and language.
func (c *MemoryCatalog) Put(_ context.Context, s Stream) error {
	if err := s.validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	k := streamKey{s.MatchID, s.Device}
	list := c.streams[k]
	for i := range list {
		if list[i].Language == s.Language {
			list[i] = s
			return nil
		}
	}
	c.streams[k] = append(list, s)
	return nil
}

func (c *MemoryCatalog) Lookup(_ context.Context, matchID, device, lang string) (string, bool, error) {
	c.mu.RLock()
	list := c.streams[streamKey{matchID, device}]
	c.mu.RUnlock()

	s, ok := pick(list, lang)
	return s.URL, ok, nil
}
