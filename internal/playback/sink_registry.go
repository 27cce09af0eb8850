// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import "sync"

// SinkRegistry enforces that at most one session owns a sink.
type SinkRegistry struct {
	mu     sync.Mutex
	owners map[string]*Session
}

// defaultRegistry arbitrates every session created without WithRegistry.
var defaultRegistry = NewSinkRegistry()

func NewSinkRegistry() *SinkRegistry {
	return &SinkRegistry{owners: make(map[string]*Session)}
}

// Claim makes s the owner of sinkID. A previous owner is unmounted before
// Claim returns.
func (r *SinkRegistry) Claim(sinkID string, s *Session) {
	for {
		r.mu.Lock()
		prev := r.owners[sinkID]
		if prev == nil || prev == s {
			r.owners[sinkID] = s
			r.mu.Unlock()
			return
		}
		r.mu.Unlock()

		// Unmount releases the claim; loop in case someone else won the race.
		prev.Unmount()
		r.mu.Lock()
		if r.owners[sinkID] == prev {
			delete(r.owners, sinkID)
		}
		r.mu.Unlock()
	}
}

// Release drops s's claim on sinkID if it still holds it.
func (r *SinkRegistry) Release(sinkID string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owners[sinkID] == s {
		delete(r.owners, sinkID)
	}
}

// Owner returns the current owner of sinkID, or nil.
func (r *SinkRegistry) Owner(sinkID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owners[sinkID]
}
