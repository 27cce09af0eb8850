// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package identity reads the viewer's sign-in state from the identity
// provider and reports sign-out transitions per tab.
package identity

import "context"

// Presence is the two-valued state of a session or profile.
type Presence uint8

const (
	Absent Presence = iota
	Present
)

func (p Presence) String() string {
	if p == Present {
		return "present"
	}
	return "absent"
}

// Snapshot is the identity state at one point in time.
type Snapshot struct {
	Session Presence
	Profile Presence
}

// SignedOut is the snapshot of a viewer without a session.
var SignedOut = Snapshot{Session: Absent, Profile: Absent}

// Resolver turns a session token into a Snapshot.
type Resolver interface {
	Resolve(ctx context.Context, token string) (Snapshot, error)
}

// StaticResolver maps tokens to fixed snapshots. Unknown tokens resolve to SignedOut.
type StaticResolver map[string]Snapshot

func (r StaticResolver) Resolve(_ context.Context, token string) (Snapshot, error) {
	if snap, ok := r[token]; ok {
		return snap, nil
	}
	return SignedOut, nil
}
