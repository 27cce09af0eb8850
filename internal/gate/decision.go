// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package gate decides whether a tab may open the watch surface.
//
// A viewer must be signed in, have a complete profile and hold a lobby
// grant (see package grant). Arriving from the lobby re-arms the grant.
package gate

import (
	"net/url"

	"github.com/ManuGH/matchcast/internal/identity"
)

// Verdict is the outcome of a gate evaluation.
type Verdict uint8

const (
	Verifying Verdict = iota
	Denied
	Granted
)

func (v Verdict) String() string {
	switch v {
	case Denied:
		return "Denied"
	case Granted:
		return "Granted"
	default:
		return "Verifying"
	}
}

// Reason explains a Denied verdict.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonUnauthenticated   Reason = "Unauthenticated"
	ReasonIncompleteProfile Reason = "IncompleteProfile"
	ReasonNoLobbyGrant      Reason = "NoLobbyGrant"
)

// Decision is a verdict plus where the viewer should go next. Redirect is
// empty for Granted and for NoLobbyGrant, which renders a blocking
// explanation instead.
type Decision struct {
	Verdict  Verdict
	Reason   Reason
	Redirect string
}

// Decide is the pure decision step. grantValid is only meaningful when the
// snapshot has both a session and a profile.
func Decide(snap identity.Snapshot, grantValid bool) Decision {
	switch {
	case snap.Session != identity.Present:
		return Decision{Verdict: Denied, Reason: ReasonUnauthenticated}
	case snap.Profile != identity.Present:
		return Decision{Verdict: Denied, Reason: ReasonIncompleteProfile}
	case !grantValid:
		return Decision{Verdict: Denied, Reason: ReasonNoLobbyGrant}
	default:
		return Decision{Verdict: Granted}
	}
}

// ArrivedFromLobby reports whether referrer is the lobby page of origin:
// same scheme and host, and a path equal to lobbyPath.
func ArrivedFromLobby(referrer, origin, lobbyPath string) bool {
	if referrer == "" || origin == "" {
		return false
	}
	ref, err := url.Parse(referrer)
	if err != nil || ref.Scheme == "" || ref.Host == "" {
		return false
	}
	org, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if ref.Scheme != org.Scheme || ref.Host != org.Host {
		return false
	}
	return ref.Path == lobbyPath
}
