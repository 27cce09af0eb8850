// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import "errors"

// ErrIgnored is returned by Dispatch for events that are accepted without a
// state change.
var ErrIgnored = errors.New("event ignored")

// Budget tracks automatic recoveries spent since the session was last mounted.
// Reaching READY does not refund it; only a mount or manual retry does.
type Budget struct {
	NetworkSpent bool
	MediaSpent   bool
}

// Spend records entry into a recovering state.
func (b *Budget) Spend(to State) {
	switch to {
	case StateRecoveringNetwork:
		b.NetworkSpent = true
	case StateRecoveringMedia:
		b.MediaSpent = true
	}
}

// Dispatch resolves the next transition from the table and the recovery
// budget. It has no side effects; callers apply the result.
func Dispatch(from State, ev EventKind, budget Budget) (Transition, error) {
	if Ignored(from, ev) {
		return Transition{From: from, To: from, Event: ev}, ErrIgnored
	}
	tr, ok := TransitionFor(from, ev)
	if !ok {
		return illegalTransition(from, ev)
	}
	switch {
	case tr.To == StateRecoveringNetwork && budget.NetworkSpent,
		tr.To == StateRecoveringMedia && budget.MediaSpent:
		tr.To = StateFailed
		tr.Reason = ReasonRecoveryExhausted
	}
	return tr, nil
}
