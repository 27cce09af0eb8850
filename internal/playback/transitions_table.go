// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

// Transition is a single allowed edge in the playback state machine.
type Transition struct {
	From   State
	To     State
	Event  EventKind
	Reason string
}

const (
	ReasonRecoveryExhausted = "recovery_exhausted"
	ReasonIllegalTransition = "illegal_transition"
)

var transitionsTable = []Transition{
	{From: StateIdle, To: StateLibraryLoading, Event: EvMount},

	{From: StateLibraryLoading, To: StateAttaching, Event: EvBooted},
	{From: StateLibraryLoading, To: StateFailed, Event: EvBootFailed},
	{From: StateLibraryLoading, To: StateFailed, Event: EvNetworkFault},
	{From: StateLibraryLoading, To: StateFailed, Event: EvMediaFault},
	{From: StateLibraryLoading, To: StateFailed, Event: EvOtherFatalFault},

	{From: StateAttaching, To: StateLoading, Event: EvAttached},
	{From: StateAttaching, To: StateRecoveringNetwork, Event: EvNetworkFault},
	{From: StateAttaching, To: StateRecoveringMedia, Event: EvMediaFault},
	{From: StateAttaching, To: StateFailed, Event: EvOtherFatalFault},

	{From: StateLoading, To: StateReady, Event: EvReady},
	{From: StateLoading, To: StateRecoveringNetwork, Event: EvNetworkFault},
	{From: StateLoading, To: StateRecoveringMedia, Event: EvMediaFault},
	{From: StateLoading, To: StateFailed, Event: EvOtherFatalFault},

	// No nested retry loop: a repeat of the fault being recovered fails.
	{From: StateRecoveringNetwork, To: StateLoading, Event: EvRecoveryIssued},
	{From: StateRecoveringNetwork, To: StateFailed, Event: EvNetworkFault},
	{From: StateRecoveringNetwork, To: StateRecoveringMedia, Event: EvMediaFault},
	{From: StateRecoveringNetwork, To: StateFailed, Event: EvOtherFatalFault},

	{From: StateRecoveringMedia, To: StateLoading, Event: EvRecoveryIssued},
	{From: StateRecoveringMedia, To: StateFailed, Event: EvNetworkFault},
	{From: StateRecoveringMedia, To: StateFailed, Event: EvMediaFault},
	{From: StateRecoveringMedia, To: StateFailed, Event: EvOtherFatalFault},

	{From: StateReady, To: StateRecoveringNetwork, Event: EvNetworkFault},
	{From: StateReady, To: StateRecoveringMedia, Event: EvMediaFault},
	{From: StateReady, To: StateFailed, Event: EvOtherFatalFault},

	{From: StateFailed, To: StateIdle, Event: EvClearError},
}

// ignoredEvents are accepted without a state change.
var ignoredEvents = map[State]map[EventKind]struct{}{
	// A reload or media reset while already playing reports ready again.
	StateReady: {EvReady: {}},
}

// TransitionFor returns the allowed transition for a given state+event.
func TransitionFor(from State, ev EventKind) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}

// Ignored reports whether ev is a benign no-op in state from.
func Ignored(from State, ev EventKind) bool {
	_, ok := ignoredEvents[from][ev]
	return ok
}
