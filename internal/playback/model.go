// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package playback drives one watch surface's playback through the engine:
// a table-driven state machine with bounded automatic recovery, stale
// callback suppression and single ownership of the media sink.
package playback

// State is a playback session state.
type State string

const (
	StateIdle              State = "IDLE"
	StateLibraryLoading    State = "LIBRARY_LOADING"
	StateAttaching         State = "ATTACHING"
	StateLoading           State = "LOADING"
	StateRecoveringNetwork State = "RECOVERING_NETWORK"
	StateRecoveringMedia   State = "RECOVERING_MEDIA"
	StateReady             State = "READY"
	StateFailed            State = "FAILED"
)

// States lists every state in table order.
var States = []State{
	StateIdle,
	StateLibraryLoading,
	StateAttaching,
	StateLoading,
	StateRecoveringNetwork,
	StateRecoveringMedia,
	StateReady,
	StateFailed,
}

// Phase is what the viewer is shown for a state.
type Phase string

const (
	PhaseLoading  Phase = "loading"
	PhaseRetrying Phase = "retrying"
	PhaseReady    Phase = "ready"
	PhaseError    Phase = "error"
)

func PhaseOf(s State) Phase {
	switch s {
	case StateRecoveringNetwork, StateRecoveringMedia:
		return PhaseRetrying
	case StateReady:
		return PhaseReady
	case StateFailed:
		return PhaseError
	default:
		return PhaseLoading
	}
}

// Status is published on every transition.
type Status struct {
	SessionID  string `json:"sessionId"`
	State      State  `json:"state"`
	Phase      Phase  `json:"phase"`
	Fault      string `json:"fault,omitempty"`
	Error      string `json:"error,omitempty"`
	Retryable  bool   `json:"retryable"`
	Generation uint64 `json:"generation"`
}

// Topic is the bus topic a session publishes its status on.
func Topic(sessionID string) string {
	return "playback." + sessionID
}
