// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import "github.com/ManuGH/matchcast/internal/engine"

// EventKind is an input to the state machine.
type EventKind int

const (
	EvUnknown EventKind = iota
	EvMount
	EvBooted
	EvBootFailed
	EvAttached
	EvReady
	EvNetworkFault
	EvMediaFault
	EvOtherFatalFault
	EvRecoveryIssued
	EvClearError
)

// Events lists every event kind the table knows about.
var Events = []EventKind{
	EvMount,
	EvBooted,
	EvBootFailed,
	EvAttached,
	EvReady,
	EvNetworkFault,
	EvMediaFault,
	EvOtherFatalFault,
	EvRecoveryIssued,
	EvClearError,
}

func (k EventKind) String() string {
	switch k {
	case EvMount:
		return "mount"
	case EvBooted:
		return "booted"
	case EvBootFailed:
		return "boot_failed"
	case EvAttached:
		return "attached"
	case EvReady:
		return "ready"
	case EvNetworkFault:
		return "network_fault"
	case EvMediaFault:
		return "media_fault"
	case EvOtherFatalFault:
		return "other_fatal_fault"
	case EvRecoveryIssued:
		return "recovery_issued"
	case EvClearError:
		return "clear_error"
	default:
		return "unknown"
	}
}

// EventForFault maps a fatal fault class to its event. NonFatal has none.
func EventForFault(c engine.FaultClass) (EventKind, bool) {
	switch c {
	case engine.NetworkFault:
		return EvNetworkFault, true
	case engine.MediaFault:
		return EvMediaFault, true
	case engine.OtherFatalFault:
		return EvOtherFatalFault, true
	default:
		return EvUnknown, false
	}
}
