// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldTabID     = "tab_id"
	FieldSessionID = "session_id"
	FieldHandleID  = "handle_id"
	FieldMatchID   = "match_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Gate fields
	FieldVerdict = "verdict"
	FieldReason  = "reason"

	// Playback fields
	FieldOldState   = "old_state"
	FieldNewState   = "new_state"
	FieldFault      = "fault"
	FieldGeneration = "generation"
	FieldSink       = "sink"

	// Media / engine fields
	FieldManifestURL   = "manifest_url"
	FieldEngineVersion = "engine_version"
	FieldDevice        = "device"
	FieldLanguage      = "language"
)
