// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"net/http"

	"github.com/ManuGH/matchcast/internal/control/http/problem"
	"github.com/ManuGH/matchcast/internal/gate"
)

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// denial maps a gate reason to its HTTP status and problem identity.
type denial struct {
	status int
	typ    string
	title  string
	code   string
	detail string
}

var denials = map[gate.Reason]denial{
	gate.ReasonUnauthenticated: {
		status: http.StatusUnauthorized,
		typ:    "gate/unauthenticated",
		title:  "Sign-in required",
		code:   "UNAUTHENTICATED",
		detail: "Sign in to watch this match.",
	},
	gate.ReasonIncompleteProfile: {
		status: http.StatusForbidden,
		typ:    "gate/incomplete_profile",
		title:  "Profile incomplete",
		code:   "INCOMPLETE_PROFILE",
		detail: "Finish setting up your profile to watch this match.",
	},
	gate.ReasonNoLobbyGrant: {
		status: http.StatusForbidden,
		typ:    "gate/no_lobby_grant",
		title:  "Open from the lobby",
		code:   "NO_LOBBY_GRANT",
		detail: "Matches can only be opened from the lobby.",
	},
}

func writeDenied(w http.ResponseWriter, r *http.Request, d gate.Decision) {
	den, ok := denials[d.Reason]
	if !ok {
		den = denials[gate.ReasonNoLobbyGrant]
	}
	extra := map[string]any{
		"verdict": d.Verdict.String(),
		"reason":  string(d.Reason),
	}
	if d.Redirect != "" {
		extra["redirect"] = d.Redirect
	}
	problem.Write(w, r, den.status, den.typ, den.title, den.code, den.detail, extra)
}

func writeInvalidInput(w http.ResponseWriter, r *http.Request, detail string) {
	problem.Write(w, r, http.StatusBadRequest, "request/invalid", "Invalid request", "INVALID_INPUT", detail, nil)
}

func writeUnavailable(w http.ResponseWriter, r *http.Request, code, detail string) {
	problem.Write(w, r, http.StatusServiceUnavailable, "system/unavailable", "Service Unavailable", code, detail, nil)
}

func writeInternal(w http.ResponseWriter, r *http.Request, code, detail string) {
	problem.Write(w, r, http.StatusInternalServerError, "system/internal", "Internal Server Error", code, detail, nil)
}
