// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/matchcast/internal/control/http/problem"
	"github.com/ManuGH/matchcast/internal/gate"
	"github.com/ManuGH/matchcast/internal/identity"
	"github.com/ManuGH/matchcast/internal/log"
)

// WatchResponse is returned for a granted watch request.
type WatchResponse struct {
	Verdict   string `json:"verdict"`
	StreamURL string `json:"streamUrl"`
}

// LobbyResponse tells the client where to navigate after leaving a match.
type LobbyResponse struct {
	Location string `json:"location"`
}

// GET /api/v1/watch/{matchID}?device=&lang=
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.WithComponentFromContext(ctx, "api")

	matchID := strings.TrimSpace(chi.URLParam(r, "matchID"))
	device := strings.TrimSpace(r.URL.Query().Get("device"))
	lang := strings.TrimSpace(r.URL.Query().Get("lang"))
	if matchID == "" || device == "" {
		writeInvalidInput(w, r, "matchID and device are required")
		return
	}

	snap, err := s.deps.Resolver.Resolve(ctx, identity.ExtractToken(r))
	if err != nil {
		// No snapshot means no gate run: an outage must not read as a sign-out.
		logger.Warn().Err(err).Str(log.FieldEvent, "identity.resolve_failed").Msg("identity provider unavailable")
		writeUnavailable(w, r, "IDENTITY_UNAVAILABLE", "Identity could not be verified. Please try again.")
		return
	}

	d := s.deps.Gate.Evaluate(ctx, tabIDFromContext(ctx), gate.Input{
		Identity: snap,
		Referrer: r.Referer(),
	})
	if d.Verdict != gate.Granted {
		writeDenied(w, r, d)
		return
	}

	streamURL, ok, err := s.deps.Catalog.Lookup(ctx, matchID, device, lang)
	if err != nil {
		logger.Error().Err(err).Str("match_id", matchID).Msg("catalog lookup failed")
		writeInternal(w, r, "CATALOG_ERROR", "Stream lookup failed.")
		return
	}
	if !ok {
		problem.Write(w, r, http.StatusNotFound, "watch/stream_not_found", "Stream not found",
			"STREAM_NOT_FOUND", "No stream is available for this match on this device.",
			map[string]any{"matchId": matchID, "device": device})
		return
	}

	writeJSON(w, http.StatusOK, WatchResponse{Verdict: d.Verdict.String(), StreamURL: streamURL})
}

// POST /api/v1/watch/return-to-lobby
func (s *Server) handleReturnToLobby(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	location, err := s.deps.Gate.ReturnToLobby(ctx, tabIDFromContext(ctx))
	if err != nil {
		logger := log.WithComponentFromContext(ctx, "api")
		logger.Error().Err(err).Msg("revoke on return to lobby failed")
		writeInternal(w, r, "GRANT_REVOKE_FAILED", "Could not leave the match. Please try again.")
		return
	}
	writeJSON(w, http.StatusOK, LobbyResponse{Location: location})
}
