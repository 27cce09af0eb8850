// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/ManuGH/matchcast/internal/log"
)

const (
	// HeaderTabID carries the browser tab's id. Clients keep it in
	// per-tab storage so grants stay scoped to one tab.
	HeaderTabID = "X-Tab-ID"
	// TabCookie is the fallback when the header is not sent.
	TabCookie = "matchcast_tab"
)

// tabIDFrom returns the request's tab id, or "" when none or a malformed one was sent.
func tabIDFrom(r *http.Request) string {
	raw := r.Header.Get(HeaderTabID)
	if raw == "" {
		if c, err := r.Cookie(TabCookie); err == nil {
			raw = c.Value
		}
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return ""
	}
	return id.String()
}

// tabID resolves or mints the tab id, stores it in the request context and
// echoes it back as header and cookie.
func (s *Server) tabID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := tabIDFrom(r)
		if id == "" {
			id = uuid.NewString()
			_, secure := s.config()
			http.SetCookie(w, &http.Cookie{
				Name:     TabCookie,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				Secure:   secure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		w.Header().Set(HeaderTabID, id)
		next.ServeHTTP(w, r.WithContext(log.ContextWithTabID(r.Context(), id)))
	})
}

func tabIDFromContext(ctx context.Context) string {
	return log.TabIDFromContext(ctx)
}
