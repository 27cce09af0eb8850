// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package identity

import (
	"net/http"
	"strings"
)

// SessionCookie carries the identity token when no Authorization header is sent.
const SessionCookie = "matchcast_session"

// ExtractToken retrieves the session token from the request.
// 1. Authorization: Bearer <token>
// 2. Cookie: matchcast_session
func ExtractToken(r *http.Request) string {
	if r == nil {
		return ""
	}
	if auth := r.Header.Get("Authorization"); len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return ""
}
