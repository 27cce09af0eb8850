// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import "net/http"

// APICSP forbids everything; API responses are never rendered as documents.
const APICSP = "default-src 'none'; frame-ancestors 'none'"

// SecurityHeaders adds the response headers every API response carries.
//
// Referrer-Policy is same-origin: navigations inside the site keep the full
// referrer the lobby check relies on, cross-origin ones carry none.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Security-Policy", APICSP)
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "same-origin")
		if r.TLS != nil {
			h.Set("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}
