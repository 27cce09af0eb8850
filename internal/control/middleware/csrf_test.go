// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCSRFProtection(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		method  string
		headers map[string]string
		want    int
	}{
		{name: "get without origin", method: http.MethodGet, want: http.StatusOK},
		{name: "options without origin", method: http.MethodOptions, want: http.StatusOK},
		{name: "post without origin", method: http.MethodPost, want: http.StatusForbidden},
		{name: "post same origin", method: http.MethodPost, headers: map[string]string{"Origin": "http://example.com"}, want: http.StatusOK},
		{name: "post same origin default port", method: http.MethodPost, headers: map[string]string{"Origin": "http://EXAMPLE.com:80"}, want: http.StatusOK},
		{name: "post same origin via referer", method: http.MethodPost, headers: map[string]string{"Referer": "http://example.com/dashboard"}, want: http.StatusOK},
		{name: "post foreign origin", method: http.MethodPost, headers: map[string]string{"Origin": "https://evil.example"}, want: http.StatusForbidden},
		{name: "post allowed origin", allowed: []string{"https://lobby.example.com"}, method: http.MethodPost,
			headers: map[string]string{"Origin": "https://lobby.example.com"}, want: http.StatusOK},
		{name: "wildcard", allowed: []string{"*"}, method: http.MethodDelete,
			headers: map[string]string{"Origin": "https://anything.example"}, want: http.StatusOK},
		{name: "same origin behind unconfigured proxy", method: http.MethodPost,
			headers: map[string]string{"Origin": "http://example.com", "X-Forwarded-Host": "example.com"}, want: http.StatusForbidden},
		{name: "non http origin", method: http.MethodPost, headers: map[string]string{"Origin": "file://example.com"}, want: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/auth/signout", nil)
			req.Host = "example.com"
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			CSRFProtection(tt.allowed)(okHandler()).ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestCSRFProtection_ProblemBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	w := httptest.NewRecorder()
	CSRFProtection(nil)(okHandler()).ServeHTTP(w, req)

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["code"] != "CSRF_FORBIDDEN" {
		t.Errorf("code = %v", body["code"])
	}
}

func TestNormalizeOrigin(t *testing.T) {
	tests := map[string]string{
		"https://Example.com:443": "https://example.com",
		"http://[::1]:8080":       "http://[::1]:8080",
		"http://[::1]":            "http://[::1]",
		"https://a.example:8443/": "https://a.example:8443",
	}
	for in, want := range tests {
		got, ok := normalizeOrigin(in)
		if !ok || got != want {
			t.Errorf("normalizeOrigin(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
	for _, bad := range []string{"", "example.com", "ftp://example.com", "http://example.com:99999"} {
		if _, ok := normalizeOrigin(bad); ok {
			t.Errorf("normalizeOrigin(%q) accepted", bad)
		}
	}
}
