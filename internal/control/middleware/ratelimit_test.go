// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func serve(h http.Handler, n int) []int {
	codes := make([]int, 0, n)
	for i := 0; i < n; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/watch/m1", nil)
		req.RemoteAddr = "192.0.2.10:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	return codes
}

func TestRateLimiter_LimitsPerClient(t *testing.T) {
	l := NewRateLimiter(RateLimitConfig{Enabled: true, Requests: 2, Window: time.Minute})
	codes := serve(l.Handler(okHandler()), 3)
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiter_Disabled(t *testing.T) {
	l := NewRateLimiter(RateLimitConfig{Enabled: false, Requests: 1, Window: time.Minute})
	for _, code := range serve(l.Handler(okHandler()), 5) {
		assert.Equal(t, http.StatusOK, code)
	}
}

func TestRateLimiter_UpdateAppliesToRunningHandler(t *testing.T) {
	l := NewRateLimiter(RateLimitConfig{Enabled: true, Requests: 1, Window: time.Minute})
	h := l.Handler(okHandler())
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, serve(h, 2))

	l.Update(RateLimitConfig{Enabled: true, Requests: 3, Window: time.Minute})
	assert.Equal(t, 3, l.Config().Requests)
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, serve(h, 4))

	l.Update(RateLimitConfig{})
	assert.Equal(t, []int{http.StatusOK, http.StatusOK}, serve(h, 2))
}

func TestRateLimiter_ProblemResponse(t *testing.T) {
	l := NewRateLimiter(RateLimitConfig{Enabled: true, Requests: 1, Window: 30 * time.Second})
	h := l.Handler(okHandler())
	serve(h, 1)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "192.0.2.10:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")
}
