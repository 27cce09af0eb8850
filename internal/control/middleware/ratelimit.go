// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/httprate"

	"github.com/ManuGH/matchcast/internal/control/http/problem"
)

// RateLimitConfig is a per-client sliding window.
type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Window   time.Duration
	// KeyFunc extracts the client key. Defaults to the client IP.
	KeyFunc func(r *http.Request) (string, error)
}

type limiterState struct {
	cfg RateLimitConfig
	mw  func(http.Handler) http.Handler
}

// RateLimiter is an httprate limiter whose settings can be replaced while
// serving. Each Update starts fresh counters.
type RateLimiter struct {
	state atomic.Pointer[limiterState]
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	l := &RateLimiter{}
	l.Update(cfg)
	return l
}

// Update replaces the limiter settings.
func (l *RateLimiter) Update(cfg RateLimitConfig) {
	st := &limiterState{cfg: cfg}
	if cfg.Enabled && cfg.Requests > 0 && cfg.Window > 0 {
		keyFunc := cfg.KeyFunc
		if keyFunc == nil {
			keyFunc = httprate.KeyByIP
		}
		window := cfg.Window
		st.mw = httprate.Limit(cfg.Requests, window,
			httprate.WithKeyFuncs(keyFunc),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				problem.Write(w, r, http.StatusTooManyRequests, "system/rate_limited", "Too Many Requests",
					"RATE_LIMITED", "Too many requests. Please try again later.", nil)
			}),
		)
	}
	l.state.Store(st)
}

// Config returns the settings in effect.
func (l *RateLimiter) Config() RateLimitConfig {
	return l.state.Load().cfg
}

type wrappedHandler struct {
	state *limiterState
	h     http.Handler
}

// Handler applies whichever settings are current at request time.
func (l *RateLimiter) Handler(next http.Handler) http.Handler {
	var cache atomic.Pointer[wrappedHandler]
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := l.state.Load()
		wh := cache.Load()
		if wh == nil || wh.state != st {
			h := next
			if st.mw != nil {
				h = st.mw(next)
			}
			wh = &wrappedHandler{state: st, h: h}
			cache.Store(wh)
		}
		wh.h.ServeHTTP(w, r)
	})
}
