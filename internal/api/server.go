// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api exposes the watch gate over HTTP.
package api

import (
	"errors"
	"net/http"
	"net/url"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/matchcast/internal/catalog"
	"github.com/ManuGH/matchcast/internal/config"
	"github.com/ManuGH/matchcast/internal/control/middleware"
	"github.com/ManuGH/matchcast/internal/gate"
	"github.com/ManuGH/matchcast/internal/health"
	"github.com/ManuGH/matchcast/internal/identity"
	"github.com/ManuGH/matchcast/internal/log"
)

// Deps are the collaborators the server routes to.
type Deps struct {
	Gate     *gate.Gate
	Tracker  *identity.Tracker
	Resolver identity.Resolver
	Catalog  catalog.Catalog
	Health   *health.Manager
}

// Server owns the HTTP router and the hot-reloadable parts of its config.
type Server struct {
	deps    Deps
	limiter *middleware.RateLimiter
	router  chi.Router

	mu     sync.RWMutex
	cfg    config.APIConfig
	secure bool
}

// New builds the server and its routes.
func New(cfg config.APIConfig, deps Deps) (*Server, error) {
	if deps.Gate == nil || deps.Tracker == nil || deps.Resolver == nil || deps.Catalog == nil {
		return nil, errors.New("api: gate, tracker, resolver and catalog are required")
	}
	if deps.Health == nil {
		deps.Health = health.NewManager("")
	}
	s := &Server{
		deps:    deps,
		limiter: middleware.NewRateLimiter(rateLimitConfig(cfg.RateLimit)),
	}
	s.setConfig(cfg)
	s.router = s.routes()
	return s, nil
}

func rateLimitConfig(c config.RateLimitConfig) middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		Enabled:  c.Enabled,
		Requests: c.Requests,
		Window:   c.Window,
	}
}

func (s *Server) setConfig(cfg config.APIConfig) {
	secure := false
	if u, err := url.Parse(cfg.PublicOrigin); err == nil {
		secure = u.Scheme == "https"
	}
	s.mu.Lock()
	s.cfg = cfg
	s.secure = secure
	s.mu.Unlock()
}

func (s *Server) config() (config.APIConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg, s.secure
}

// ApplyConfig takes the reloadable parts of a new config. The listen address
// is fixed for the life of the server.
func (s *Server) ApplyConfig(cfg config.AppConfig) {
	old, _ := s.config()
	next := cfg.API
	next.ListenAddr = old.ListenAddr
	s.setConfig(next)
	s.limiter.Update(rateLimitConfig(next.RateLimit))

	logger := log.WithComponent("api")
	logger.Info().
		Str(log.FieldEvent, "api.config_applied").
		Bool("rate_limit_enabled", next.RateLimit.Enabled).
		Int("rate_limit_requests", next.RateLimit.Requests).
		Dur("rate_limit_window", next.RateLimit.Window).
		Msg("api configuration applied")
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	cfg, _ := s.config()
	r := middleware.NewRouter(middleware.StackConfig{
		AllowedOrigins:        []string{cfg.PublicOrigin},
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        "matchcast-api",
		EnableLogging:         true,
	})

	r.Get("/healthz", s.deps.Health.ServeHealth)
	r.Get("/readyz", s.deps.Health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.limiter.Handler)
		r.Use(s.tabID)
		r.Get("/watch/{matchID}", s.handleWatch)
		r.Post("/watch/return-to-lobby", s.handleReturnToLobby)
		r.Post("/auth/signout", s.handleSignOut)
	})
	return r
}
