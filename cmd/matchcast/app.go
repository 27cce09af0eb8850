// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/matchcast/internal/api"
	"github.com/ManuGH/matchcast/internal/catalog"
	"github.com/ManuGH/matchcast/internal/config"
	"github.com/ManuGH/matchcast/internal/gate"
	"github.com/ManuGH/matchcast/internal/grant"
	"github.com/ManuGH/matchcast/internal/health"
	"github.com/ManuGH/matchcast/internal/identity"
	mclog "github.com/ManuGH/matchcast/internal/log"
	"github.com/ManuGH/matchcast/internal/resilience"
	"github.com/ManuGH/matchcast/internal/telemetry"
)

const (
	shutdownTimeout = 15 * time.Second
	sweepInterval   = time.Minute
	probeKey        = "matchcast:probe"
)

type closer interface{ Close() error }

// run wires the service from the current config and serves until ctx ends.
func run(ctx context.Context, holder *config.ConfigHolder) error {
	cfg := holder.Get()
	logger := mclog.WithComponent("daemon")

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "matchcast",
		ServiceVersion: cfg.Version,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	var closers []closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				logger.Warn().Err(err).Msg("close failed during shutdown")
			}
		}
	}()

	medium, err := grant.OpenMedium(ctx, grant.Options{
		Backend:       cfg.Grants.Backend,
		Path:          cfg.Grants.Path,
		RedisAddr:     cfg.Grants.Redis.Addr,
		RedisPassword: cfg.Grants.Redis.Password,
		RedisDB:       cfg.Grants.Redis.DB,
	})
	if err != nil {
		return fmt.Errorf("open grant medium: %w", err)
	}
	closers = append(closers, medium)
	grants := grant.New(medium, grant.WithTTL(cfg.Gate.GrantTTL))

	cat, err := openCatalog(ctx, cfg.Catalog)
	if err != nil {
		return err
	}
	if c, ok := cat.(closer); ok {
		closers = append(closers, c)
	}

	tracker := identity.NewTracker(nil, 24*time.Hour)
	defer tracker.Close()

	identityBreaker := resilience.NewCircuitBreaker("identity", 5, 30*time.Second)
	var resolver identity.Resolver = identity.StaticResolver{}
	if cfg.Identity.UserinfoURL != "" {
		resolver = identity.NewHTTPResolver(cfg.Identity.UserinfoURL, cfg.Identity.Timeout, identityBreaker)
	} else {
		logger.Warn().Msg("no identity provider configured; every viewer is signed out")
	}

	g := gate.New(gate.Config{
		Origin:           cfg.API.PublicOrigin,
		LobbyPath:        cfg.Gate.LobbyPath,
		LoginPath:        cfg.Gate.LoginPath,
		ProfileSetupPath: cfg.Gate.ProfileSetupPath,
	}, grants, tracker)

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewPingChecker("grants", func(ctx context.Context) error {
		_, err := medium.Get(ctx, probeKey)
		if errors.Is(err, grant.ErrNotFound) {
			return nil
		}
		return err
	}))
	hm.RegisterChecker(health.NewPingChecker("catalog", func(ctx context.Context) error {
		_, _, err := cat.Lookup(ctx, "", "", "")
		return err
	}))
	hm.RegisterChecker(health.NewBreakerChecker("identity", identityBreaker))

	srv, err := api.New(cfg.API, api.Deps{
		Gate:     g,
		Tracker:  tracker,
		Resolver: resolver,
		Catalog:  cat,
		Health:   hm,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.API.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.API.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.API.ListenAddr, err)
	}
	if cfg.API.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.API.MaxConnections)
	}

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		logger.Info().
			Str(mclog.FieldEvent, "http.listen").
			Str("addr", ln.Addr().String()).
			Int("max_connections", cfg.API.MaxConnections).
			Msg("API server listening")
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		logger.Info().Msg("shutting down server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api shutdown: %w", err)
		}
		return tp.Shutdown(shutdownCtx)
	})

	if sweeper, ok := medium.(grant.Sweeper); ok {
		eg.Go(func() error {
			sweepLoop(ctx, sweeper)
			return nil
		})
	}

	eg.Go(func() error {
		watchConfig(ctx, holder, srv)
		return nil
	})

	return eg.Wait()
}

func openCatalog(ctx context.Context, cfg config.CatalogConfig) (catalog.Catalog, error) {
	if cfg.Path == "" {
		logger := mclog.WithComponent("daemon")
		logger.Warn().Msg("catalog is in memory and starts empty")
		return catalog.NewMemoryCatalog(), nil
	}
	c, err := catalog.OpenSQLite(ctx, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	return c, nil
}

// sweepLoop removes expired grants from mediums that only expire lazily.
func sweepLoop(ctx context.Context, sweeper grant.Sweeper) {
	logger := mclog.WithComponent("grant")
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sweeper.Sweep(ctx)
			if err != nil {
				logger.Warn().Err(err).Msg("grant sweep failed")
				continue
			}
			if n > 0 {
				logger.Debug().Int("removed", n).Str(mclog.FieldEvent, "grant.swept").Msg("expired grants removed")
			}
		}
	}
}

// watchConfig applies reloaded config from the file watcher and from SIGHUP.
func watchConfig(ctx context.Context, holder *config.ConfigHolder, srv *api.Server) {
	logger := mclog.WithComponent("config")

	updates := make(chan config.AppConfig, 1)
	holder.RegisterListener(updates)
	if err := holder.StartWatcher(ctx); err != nil {
		logger.Warn().Err(err).Msg("config watcher not started; SIGHUP still reloads")
	}
	defer holder.Stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := holder.Reload(ctx); err != nil {
				logger.Warn().Err(err).Msg("reload on SIGHUP failed; keeping previous configuration")
			}
		case cfg := <-updates:
			if err := mclog.SetLevel(cfg.LogLevel); err != nil {
				logger.Warn().Err(err).Str("level", cfg.LogLevel).Msg("ignoring invalid log level")
			}
			srv.ApplyConfig(cfg)
		}
	}
}
