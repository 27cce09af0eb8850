// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ManuGH/matchcast/internal/log"
	"github.com/ManuGH/matchcast/internal/metrics"
	"github.com/ManuGH/matchcast/internal/telemetry"
)

const acquireTimeout = 30 * time.Second

// Library loads the engine module at most once per process. Concurrent
// Acquire calls share one in-flight fetch. The first success is kept for
// the life of the Library; failures are not, so a later Acquire tries again.
type Library struct {
	source  Source
	version string
	group   singleflight.Group
	logger  zerolog.Logger

	mu     sync.RWMutex
	module *Module
}

// NewLibrary creates a library over source. version is the module version
// callers expect; empty accepts any.
func NewLibrary(source Source, version string) *Library {
	return &Library{
		source:  source,
		version: version,
		logger:  log.WithComponent("engine"),
	}
}

// Acquire returns the module, fetching it if needed. Errors are *UnavailableError.
func (l *Library) Acquire(ctx context.Context) (*Module, error) {
	l.mu.RLock()
	mod := l.module
	l.mu.RUnlock()
	if mod != nil {
		metrics.IncEngineLibraryLoad("cached")
		return mod, nil
	}

	ctx, span := telemetry.Tracer("matchcast/engine").Start(ctx, "engine.acquire")
	defer span.End()

	// The fetch is shared, so one caller giving up must not fail the others.
	ch := l.group.DoChan("module", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), acquireTimeout)
		defer cancel()
		return l.load(fetchCtx)
	})

	select {
	case <-ctx.Done():
		span.RecordError(ctx.Err())
		return nil, &UnavailableError{Version: l.version, Cause: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			span.RecordError(res.Err)
			return nil, res.Err
		}
		mod := res.Val.(*Module)
		span.SetAttributes(telemetry.EngineAttributes(mod.Version, res.Shared)...)
		return mod, nil
	}
}

func (l *Library) load(ctx context.Context) (*Module, error) {
	l.mu.RLock()
	mod := l.module
	l.mu.RUnlock()
	if mod != nil {
		return mod, nil
	}

	mod, err := l.source.Fetch(ctx)
	if err == nil {
		err = mod.validate(l.version)
	}
	if err != nil {
		metrics.IncEngineLibraryLoad("failed")
		l.logger.Warn().Err(err).
			Str(log.FieldEngineVersion, l.version).
			Str(log.FieldEvent, "engine.library_failed").
			Msg("engine library unavailable")
		return nil, &UnavailableError{Version: l.version, Cause: err}
	}

	l.mu.Lock()
	l.module = mod
	l.mu.Unlock()

	metrics.IncEngineLibraryLoad("fetched")
	l.logger.Info().
		Str(log.FieldEngineVersion, mod.Version).
		Str(log.FieldEvent, "engine.library_loaded").
		Msg("engine library loaded")
	return mod, nil
}

// Loaded reports whether the module has been loaded.
func (l *Library) Loaded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.module != nil
}
