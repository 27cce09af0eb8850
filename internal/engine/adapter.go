// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ManuGH/matchcast/internal/log"
)

// Adapter boots engine instances bound to sinks.
type Adapter struct {
	library *Library
	client  *http.Client
	clock   clockwork.Clock
	logger  zerolog.Logger
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithHTTPClient sets the client used for playlist and segment requests.
func WithHTTPClient(c *http.Client) AdapterOption {
	return func(a *Adapter) { a.client = c }
}

// WithClock sets the clock used for live polling and retry delays.
func WithClock(c clockwork.Clock) AdapterOption {
	return func(a *Adapter) { a.clock = c }
}

func NewAdapter(library *Library, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		library: library,
		client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		clock:   clockwork.NewRealClock(),
		logger:  log.WithComponent("engine"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Library returns the library instances are booted from.
func (a *Adapter) Library() *Library { return a.library }

// Boot acquires the engine library and creates an instance bound to sink.
// The instance does nothing until Attach.
func (a *Adapter) Boot(ctx context.Context, sink Sink) (*Handle, error) {
	mod, err := a.library.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	h := newHandle(id, sink, mod.Config.withDefaults(), a.client, a.clock,
		a.logger.With().Str(log.FieldHandleID, id).Str(log.FieldSink, sink.ID()).Logger())
	h.logger.Debug().Str(log.FieldEvent, "engine.booted").Msg("engine instance booted")
	return h, nil
}
