// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import (
	"context"

	"github.com/ManuGH/matchcast/internal/engine"
)

// Engine boots engine instances.
type Engine interface {
	Boot(ctx context.Context, sink engine.Sink) (Handle, error)
}

// Handle is the part of an engine instance a session drives.
type Handle interface {
	Attach(manifestURL string) error
	OnReady(func())
	OnFault(func(engine.Fault))
	Reload() error
	ResetMedia() error
	Teardown()
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, sink engine.Sink) (Handle, error)

func (f EngineFunc) Boot(ctx context.Context, sink engine.Sink) (Handle, error) {
	return f(ctx, sink)
}

// FromAdapter exposes an engine adapter as an Engine.
func FromAdapter(a *engine.Adapter) Engine {
	return EngineFunc(func(ctx context.Context, sink engine.Sink) (Handle, error) {
		h, err := a.Boot(ctx, sink)
		if err != nil {
			return nil, err
		}
		return h, nil
	})
}
