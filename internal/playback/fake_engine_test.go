// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ManuGH/matchcast/internal/bus"
	"github.com/ManuGH/matchcast/internal/engine"
)

// fakeHandle records calls and lets tests fire engine callbacks. It does not
// suppress callbacks after teardown; the session must.
type fakeHandle struct {
	mu        sync.Mutex
	onReady   func()
	onFault   func(engine.Fault)
	attached  []string
	reloads   int
	resets    int
	teardowns int
	attachErr error
}

func (h *fakeHandle) Attach(u string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attached = append(h.attached, u)
	return h.attachErr
}

func (h *fakeHandle) OnReady(fn func()) {
	h.mu.Lock()
	h.onReady = fn
	h.mu.Unlock()
}

func (h *fakeHandle) OnFault(fn func(engine.Fault)) {
	h.mu.Lock()
	h.onFault = fn
	h.mu.Unlock()
}

func (h *fakeHandle) Reload() error {
	h.mu.Lock()
	h.reloads++
	h.mu.Unlock()
	return nil
}

func (h *fakeHandle) ResetMedia() error {
	h.mu.Lock()
	h.resets++
	h.mu.Unlock()
	return nil
}

func (h *fakeHandle) Teardown() {
	h.mu.Lock()
	h.teardowns++
	h.mu.Unlock()
}

func (h *fakeHandle) ready() {
	h.mu.Lock()
	fn := h.onReady
	h.mu.Unlock()
	fn()
}

func (h *fakeHandle) fault(class engine.FaultClass) {
	h.mu.Lock()
	fn := h.onFault
	h.mu.Unlock()
	raw := engine.RawError{Type: engine.ErrorTypeOther, Details: "test", Fatal: class != engine.NonFatal}
	switch class {
	case engine.NetworkFault:
		raw.Type, raw.Details = engine.ErrorTypeNetwork, engine.DetailFragLoad
	case engine.MediaFault:
		raw.Type, raw.Details = engine.ErrorTypeMedia, engine.DetailBufferAppend
	}
	fn(engine.Fault{Class: class, Raw: raw})
}

func (h *fakeHandle) counts() (reloads, resets, teardowns int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reloads, h.resets, h.teardowns
}

type fakeEngine struct {
	mu      sync.Mutex
	handles []*fakeHandle
	bootErr error
	// gate, when set, blocks Boot until closed or ctx ends.
	gate chan struct{}
}

func (e *fakeEngine) Boot(ctx context.Context, _ engine.Sink) (Handle, error) {
	if e.gate != nil {
		select {
		case <-e.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.bootErr != nil {
		return nil, e.bootErr
	}
	h := &fakeHandle{}
	e.handles = append(e.handles, h)
	return h, nil
}

func (e *fakeEngine) handle(t *testing.T, i int) *fakeHandle {
	t.Helper()
	require.Eventually(t, func() bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		return len(e.handles) > i
	}, 2*time.Second, time.Millisecond)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handles[i]
}

func (e *fakeEngine) booted() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handles)
}

func newTestSession(t *testing.T, eng Engine, opts ...Option) *Session {
	t.Helper()
	s, err := New(Config{
		ID:          "s1",
		ManifestURL: "https://cdn.example.com/m1/master.m3u8",
		Sink:        engine.NewDiscardSink("video-1"),
	}, eng, opts...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func waitState(t *testing.T, s *Session, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return s.State() == want }, 2*time.Second, time.Millisecond,
		"state %s, want %s", s.State(), want)
}

// collect drains status updates until the subscription goes quiet.
func collect(sub bus.Subscriber) []State {
	var states []State
	for {
		select {
		case msg, ok := <-sub.C():
			if !ok {
				return states
			}
			states = append(states, msg.(Status).State)
		case <-time.After(50 * time.Millisecond):
			return states
		}
	}
}
