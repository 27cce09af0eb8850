// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/ManuGH/matchcast/internal/bus"
	"github.com/ManuGH/matchcast/internal/engine"
	"github.com/ManuGH/matchcast/internal/log"
	"github.com/ManuGH/matchcast/internal/metrics"
)

var (
	ErrAlreadyMounted = errors.New("playback: session already mounted")
	ErrClosed         = errors.New("playback: session closed")
	ErrSinkTaken      = errors.New("playback: sink claimed by another session")
)

// Config identifies what a session plays and where.
type Config struct {
	ID          string
	ManifestURL string
	Sink        engine.Sink
}

// Option configures a Session.
type Option func(*Session)

// WithBus sets the bus status updates are published on.
func WithBus(b bus.Bus) Option {
	return func(s *Session) { s.bus = b }
}

// WithRegistry sets the registry that arbitrates sink ownership. Without it
// a session uses the process-wide registry.
func WithRegistry(r *SinkRegistry) Option {
	return func(s *Session) { s.registry = r }
}

// WithClock sets the clock used for time-to-ready and retry debounce.
func WithClock(c clockwork.Clock) Option {
	return func(s *Session) { s.clock = c }
}

type event struct {
	kind   EventKind
	gen    uint64
	handle Handle
	fault  *engine.Fault
	err    error
}

// Session is one playback run bound to a sink. All transitions are
// serialized on the session's event loop; engine callbacks only enqueue.
type Session struct {
	id          string
	manifestURL string
	sink        engine.Sink
	engine      Engine
	bus         bus.Bus
	registry    *SinkRegistry
	clock       clockwork.Clock
	logger      zerolog.Logger

	qmu     sync.Mutex
	queue   []event
	closed  bool
	notify  chan struct{}
	stop    chan struct{}
	done    chan struct{}
	workers sync.WaitGroup

	closeOnce sync.Once

	mu          sync.Mutex
	state       State
	gen         uint64
	budget      Budget
	handle      Handle
	cancelMount context.CancelFunc
	mountedAt   time.Time
	lastFault   string
	lastErr     error
}

// New creates an idle session and starts its event loop. Close stops it.
func New(cfg Config, eng Engine, opts ...Option) (*Session, error) {
	if cfg.ID == "" {
		return nil, errors.New("playback: session id is required")
	}
	if cfg.ManifestURL == "" {
		return nil, errors.New("playback: manifest url is required")
	}
	if cfg.Sink == nil {
		return nil, errors.New("playback: sink is required")
	}
	if eng == nil {
		return nil, errors.New("playback: engine is required")
	}

	s := &Session{
		id:          cfg.ID,
		manifestURL: cfg.ManifestURL,
		sink:        cfg.Sink,
		engine:      eng,
		state:       StateIdle,
		notify:      make(chan struct{}, 1),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bus == nil {
		s.bus = bus.NewMemoryBus()
	}
	if s.registry == nil {
		s.registry = defaultRegistry
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	s.logger = log.WithComponent("playback").With().
		Str(log.FieldSessionID, s.id).
		Str(log.FieldSink, s.sink.ID()).
		Logger()

	go s.run()
	return s, nil
}

func (s *Session) ID() string { return s.id }

// Clock returns the session's clock.
func (s *Session) Clock() clockwork.Clock { return s.clock }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns the current status snapshot.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

// Subscribe streams status updates until ctx ends or the subscription is closed.
func (s *Session) Subscribe(ctx context.Context) (bus.Subscriber, error) {
	return s.bus.Subscribe(ctx, Topic(s.id))
}

// Mount claims the sink, tearing down any previous owner, and starts
// loading. ctx bounds the engine boot and the mount's lifetime.
func (s *Session) Mount(ctx context.Context) error {
	if s.isClosed() {
		return ErrClosed
	}
	s.registry.Claim(s.sink.ID(), s)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return ErrAlreadyMounted
	}
	if s.registry.Owner(s.sink.ID()) != s {
		return ErrSinkTaken
	}
	mountCtx, cancel := context.WithCancel(ctx)
	s.gen++
	s.cancelMount = cancel
	s.mountedAt = s.clock.Now()
	s.budget = Budget{}
	s.lastFault, s.lastErr = "", nil
	s.apply(event{kind: EvMount, gen: s.gen}, mountCtx)
	return nil
}

// Unmount tears the engine instance down synchronously and returns the
// session to IDLE. Events from the unmounted run are ignored. Calling it
// again, or on an idle session, does nothing.
func (s *Session) Unmount() {
	s.mu.Lock()
	if s.state == StateIdle && s.handle == nil && s.cancelMount == nil {
		s.mu.Unlock()
		s.registry.Release(s.sink.ID(), s)
		return
	}
	from := s.state
	s.teardownLocked()
	s.state = StateIdle
	s.lastFault, s.lastErr = "", nil
	metrics.ObservePlaybackTransition(string(from), string(StateIdle))
	s.logger.Info().
		Str(log.FieldEvent, "playback.unmounted").
		Str(log.FieldOldState, string(from)).
		Str(log.FieldNewState, string(StateIdle)).
		Uint64(log.FieldGeneration, s.gen).
		Msg("session unmounted")
	s.publishLocked()
	s.mu.Unlock()

	s.registry.Release(s.sink.ID(), s)
}

// Close unmounts the session and stops its event loop.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.Unmount()

		s.qmu.Lock()
		s.closed = true
		pending := s.queue
		s.queue = nil
		s.qmu.Unlock()

		close(s.stop)
		<-s.done
		s.workers.Wait()
		for _, ev := range pending {
			if ev.handle != nil {
				ev.handle.Teardown()
			}
		}
	})
}

func (s *Session) isClosed() bool {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	return s.closed
}

// clearError moves a failed session back to IDLE.
func (s *Session) clearError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateFailed {
		return ErrNotRetryable
	}
	s.apply(event{kind: EvClearError, gen: s.gen}, nil)
	return nil
}

func (s *Session) enqueue(ev event) {
	s.qmu.Lock()
	if s.closed {
		s.qmu.Unlock()
		if ev.handle != nil {
			ev.handle.Teardown()
		}
		return
	}
	s.queue = append(s.queue, ev)
	s.qmu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Session) dequeue() (event, bool) {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	if len(s.queue) == 0 {
		return event{}, false
	}
	ev := s.queue[0]
	s.queue[0] = event{}
	s.queue = s.queue[1:]
	return ev, true
}

func (s *Session) run() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case <-s.notify:
		}
		for {
			ev, ok := s.dequeue()
			if !ok {
				break
			}
			s.handleEvent(ev)
		}
	}
}

func (s *Session) handleEvent(ev event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.gen != s.gen {
		metrics.IncPlaybackStaleEvent()
		if ev.handle != nil {
			ev.handle.Teardown()
		}
		s.logger.Debug().
			Str(log.FieldEvent, "playback.stale_event").
			Stringer("kind", ev.kind).
			Uint64(log.FieldGeneration, ev.gen).
			Msg("dropped event from previous generation")
		return
	}

	switch ev.kind {
	case EvBooted:
		s.handle = ev.handle
	case EvNetworkFault, EvMediaFault, EvOtherFatalFault, EvUnknown:
		if ev.fault == nil {
			break
		}
		metrics.IncPlaybackFault(ev.fault.Class.String())
		kind, fatal := EventForFault(ev.fault.Class)
		if !fatal {
			s.logger.Debug().
				Str(log.FieldEvent, "playback.nonfatal").
				Str("details", ev.fault.Raw.Details).
				Msg("engine recovered internally")
			return
		}
		ev.kind = kind
	}
	s.apply(ev, nil)
}

// apply runs one transition with its entry action. Caller holds s.mu.
func (s *Session) apply(ev event, mountCtx context.Context) {
	tr, err := Dispatch(s.state, ev.kind, s.budget)
	if errors.Is(err, ErrIgnored) {
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str(log.FieldEvent, "playback.illegal_transition").Msg("illegal transition")
		ev.err = err
	}

	from := s.state
	s.state = tr.To
	s.budget.Spend(tr.To)
	metrics.ObservePlaybackTransition(string(from), string(tr.To))

	switch tr.To {
	case StateReady:
		metrics.ObservePlaybackTimeToReady(s.clock.Since(s.mountedAt).Seconds())
	case StateFailed:
		s.lastFault, s.lastErr = failureOf(ev, tr)
	}

	logEv := s.logger.Info()
	if tr.To == StateFailed {
		logEv = s.logger.Warn().AnErr("cause", s.lastErr).Str(log.FieldFault, s.lastFault)
	}
	logEv.
		Str(log.FieldEvent, "playback.transition").
		Str(log.FieldOldState, string(from)).
		Str(log.FieldNewState, string(tr.To)).
		Stringer("trigger", ev.kind).
		Uint64(log.FieldGeneration, s.gen).
		Msg("playback state changed")

	next := s.enter(tr.To, mountCtx)
	s.publishLocked()
	if next != nil {
		s.apply(*next, nil)
	}
}

// enter runs the entry action of state and returns an event to apply
// immediately, if any.
func (s *Session) enter(state State, mountCtx context.Context) *event {
	gen := s.gen
	switch state {
	case StateLibraryLoading:
		if mountCtx == nil {
			mountCtx = context.Background()
		}
		s.workers.Add(1)
		go func() {
			defer s.workers.Done()
			s.boot(mountCtx, gen)
		}()

	case StateAttaching:
		h := s.handle
		h.OnReady(func() { s.enqueue(event{kind: EvReady, gen: gen}) })
		h.OnFault(func(f engine.Fault) { s.enqueue(event{kind: EvUnknown, gen: gen, fault: &f}) })
		if err := h.Attach(s.manifestURL); err != nil {
			return &event{kind: EvOtherFatalFault, gen: gen, err: err}
		}
		return &event{kind: EvAttached, gen: gen}

	case StateRecoveringNetwork:
		if err := s.handle.Reload(); err != nil {
			return &event{kind: EvOtherFatalFault, gen: gen, err: err}
		}
		return &event{kind: EvRecoveryIssued, gen: gen}

	case StateRecoveringMedia:
		if err := s.handle.ResetMedia(); err != nil {
			return &event{kind: EvOtherFatalFault, gen: gen, err: err}
		}
		return &event{kind: EvRecoveryIssued, gen: gen}

	case StateFailed:
		s.teardownLocked()
	}
	return nil
}

func (s *Session) boot(ctx context.Context, gen uint64) {
	h, err := s.engine.Boot(ctx, s.sink)
	if err != nil {
		s.enqueue(event{kind: EvBootFailed, gen: gen, err: err})
		return
	}
	s.enqueue(event{kind: EvBooted, gen: gen, handle: h})
}

// teardownLocked releases the engine instance and invalidates its callbacks.
func (s *Session) teardownLocked() {
	s.gen++
	if s.cancelMount != nil {
		s.cancelMount()
		s.cancelMount = nil
	}
	if s.handle != nil {
		s.handle.Teardown()
		s.handle = nil
	}
}

func (s *Session) statusLocked() Status {
	st := Status{
		SessionID:  s.id,
		State:      s.state,
		Phase:      PhaseOf(s.state),
		Generation: s.gen,
	}
	if s.state == StateFailed {
		st.Fault = s.lastFault
		if s.lastErr != nil {
			st.Error = s.lastErr.Error()
		}
		st.Retryable = true
	}
	return st
}

func (s *Session) publishLocked() {
	if err := s.bus.Publish(context.Background(), Topic(s.id), s.statusLocked()); err != nil {
		s.logger.Debug().Err(err).Msg("status publish failed")
	}
}

func failureOf(ev event, tr Transition) (string, error) {
	switch {
	case ev.fault != nil:
		return ev.fault.Class.String(), ev.fault.Raw
	case ev.kind == EvBootFailed:
		return "EngineUnavailable", ev.err
	case ev.err != nil:
		return engine.OtherFatalFault.String(), ev.err
	default:
		return engine.OtherFatalFault.String(), fmt.Errorf("%s on %s", tr.Reason, ev.kind)
	}
}
