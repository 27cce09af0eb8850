// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/matchcast/internal/log"
	"github.com/ManuGH/matchcast/internal/metrics"
)

var (
	ErrNotRetryable  = errors.New("playback: retry is only possible from FAILED")
	ErrRetryInFlight = errors.New("playback: retry already in flight")
)

// DefaultRetryDebounce is the pause between clearing an error and remounting.
const DefaultRetryDebounce = 1500 * time.Millisecond

// RetryController is the manual retry affordance of a failed session.
type RetryController struct {
	session  *Session
	debounce atomic.Int64
	inFlight atomic.Bool
	logger   zerolog.Logger
}

func NewRetryController(s *Session, debounce time.Duration) *RetryController {
	r := &RetryController{
		session: s,
		logger:  log.WithComponent("playback.retry").With().Str(log.FieldSessionID, s.ID()).Logger(),
	}
	r.SetDebounce(debounce)
	return r
}

// SetDebounce changes the debounce window for subsequent retries.
func (r *RetryController) SetDebounce(d time.Duration) {
	if d < 0 {
		d = 0
	}
	r.debounce.Store(int64(d))
}

// Debounce returns the current debounce window.
func (r *RetryController) Debounce() time.Duration {
	return time.Duration(r.debounce.Load())
}

// InFlight reports whether a retry is running.
func (r *RetryController) InFlight() bool {
	return r.inFlight.Load()
}

// Retry clears the failure, waits the debounce window and mounts the session
// again. Only one retry runs at a time; concurrent calls get
// ErrRetryInFlight. Cancelling ctx during the debounce leaves the session
// IDLE; the remount itself is not bound to ctx.
func (r *RetryController) Retry(ctx context.Context) error {
	if !r.inFlight.CompareAndSwap(false, true) {
		metrics.IncPlaybackRetry("ignored")
		return ErrRetryInFlight
	}
	defer r.inFlight.Store(false)

	if err := r.session.clearError(); err != nil {
		metrics.IncPlaybackRetry("rejected")
		return err
	}
	metrics.IncPlaybackRetry("started")

	debounce := r.Debounce()
	r.logger.Info().
		Str(log.FieldEvent, "playback.retry").
		Dur("debounce", debounce).
		Msg("manual retry requested")

	if debounce > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.session.Clock().After(debounce):
		}
	}
	return r.session.Mount(context.WithoutCancel(ctx))
}
