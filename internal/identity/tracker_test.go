// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package identity

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

var signedIn = Snapshot{Session: Present, Profile: Present}

func newCountingTracker(t *testing.T) (*Tracker, *atomic.Int32) {
	t.Helper()
	tr := NewTracker(clockwork.NewFakeClock(), time.Hour)
	t.Cleanup(tr.Close)
	var fired atomic.Int32
	tr.OnSignOut(func(context.Context, string) { fired.Add(1) })
	return tr, &fired
}

func TestTracker_FiresOncePerTransition(t *testing.T) {
	ctx := context.Background()
	tr, fired := newCountingTracker(t)

	assert.False(t, tr.Observe(ctx, "tab", signedIn))
	assert.True(t, tr.Observe(ctx, "tab", SignedOut))
	assert.False(t, tr.Observe(ctx, "tab", SignedOut), "staying signed out is not a transition")
	assert.Equal(t, int32(1), fired.Load())

	tr.Observe(ctx, "tab", signedIn)
	tr.Observe(ctx, "tab", SignedOut)
	assert.Equal(t, int32(2), fired.Load())
}

func TestTracker_FirstObservationAbsentDoesNotFire(t *testing.T) {
	tr, fired := newCountingTracker(t)
	assert.False(t, tr.Observe(context.Background(), "tab", SignedOut))
	assert.Zero(t, fired.Load())
}

func TestTracker_TabsAreIndependent(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(clockwork.NewFakeClock(), time.Hour)
	defer tr.Close()

	var got []string
	tr.OnSignOut(func(_ context.Context, tab string) { got = append(got, tab) })

	tr.Observe(ctx, "a", signedIn)
	tr.Observe(ctx, "b", signedIn)
	tr.Observe(ctx, "b", SignedOut)
	assert.Equal(t, []string{"b"}, got)
}

func TestTracker_ExplicitSignOut(t *testing.T) {
	ctx := context.Background()
	tr, fired := newCountingTracker(t)

	assert.True(t, tr.SignOut(ctx, "unknown-tab"), "explicit sign-out of an unseen tab still revokes")
	assert.False(t, tr.SignOut(ctx, "unknown-tab"))

	tr.Observe(ctx, "tab", signedIn)
	assert.True(t, tr.SignOut(ctx, "tab"))
	assert.False(t, tr.Observe(ctx, "tab", SignedOut), "the gate seeing the same sign-out must not fire again")
	assert.Equal(t, int32(2), fired.Load())
}

func TestTracker_ConcurrentObserversFireOnce(t *testing.T) {
	ctx := context.Background()
	tr, fired := newCountingTracker(t)
	tr.Observe(ctx, "tab", signedIn)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Observe(ctx, "tab", SignedOut)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), fired.Load())
}
