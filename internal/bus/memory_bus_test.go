// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bus

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/matchcast/internal/metrics"
)

func getCounterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, counter.Write(metric))
	return metric.GetCounter().GetValue()
}

func TestMemoryBus_DeliversToTopicOnly(t *testing.T) {
	b := NewMemoryBus()
	ctx := context.Background()

	a, err := b.Subscribe(ctx, "playback.a")
	require.NoError(t, err)
	defer a.Close()
	other, err := b.Subscribe(ctx, "playback.b")
	require.NoError(t, err)
	defer other.Close()

	require.NoError(t, b.Publish(ctx, "playback.a", "ready"))

	select {
	case msg := <-a.C():
		assert.Equal(t, "ready", msg)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
	select {
	case msg := <-other.C():
		t.Fatalf("unexpected delivery to other topic: %v", msg)
	default:
	}
}

func TestMemoryBus_DropsOldestOnBackpressure(t *testing.T) {
	b := NewMemoryBusWithBuffer(2)
	sub, err := b.Subscribe(context.Background(), "playback.x")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	initial := getCounterValue(t, metrics.BusDropsTotal.WithLabelValues("playback"))
	for i := 1; i <= 5; i++ {
		_ = b.Publish(context.Background(), "playback.x", i)
	}

	assert.Equal(t, 4, <-sub.C())
	assert.Equal(t, 5, <-sub.C())
	final := getCounterValue(t, metrics.BusDropsTotal.WithLabelValues("playback"))
	assert.Equal(t, 3.0, final-initial)
}

func TestMemoryBus_CloseStopsDelivery(t *testing.T) {
	b := NewMemoryBus()
	sub, err := b.Subscribe(context.Background(), "t")
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	require.NoError(t, b.Publish(context.Background(), "t", "late"))

	_, open := <-sub.C()
	assert.False(t, open)
}

func TestMemoryBus_ContextCancelCloses(t *testing.T) {
	b := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := b.Subscribe(ctx, "t")
	require.NoError(t, err)

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, open := <-sub.C():
			return !open
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}
