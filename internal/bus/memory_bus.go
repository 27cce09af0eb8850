// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bus

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/ManuGH/matchcast/internal/metrics"
)

const defaultBuffer = 64

var ErrClosed = errors.New("bus: subscription closed")

// MemoryBus is an in-memory pub/sub. Publish never blocks: when a
// subscriber's buffer is full the oldest queued message is dropped so the
// most recent state always arrives.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string]map[*memorySub]struct{}
	buffer int
}

func NewMemoryBus() *MemoryBus {
	return NewMemoryBusWithBuffer(defaultBuffer)
}

// NewMemoryBusWithBuffer sets the per-subscriber queue length.
func NewMemoryBusWithBuffer(buffer int) *MemoryBus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &MemoryBus{subs: make(map[string]map[*memorySub]struct{}), buffer: buffer}
}

func (b *MemoryBus) Publish(_ context.Context, topic string, msg Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[topic] {
		sub.deliver(msg)
	}
	return nil
}

// Subscribe registers a subscriber on topic. Cancelling ctx closes it.
func (b *MemoryBus) Subscribe(ctx context.Context, topic string) (Subscriber, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := &memorySub{
		bus:   b,
		topic: topic,
		ch:    make(chan Message, b.buffer),
		done:  make(chan struct{}),
	}

	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*memorySub]struct{})
	}
	b.subs[topic][sub] = struct{}{}
	b.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				_ = sub.Close()
			case <-sub.done:
			}
		}()
	}
	return sub, nil
}

func (b *MemoryBus) remove(sub *memorySub) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set := b.subs[sub.topic]
	delete(set, sub)
	if len(set) == 0 {
		delete(b.subs, sub.topic)
	}
}

// topicFamily keeps the drop metric bounded: "playback.<id>" counts as "playback".
func topicFamily(topic string) string {
	family, _, _ := strings.Cut(topic, ".")
	return family
}

type memorySub struct {
	bus   *MemoryBus
	topic string

	mu     sync.Mutex
	ch     chan Message
	closed bool
	once   sync.Once
	done   chan struct{}
}

func (s *memorySub) C() <-chan Message { return s.ch }

func (s *memorySub) deliver(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- msg:
			return
		default:
		}
		select {
		case <-s.ch:
			metrics.IncBusDrop(topicFamily(s.topic))
		default:
		}
	}
}

func (s *memorySub) Close() error {
	s.once.Do(func() {
		s.bus.remove(s)
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		close(s.done)
	})
	return nil
}
