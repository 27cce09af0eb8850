// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/renameio/v2"
)

// Segment is one media segment handed to a sink.
type Segment struct {
	Sequence int64
	URI      string
	Duration time.Duration
	Data     []byte
}

// Sink is the media element an engine instance renders into. A sink is owned
// by at most one live engine instance at a time.
type Sink interface {
	ID() string
	Append(seg Segment) error
	// Play starts rendering. It may be rejected, e.g. by autoplay policy.
	Play() error
	// Flush drops buffered media.
	Flush() error
	Close() error
}

// ErrPlayRejected is returned by sinks that refuse to start playback.
var ErrPlayRejected = errors.New("sink: play rejected")

// ErrSinkClosed is returned by operations on a closed sink.
var ErrSinkClosed = errors.New("sink: closed")

// DiscardSink counts what it is given and keeps nothing.
type DiscardSink struct {
	id         string
	rejectPlay bool

	appended atomic.Int64
	bytes    atomic.Int64
	plays    atomic.Int64
	flushes  atomic.Int64
	closed   atomic.Bool
}

// DiscardOption configures a DiscardSink.
type DiscardOption func(*DiscardSink)

// WithRejectPlay makes every Play call fail with ErrPlayRejected.
func WithRejectPlay() DiscardOption {
	return func(s *DiscardSink) { s.rejectPlay = true }
}

func NewDiscardSink(id string, opts ...DiscardOption) *DiscardSink {
	s := &DiscardSink{id: id}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *DiscardSink) ID() string { return s.id }

func (s *DiscardSink) Append(seg Segment) error {
	if s.closed.Load() {
		return ErrSinkClosed
	}
	s.appended.Add(1)
	s.bytes.Add(int64(len(seg.Data)))
	return nil
}

func (s *DiscardSink) Play() error {
	s.plays.Add(1)
	if s.rejectPlay {
		return ErrPlayRejected
	}
	return nil
}

func (s *DiscardSink) Flush() error {
	if s.closed.Load() {
		return ErrSinkClosed
	}
	s.flushes.Add(1)
	return nil
}

func (s *DiscardSink) Close() error {
	s.closed.Store(true)
	return nil
}

// Appended is the number of segments accepted.
func (s *DiscardSink) Appended() int64 { return s.appended.Load() }

// Bytes is the total payload accepted.
func (s *DiscardSink) Bytes() int64 { return s.bytes.Load() }

// Plays is the number of Play calls.
func (s *DiscardSink) Plays() int64 { return s.plays.Load() }

// Flushes is the number of successful Flush calls.
func (s *DiscardSink) Flushes() int64 { return s.flushes.Load() }

// FileSink records segments to a directory together with a local media
// playlist. Every file is replaced atomically so readers never see a torn
// segment or index.
type FileSink struct {
	id  string
	dir string

	mu      sync.Mutex
	entries []fileEntry
	flushed bool
	closed  bool
}

type fileEntry struct {
	name          string
	duration      time.Duration
	discontinuity bool
}

// IndexFile is the name of the playlist FileSink maintains.
const IndexFile = "index.m3u8"

func NewFileSink(id, dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create sink dir: %w", err)
	}
	return &FileSink{id: id, dir: dir}, nil
}

func (s *FileSink) ID() string { return s.id }

func (s *FileSink) Append(seg Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}

	name := fmt.Sprintf("seg-%d%s", seg.Sequence, segmentExt(seg.URI))
	if err := renameio.WriteFile(filepath.Join(s.dir, name), seg.Data, 0o640); err != nil {
		return fmt.Errorf("write segment %d: %w", seg.Sequence, err)
	}
	s.entries = append(s.entries, fileEntry{
		name:          name,
		duration:      seg.Duration,
		discontinuity: s.flushed && len(s.entries) > 0,
	})
	s.flushed = false
	return s.writeIndex(false)
}

func (s *FileSink) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	return nil
}

// Flush marks a discontinuity; the next appended segment starts a new run.
func (s *FileSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	s.flushed = true
	return nil
}

// Close finalizes the playlist with EXT-X-ENDLIST.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if len(s.entries) == 0 {
		return nil
	}
	return s.writeIndex(true)
}

// Segments returns the number of recorded segments.
func (s *FileSink) Segments() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *FileSink) writeIndex(final bool) error {
	var target time.Duration
	for _, e := range s.entries {
		target = max(target, e.duration)
	}

	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n")
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", int((target+time.Second-1)/time.Second))
	b.WriteString("#EXT-X-MEDIA-SEQUENCE:0\n")
	for _, e := range s.entries {
		if e.discontinuity {
			b.WriteString("#EXT-X-DISCONTINUITY\n")
		}
		fmt.Fprintf(&b, "#EXTINF:%.3f,\n%s\n", e.duration.Seconds(), e.name)
	}
	if final {
		b.WriteString("#EXT-X-ENDLIST\n")
	}
	return renameio.WriteFile(filepath.Join(s.dir, IndexFile), []byte(b.String()), 0o640)
}

func segmentExt(uri string) string {
	if i := strings.IndexAny(uri, "?#"); i >= 0 {
		uri = uri[:i]
	}
	if ext := filepath.Ext(uri); ext != "" && len(ext) <= 5 {
		return ext
	}
	return ".ts"
}
