// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ManuGH/matchcast/internal/log"
)

const (
	maxPlaylistBytes = 4 << 20
	maxSegmentBytes  = 64 << 20
	tsSyncByte       = 0x47
)

type cycleKind uint8

const (
	cycleAttach cycleKind = iota
	cycleReload
	cycleReset
)

func (k cycleKind) String() string {
	switch k {
	case cycleAttach:
		return "attach"
	case cycleReload:
		return "reload"
	default:
		return "reset"
	}
}

// Handle is one engine instance bound to a sink.
//
// Each Attach, Reload and ResetMedia starts a load cycle that supersedes the
// previous one. A cycle reports OnReady once when media is playable and
// OnFault for every error it hits; a fatal fault ends the cycle. Callbacks
// run on the instance's goroutine and must not block or call Teardown.
type Handle struct {
	id      string
	sink    Sink
	cfg     Config
	client  *http.Client
	clock   clockwork.Clock
	limiter *rate.Limiter
	logger  zerolog.Logger

	mu          sync.Mutex
	manifestURL *url.URL
	mediaURL    *url.URL
	cursor      int64
	cursorSet   bool
	cycle       uint64
	cancel      context.CancelFunc
	loopDone    chan struct{}
	onReady     func()
	onFault     func(Fault)
	tornDown    bool

	teardownOnce sync.Once
	done         chan struct{}
}

func newHandle(id string, sink Sink, cfg Config, client *http.Client, clock clockwork.Clock, logger zerolog.Logger) *Handle {
	limit := rate.Inf
	if cfg.MaxFragmentsPerSecond > 0 {
		limit = rate.Limit(cfg.MaxFragmentsPerSecond)
	}
	return &Handle{
		id:      id,
		sink:    sink,
		cfg:     cfg,
		client:  client,
		clock:   clock,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		done:    make(chan struct{}),
	}
}

func (h *Handle) ID() string { return h.id }

// Sink returns the sink this instance renders into.
func (h *Handle) Sink() Sink { return h.sink }

// Done is closed once Teardown has completed.
func (h *Handle) Done() <-chan struct{} { return h.done }

// OnReady registers the ready callback, replacing any previous one.
func (h *Handle) OnReady(fn func()) {
	h.mu.Lock()
	h.onReady = fn
	h.mu.Unlock()
}

// OnFault registers the fault callback, replacing any previous one.
func (h *Handle) OnFault(fn func(Fault)) {
	h.mu.Lock()
	h.onFault = fn
	h.mu.Unlock()
}

// Attach starts loading manifestURL. It may be called once per instance.
func (h *Handle) Attach(manifestURL string) error {
	u, err := url.Parse(manifestURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("engine: invalid manifest url %q", log.MaskURL(manifestURL))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.tornDown {
		return ErrTornDown
	}
	if h.manifestURL != nil {
		return ErrAlreadyAttached
	}
	h.manifestURL = u
	h.startCycleLocked(cycleAttach)
	return nil
}

// Reload fetches the manifest again and resumes from the current position.
func (h *Handle) Reload() error {
	return h.restart(cycleReload)
}

// ResetMedia flushes the sink and resumes segment loading without
// reloading the manifest.
func (h *Handle) ResetMedia() error {
	return h.restart(cycleReset)
}

func (h *Handle) restart(kind cycleKind) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.tornDown {
		return ErrTornDown
	}
	if h.manifestURL == nil {
		return ErrNotAttached
	}
	h.startCycleLocked(kind)
	return nil
}

// Teardown stops the instance and waits for its goroutine to exit. No
// callback runs after Teardown returns. Repeated calls are no-ops.
func (h *Handle) Teardown() {
	h.teardownOnce.Do(func() {
		h.mu.Lock()
		h.tornDown = true
		h.cycle++
		if h.cancel != nil {
			h.cancel()
		}
		loopDone := h.loopDone
		h.onReady = nil
		h.onFault = nil
		h.mu.Unlock()

		if loopDone != nil {
			<-loopDone
		}
		close(h.done)
		h.logger.Debug().Str(log.FieldEvent, "engine.torn_down").Msg("engine instance torn down")
	})
}

func (h *Handle) startCycleLocked(kind cycleKind) {
	if h.cancel != nil {
		h.cancel()
	}
	h.cycle++
	id := h.cycle
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	prev := h.loopDone
	done := make(chan struct{})
	h.loopDone = done

	go func() {
		defer close(done)
		defer cancel()
		if prev != nil {
			<-prev
		}
		h.run(ctx, id, kind)
	}()
}

// current reports whether cycle id is still the live one.
func (h *Handle) current(id uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.tornDown && h.cycle == id
}

func (h *Handle) emitReady(id uint64) bool {
	h.mu.Lock()
	if h.tornDown || h.cycle != id {
		h.mu.Unlock()
		return false
	}
	fn := h.onReady
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
	return true
}

// emitFault reports raw and returns whether the cycle may continue.
func (h *Handle) emitFault(id uint64, raw RawError) bool {
	h.mu.Lock()
	if h.tornDown || h.cycle != id {
		h.mu.Unlock()
		return false
	}
	fn := h.onFault
	h.mu.Unlock()

	f := Fault{Class: Classify(raw), Raw: raw}
	ev := h.logger.Debug()
	if raw.Fatal {
		ev = h.logger.Warn()
	}
	ev.Err(raw.Err).
		Str(log.FieldFault, f.Class.String()).
		Str("details", raw.Details).
		Str(log.FieldEvent, "engine.fault").
		Msg("engine error")
	if fn != nil {
		fn(f)
	}
	return !raw.Fatal
}

func (h *Handle) run(ctx context.Context, id uint64, kind cycleKind) {
	h.mu.Lock()
	manifest, media := h.manifestURL, h.mediaURL
	h.mu.Unlock()

	h.logger.Debug().Str(log.FieldEvent, "engine.cycle_start").Str("cycle", kind.String()).Msg("load cycle started")

	var pl *playlist
	if kind == cycleReset && media != nil {
		if err := h.sink.Flush(); err != nil {
			h.emitFault(id, RawError{Type: ErrorTypeMedia, Details: DetailBufferFlush, Fatal: true, Err: err})
			return
		}
		if !h.ready(id) {
			return
		}
	} else {
		var ok bool
		pl, media, ok = h.loadManifest(ctx, id, manifest)
		if !ok {
			return
		}
		h.mu.Lock()
		h.mediaURL = media
		h.mu.Unlock()
		if !h.ready(id) {
			return
		}
	}

	h.segmentLoop(ctx, id, media, pl)
}

// ready reports Ready and asks the sink to start rendering.
func (h *Handle) ready(id uint64) bool {
	if !h.emitReady(id) {
		return false
	}
	if err := h.sink.Play(); err != nil {
		h.logger.Info().Err(err).Str(log.FieldEvent, "engine.play_rejected").Msg("sink rejected play")
	}
	return true
}

// loadManifest resolves the manifest down to a media playlist.
func (h *Handle) loadManifest(ctx context.Context, id uint64, manifest *url.URL) (*playlist, *url.URL, bool) {
	pl, ok := h.loadPlaylist(ctx, id, manifest, DetailManifestLoad)
	if !ok {
		return nil, nil, false
	}
	if !pl.isMaster() {
		return pl, manifest, h.checkKeys(id, pl)
	}

	// First variant only; no adaptive switching.
	ref, err := url.Parse(pl.variants[0].uri)
	if err != nil {
		h.emitFault(id, RawError{Type: ErrorTypeNetwork, Details: DetailManifestParsing, Fatal: true, Err: err})
		return nil, nil, false
	}
	media := manifest.ResolveReference(ref)
	mpl, ok := h.loadPlaylist(ctx, id, media, DetailLevelLoad)
	if !ok {
		return nil, nil, false
	}
	if mpl.isMaster() {
		h.emitFault(id, RawError{Type: ErrorTypeNetwork, Details: DetailManifestParsing, Fatal: true,
			Err: errors.New("variant points at another master playlist")})
		return nil, nil, false
	}
	return mpl, media, h.checkKeys(id, mpl)
}

func (h *Handle) checkKeys(id uint64, pl *playlist) bool {
	if pl.encrypted() {
		h.emitFault(id, RawError{Type: ErrorTypeKey, Details: DetailKeySystem, Fatal: true,
			Err: fmt.Errorf("unsupported key method %s", pl.keyMethod)})
		return false
	}
	return true
}

func (h *Handle) loadPlaylist(ctx context.Context, id uint64, u *url.URL, detail string) (*playlist, bool) {
	data, ok := h.fetch(ctx, id, u, detail, maxPlaylistBytes)
	if !ok {
		return nil, false
	}
	pl, err := parsePlaylist(data)
	if err != nil {
		h.emitFault(id, RawError{Type: ErrorTypeNetwork, Details: DetailManifestParsing, Fatal: true, Err: err})
		return nil, false
	}
	return pl, true
}

func (h *Handle) segmentLoop(ctx context.Context, id uint64, media *url.URL, pl *playlist) {
	for {
		if pl == nil {
			var ok bool
			pl, ok = h.loadPlaylist(ctx, id, media, DetailLevelLoad)
			if !ok || !h.checkKeys(id, pl) {
				return
			}
		}

		for _, seg := range h.pending(pl) {
			if err := h.limiter.Wait(ctx); err != nil {
				return
			}
			ref, err := url.Parse(seg.uri)
			if err != nil {
				h.emitFault(id, RawError{Type: ErrorTypeNetwork, Details: DetailManifestParsing, Fatal: true, Err: err})
				return
			}
			data, ok := h.fetch(ctx, id, media.ResolveReference(ref), DetailFragLoad, maxSegmentBytes)
			if !ok {
				return
			}
			if path.Ext(ref.Path) == ".ts" && (len(data) == 0 || data[0] != tsSyncByte) {
				h.emitFault(id, RawError{Type: ErrorTypeMux, Details: DetailFragParsing, Fatal: true,
					Err: fmt.Errorf("segment %d: missing transport stream sync byte", seg.sequence)})
				return
			}
			if !h.current(id) {
				return
			}
			err = h.sink.Append(Segment{Sequence: seg.sequence, URI: seg.uri, Duration: seg.duration, Data: data})
			if err != nil {
				h.emitFault(id, RawError{Type: ErrorTypeMedia, Details: DetailBufferAppend, Fatal: true, Err: err})
				return
			}
			h.mu.Lock()
			h.cursor, h.cursorSet = seg.sequence+1, true
			h.mu.Unlock()
		}

		if pl.ended {
			h.logger.Debug().Str(log.FieldEvent, "engine.stream_ended").Msg("end of stream")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-h.clock.After(pl.targetDuration):
		}
		pl = nil
	}
}

// pending returns the segments at or after the cursor. Without a cursor, or
// when the cursor fell out of the live window, it starts near the live edge.
func (h *Handle) pending(pl *playlist) []mediaSegment {
	if len(pl.segments) == 0 {
		return nil
	}
	h.mu.Lock()
	cursor, set := h.cursor, h.cursorSet
	h.mu.Unlock()

	first := pl.segments[0].sequence
	if !set || cursor < first {
		return pl.segments[pl.startIndex(h.cfg.LiveEdgeSegments):]
	}
	idx := cursor - first
	if idx >= int64(len(pl.segments)) {
		return nil
	}
	return pl.segments[idx:]
}

// fetch GETs u with the engine's retry policy. Attempts that will be retried
// are reported as non-fatal network errors; exhausting them is fatal.
func (h *Handle) fetch(ctx context.Context, id uint64, u *url.URL, detail string, limit int64) ([]byte, bool) {
	attempts := h.cfg.FragmentRetries + 1
	for attempt := 1; ; attempt++ {
		data, err := h.get(ctx, u, limit)
		if err == nil {
			return data, true
		}
		if ctx.Err() != nil {
			return nil, false
		}
		fatal := attempt >= attempts
		if !h.emitFault(id, RawError{Type: ErrorTypeNetwork, Details: detail, Fatal: fatal, Err: err}) {
			return nil, false
		}
		if h.cfg.FragmentRetryDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, false
			case <-h.clock.After(h.cfg.FragmentRetryDelay):
			}
		}
	}
}

func (h *Handle) get(ctx context.Context, u *url.URL, limit int64) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("GET %s: status %d", log.MaskURL(u.String()), resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("GET %s: body exceeds %d bytes", log.MaskURL(u.String()), limit)
	}
	return data, nil
}
