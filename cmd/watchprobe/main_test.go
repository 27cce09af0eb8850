// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/matchcast/internal/config"
	"github.com/ManuGH/matchcast/internal/engine"
)

const (
	masterBody  = "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=800000\nlow/index.m3u8\n"
	vodPlaylist = "#EXTM3U\n#EXT-X-TARGETDURATION:4\n#EXT-X-MEDIA-SEQUENCE:0\n" +
		"#EXTINF:4,\ns0.ts\n#EXTINF:4,\ns1.ts\n#EXT-X-ENDLIST\n"
)

func vodServer(t *testing.T) *httptest.Server {
	t.Helper()
	bodies := map[string]string{
		"/m/master.m3u8":    masterBody,
		"/m/low/index.m3u8": vodPlaylist,
		"/m/low/s0.ts":      "\x47seg0",
		"/m/low/s1.ts":      "\x47seg1",
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := bodies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(""))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestClassify(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{args: []string{"network", engine.DetailFragLoad, "--fatal"}, want: "NetworkFault: reload the manifest once"},
		{args: []string{"media", engine.DetailBufferAppend, "--fatal"}, want: "MediaFault: reset the media pipeline once"},
		{args: []string{"key", engine.DetailKeySystem, "--fatal"}, want: "OtherFatalFault: fail and offer a manual retry"},
		{args: []string{"network", engine.DetailFragLoad}, want: "NonFatal: ignored"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			out, err := runRoot(t, append([]string{"classify"}, tt.args...)...)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestClassify_RequiresArgs(t *testing.T) {
	_, err := runRoot(t, "classify", "network")
	require.Error(t, err)
}

func TestPlay_HoldsReady(t *testing.T) {
	srv := vodServer(t)
	dir := t.TempDir()

	out, err := runRoot(t, "play", srv.URL+"/m/master.m3u8", "--sink", "file:"+dir, "--hold", "100ms")
	require.NoError(t, err, out)
	assert.Contains(t, out, "LIBRARY_LOADING")
	assert.Contains(t, out, "READY")
	assert.Contains(t, out, "held READY for 100ms")

	index, err := os.ReadFile(filepath.Join(dir, engine.IndexFile))
	require.NoError(t, err)
	assert.Contains(t, string(index), "#EXT-X-ENDLIST")
}

func TestPlay_FailsAfterRetries(t *testing.T) {
	srv := vodServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	var out bytes.Buffer
	err := runPlay(ctx, playOptions{
		ManifestURL:   srv.URL + "/missing.m3u8",
		Sink:          "discard",
		EngineVersion: "1",
		Retries:       1,
		Hold:          time.Second,
	}, strings.NewReader(""), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "playback failed after 1 retries")
	assert.Equal(t, 2, strings.Count(out.String(), "FAILED"), out.String())
}

func TestPlay_InteractiveStopsWithoutInput(t *testing.T) {
	srv := vodServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	var out bytes.Buffer
	err := runPlay(ctx, playOptions{
		ManifestURL:   srv.URL + "/missing.m3u8",
		EngineVersion: "1",
		Retries:       3,
		Interactive:   true,
	}, strings.NewReader(""), &out)
	require.Error(t, err)
	assert.Contains(t, out.String(), "press Enter to retry")
}

func TestOpenSink(t *testing.T) {
	s, err := openSink("discard")
	require.NoError(t, err)
	assert.IsType(t, &engine.DiscardSink{}, s)

	_, err = openSink("file:")
	require.Error(t, err)
	_, err = openSink("speaker")
	require.Error(t, err)
}

func TestPlay_ConfigFileSuppliesEngineSettings(t *testing.T) {
	srv := vodServer(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  version: \"1\"\nplayback:\n  retryDebounce: 10ms\n"), 0o600))

	out, err := runRoot(t, "play", srv.URL+"/m/master.m3u8", "--config", path, "--hold", "50ms")
	require.NoError(t, err, out)
	assert.Contains(t, out, "held READY for 50ms")
}

func TestApplyConfig_FlagsWin(t *testing.T) {
	cmd := newPlayCmd()
	require.NoError(t, cmd.Flags().Set("debounce", "5s"))

	cfg := config.Defaults()
	cfg.Engine.LibraryURL = "https://cdn.example.com/engine"
	cfg.Playback.RetryDebounce = 250 * time.Millisecond

	opts := playOptions{Debounce: 5 * time.Second}
	applyConfig(cmd, &opts, cfg)
	assert.Equal(t, 5*time.Second, opts.Debounce)
	assert.Equal(t, "https://cdn.example.com/engine", opts.EngineURL)
	assert.Equal(t, cfg.Engine.Version, opts.EngineVersion)
	assert.Equal(t, cfg.Engine.BreakerThreshold, opts.BreakerThreshold)
}
