// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscardSink(t *testing.T) {
	s := NewDiscardSink("video-1")
	assert.Equal(t, "video-1", s.ID())

	require.NoError(t, s.Append(Segment{Sequence: 1, Data: []byte{0x47, 1, 2}}))
	require.NoError(t, s.Play())
	require.NoError(t, s.Flush())
	assert.Equal(t, int64(1), s.Appended())
	assert.Equal(t, int64(3), s.Bytes())
	assert.Equal(t, int64(1), s.Plays())
	assert.Equal(t, int64(1), s.Flushes())

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Append(Segment{}), ErrSinkClosed)
	assert.ErrorIs(t, s.Flush(), ErrSinkClosed)
}

func TestDiscardSink_RejectPlay(t *testing.T) {
	s := NewDiscardSink("v", WithRejectPlay())
	assert.ErrorIs(t, s.Play(), ErrPlayRejected)
	assert.Equal(t, int64(1), s.Plays())
}

func TestFileSink_WritesSegmentsAndIndex(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "rec")
	s, err := NewFileSink("rec", dir)
	require.NoError(t, err)

	require.NoError(t, s.Append(Segment{Sequence: 7, URI: "a/s7.ts?sig=1", Duration: 4 * time.Second, Data: []byte{0x47}}))
	require.NoError(t, s.Flush())
	require.NoError(t, s.Append(Segment{Sequence: 8, URI: "s8.m4s", Duration: 3500 * time.Millisecond, Data: []byte{1}}))
	assert.Equal(t, 2, s.Segments())

	data, err := os.ReadFile(filepath.Join(dir, "seg-7.ts"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x47}, data)
	_, err = os.Stat(filepath.Join(dir, "seg-8.m4s"))
	require.NoError(t, err)

	index, err := os.ReadFile(filepath.Join(dir, IndexFile))
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:4\n#EXT-X-MEDIA-SEQUENCE:0\n"+
		"#EXTINF:4.000,\nseg-7.ts\n#EXT-X-DISCONTINUITY\n#EXTINF:3.500,\nseg-8.m4s\n", string(index))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	index, err = os.ReadFile(filepath.Join(dir, IndexFile))
	require.NoError(t, err)
	assert.Contains(t, string(index), "#EXT-X-ENDLIST\n")
	assert.ErrorIs(t, s.Append(Segment{}), ErrSinkClosed)
}
