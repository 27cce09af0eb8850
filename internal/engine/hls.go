// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var errNotPlaylist = errors.New("missing #EXTM3U header")

// playlist is either a master playlist (variants set) or a media playlist.
type playlist struct {
	variants []variant

	targetDuration time.Duration
	mediaSequence  int64
	segments       []mediaSegment
	keyMethod      string
	ended          bool
}

func (p *playlist) isMaster() bool { return len(p.variants) > 0 }

type variant struct {
	bandwidth int64
	uri       string
}

type mediaSegment struct {
	sequence int64
	uri      string
	duration time.Duration
}

func parsePlaylist(data []byte) (*playlist, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	p := &playlist{}
	header := false
	var (
		pendingVariant  *variant
		pendingDuration time.Duration
		pendingInf      bool
		seq             int64
		seqSet          bool
	)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !header {
			if line != "#EXTM3U" {
				return nil, errNotPlaylist
			}
			header = true
			continue
		}

		if !strings.HasPrefix(line, "#") {
			switch {
			case pendingVariant != nil:
				pendingVariant.uri = line
				p.variants = append(p.variants, *pendingVariant)
				pendingVariant = nil
			case pendingInf:
				if !seqSet {
					seq = p.mediaSequence
					seqSet = true
				}
				p.segments = append(p.segments, mediaSegment{sequence: seq, uri: line, duration: pendingDuration})
				seq++
				pendingInf = false
			default:
				return nil, fmt.Errorf("uri %q without preceding tag", line)
			}
			continue
		}

		tag, value, _ := strings.Cut(line, ":")
		switch tag {
		case "#EXT-X-STREAM-INF":
			attrs := parseAttributes(value)
			bw, _ := strconv.ParseInt(attrs["BANDWIDTH"], 10, 64)
			pendingVariant = &variant{bandwidth: bw}
		case "#EXT-X-TARGETDURATION":
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("invalid target duration %q", value)
			}
			p.targetDuration = time.Duration(n) * time.Second
		case "#EXT-X-MEDIA-SEQUENCE":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid media sequence %q", value)
			}
			if len(p.segments) > 0 {
				return nil, errors.New("media sequence after first segment")
			}
			p.mediaSequence = n
		case "#EXTINF":
			durStr, _, _ := strings.Cut(value, ",")
			secs, err := strconv.ParseFloat(durStr, 64)
			if err != nil || secs < 0 {
				return nil, fmt.Errorf("invalid segment duration %q", value)
			}
			pendingDuration = time.Duration(secs * float64(time.Second))
			pendingInf = true
		case "#EXT-X-KEY":
			p.keyMethod = parseAttributes(value)["METHOD"]
		case "#EXT-X-ENDLIST":
			p.ended = true
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if !header {
		return nil, errNotPlaylist
	}
	if pendingVariant != nil || pendingInf {
		return nil, errors.New("playlist ends inside an entry")
	}
	if !p.isMaster() && p.targetDuration == 0 {
		return nil, errors.New("media playlist without target duration")
	}
	return p, nil
}

// parseAttributes splits an attribute list such as
// BANDWIDTH=1280000,CODECS="avc1.4d401f,mp4a.40.2".
func parseAttributes(s string) map[string]string {
	attrs := make(map[string]string)
	for s != "" {
		key, rest, ok := strings.Cut(s, "=")
		if !ok {
			break
		}
		var val string
		if strings.HasPrefix(rest, `"`) {
			end := strings.IndexByte(rest[1:], '"')
			if end < 0 {
				val, rest = rest[1:], ""
			} else {
				val, rest = rest[1:end+1], rest[end+2:]
			}
			rest = strings.TrimPrefix(rest, ",")
		} else {
			val, rest, _ = strings.Cut(rest, ",")
		}
		attrs[strings.TrimSpace(key)] = val
		s = rest
	}
	return attrs
}

// encrypted reports whether the playlist needs a key system this engine
// does not provide.
func (p *playlist) encrypted() bool {
	return p.keyMethod != "" && p.keyMethod != "NONE"
}

// startIndex is where live playback begins: liveEdge segments behind the end.
func (p *playlist) startIndex(liveEdge int) int {
	if p.ended {
		return 0
	}
	return max(0, len(p.segments)-liveEdge)
}
