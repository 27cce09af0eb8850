// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package catalog maps (match, device, language) to a stream manifest URL.
package catalog

import (
	"context"
	"errors"

	"golang.org/x/text/language"
)

var ErrInvalidStream = errors.New("catalog: stream needs match id, device and url")

// Stream is one published rendition of a match.
type Stream struct {
	MatchID  string `json:"matchId" yaml:"matchId"`
	Device   string `json:"device" yaml:"device"`
	Language string `json:"language" yaml:"language"`
	URL      string `json:"url" yaml:"url"`
}

func (s Stream) validate() error {
	if s.MatchID == "" || s.Device == "" || s.URL == "" {
		return ErrInvalidStream
	}
	return nil
}

// Catalog looks up stream URLs. ok is false when nothing suitable exists.
type Catalog interface {
	Lookup(ctx context.Context, matchID, device, lang string) (url string, ok bool, err error)
	Put(ctx context.Context, s Stream) error
}

// pick chooses the best stream for the requested language. An empty request
// takes the first stream. A request no available language can serve has no
// result.
func pick(streams []Stream, lang string) (Stream, bool) {
	if len(streams) == 0 {
		return Stream{}, false
	}
	if lang == "" {
		return streams[0], true
	}
	want, err := language.Parse(lang)
	if err != nil {
		return Stream{}, false
	}
	tags := make([]language.Tag, len(streams))
	for i, s := range streams {
		tags[i] = language.Make(s.Language)
	}
	_, idx, conf := language.NewMatcher(tags).Match(want)
	if conf == language.No {
		return Stream{}, false
	}
	return streams[idx], true
}
