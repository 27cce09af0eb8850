// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build !debug

package playback

import "fmt"

func illegalTransition(from State, ev EventKind) (Transition, error) {
	tr := Transition{
		From:   from,
		To:     StateFailed,
		Event:  ev,
		Reason: ReasonIllegalTransition,
	}
	return tr, fmt.Errorf("illegal transition: %s + %v", from, ev)
}
