// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ManuGH/matchcast/internal/engine"
	"github.com/ManuGH/matchcast/internal/playback"
)

func newClassifyCmd() *cobra.Command {
	var fatal bool
	cmd := &cobra.Command{
		Use:   "classify <type> <details>",
		Short: "Print how an engine error is classified and what a session does with it",
		Example: `  watchprobe classify network fragLoadError --fatal
  watchprobe classify media bufferAppendError`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := engine.RawError{
				Type:    engine.ErrorType(strings.ToLower(args[0])),
				Details: args[1],
				Fatal:   fatal,
			}
			class := engine.Classify(raw)
			reaction := "ignored (engine recovers internally)"
			if ev, ok := playback.EventForFault(class); ok {
				reaction = describeReaction(ev)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s: %s\n", raw.Error(), class, reaction)
			return err
		},
	}
	cmd.Flags().BoolVar(&fatal, "fatal", false, "the engine reported the error as fatal")
	return cmd
}

// describeReaction names what a READY session does on ev.
func describeReaction(ev playback.EventKind) string {
	tr, err := playback.Dispatch(playback.StateReady, ev, playback.Budget{})
	if err != nil {
		return err.Error()
	}
	switch tr.To {
	case playback.StateRecoveringNetwork:
		return "reload the manifest once, then fail"
	case playback.StateRecoveringMedia:
		return "reset the media pipeline once, then fail"
	default:
		return "fail and offer a manual retry"
	}
}
