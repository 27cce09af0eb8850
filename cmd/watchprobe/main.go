// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Command watchprobe drives one playback session from the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mclog "github.com/ManuGH/matchcast/internal/log"
	"github.com/ManuGH/matchcast/internal/version"
)

func newRootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:           "watchprobe",
		Short:         "Exercise the resilient playback session against a live stream",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			mclog.Configure(mclog.Config{
				Level:   logLevel,
				Output:  cmd.ErrOrStderr(),
				Service: "watchprobe",
				Version: version.Version,
			})
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level written to stderr")
	root.AddCommand(newPlayCmd(), newClassifyCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "watchprobe: %v\n", err)
		os.Exit(1)
	}
}
