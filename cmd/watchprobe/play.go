// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ManuGH/matchcast/internal/config"
	"github.com/ManuGH/matchcast/internal/engine"
	mclog "github.com/ManuGH/matchcast/internal/log"
	"github.com/ManuGH/matchcast/internal/playback"
	"github.com/ManuGH/matchcast/internal/resilience"
	"github.com/ManuGH/matchcast/internal/version"
)

const (
	defaultBreakerThreshold = 3
	defaultBreakerReset     = 30 * time.Second
)

type playOptions struct {
	ManifestURL   string
	Sink          string
	EngineURL     string
	EngineVersion string
	Retries       int
	Debounce      time.Duration
	Interactive   bool
	Hold          time.Duration

	BreakerThreshold int
	BreakerReset     time.Duration

	// Config, when set, is watched for retry debounce changes.
	Config *config.ConfigHolder
}

func newPlayCmd() *cobra.Command {
	opts := playOptions{}
	var configPath string
	cmd := &cobra.Command{
		Use:   "play <manifest-url>",
		Short: "Mount a playback session and follow it until it has been READY for --hold",
		Example: `  watchprobe play https://cdn.example.com/live/master.m3u8 --hold 30s
  watchprobe play https://cdn.example.com/vod.m3u8 --sink file:/tmp/out --retries 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ManifestURL = args[0]
			if configPath != "" {
				loader := config.NewLoader(configPath, version.Version)
				cfg, err := loader.Load()
				if err != nil {
					return err
				}
				applyConfig(cmd, &opts, cfg)
				opts.Config = config.NewConfigHolder(cfg, loader, configPath)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runPlay(ctx, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.Sink, "sink", "discard", "where segments go: discard or file:<dir>")
	f.StringVar(&opts.EngineURL, "engine-url", "", "base URL of the engine library (built-in when empty)")
	f.StringVar(&opts.EngineVersion, "engine-version", "1", "engine library version to load")
	f.IntVar(&opts.Retries, "retries", 1, "manual retries to perform after FAILED")
	f.DurationVar(&opts.Debounce, "debounce", playback.DefaultRetryDebounce, "wait before a manual retry remounts")
	f.BoolVar(&opts.Interactive, "interactive", false, "wait for Enter before each retry")
	f.DurationVar(&opts.Hold, "hold", 10*time.Second, "how long READY must last to succeed")
	f.StringVar(&configPath, "config", "", "matchcast config file supplying engine and playback settings")
	return cmd
}

// applyConfig fills the options the command line left unset from cfg.
func applyConfig(cmd *cobra.Command, opts *playOptions, cfg config.AppConfig) {
	flags := cmd.Flags()
	if !flags.Changed("engine-url") {
		opts.EngineURL = cfg.Engine.LibraryURL
	}
	if !flags.Changed("engine-version") {
		opts.EngineVersion = cfg.Engine.Version
	}
	if !flags.Changed("debounce") {
		opts.Debounce = cfg.Playback.RetryDebounce
	}
	opts.BreakerThreshold = cfg.Engine.BreakerThreshold
	opts.BreakerReset = cfg.Engine.BreakerReset
}

func openSink(target string) (engine.Sink, error) {
	id := "probe-" + uuid.NewString()[:8]
	switch {
	case target == "" || target == "discard":
		return engine.NewDiscardSink(id), nil
	case strings.HasPrefix(target, "file:"):
		dir := strings.TrimPrefix(target, "file:")
		if dir == "" {
			return nil, errors.New("file sink needs a directory")
		}
		return engine.NewFileSink(id, dir)
	default:
		return nil, fmt.Errorf("unknown sink %q", target)
	}
}

func newLibrary(opts playOptions) (*engine.Library, error) {
	if opts.EngineURL == "" {
		return engine.NewLibrary(engine.BuiltinSource{Version: opts.EngineVersion}, opts.EngineVersion), nil
	}
	threshold, reset := opts.BreakerThreshold, opts.BreakerReset
	if threshold <= 0 {
		threshold = defaultBreakerThreshold
	}
	if reset <= 0 {
		reset = defaultBreakerReset
	}
	breaker := resilience.NewCircuitBreaker("engine-library", threshold, reset)
	src, err := engine.NewRemoteSource(opts.EngineURL, opts.EngineVersion, breaker)
	if err != nil {
		return nil, err
	}
	return engine.NewLibrary(src, opts.EngineVersion), nil
}

// runPlay mounts one session and reports its status changes to out. It
// returns nil once READY has lasted opts.Hold.
func runPlay(ctx context.Context, opts playOptions, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sink, err := openSink(opts.Sink)
	if err != nil {
		return err
	}
	defer sink.Close()

	lib, err := newLibrary(opts)
	if err != nil {
		return err
	}
	sess, err := playback.New(playback.Config{
		ID:          "probe-" + uuid.NewString()[:8],
		ManifestURL: opts.ManifestURL,
		Sink:        sink,
	}, playback.FromAdapter(engine.NewAdapter(lib)))
	if err != nil {
		return err
	}
	defer sess.Close()

	sub, err := sess.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	retry := playback.NewRetryController(sess, opts.Debounce)
	if opts.Config != nil {
		updates := make(chan config.AppConfig, 1)
		opts.Config.RegisterListener(updates)
		if err := opts.Config.StartWatcher(ctx); err != nil {
			return err
		}
		defer opts.Config.Stop()
		go followDebounce(ctx, updates, retry)
	}
	if err := sess.Mount(ctx); err != nil {
		return err
	}

	var (
		hold     <-chan time.Time
		retries  int
		retryErr = make(chan error, 1)
		lines    = bufio.NewScanner(in)
	)
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-retryErr:
			if err != nil {
				return fmt.Errorf("retry: %w", err)
			}

		case <-hold:
			_, _ = fmt.Fprintf(out, "held READY for %s\n", opts.Hold)
			return nil

		case msg, ok := <-sub.C():
			if !ok {
				return errors.New("status stream closed")
			}
			st, ok := msg.(playback.Status)
			if !ok {
				continue
			}
			printStatus(out, st, time.Since(start))

			switch st.State {
			case playback.StateReady:
				if hold == nil {
					hold = time.After(opts.Hold)
				}
				continue
			case playback.StateFailed:
				if retries >= opts.Retries {
					return fmt.Errorf("playback failed after %d retries: %s", retries, st.Fault)
				}
				retries++
				if opts.Interactive {
					_, _ = fmt.Fprint(out, "press Enter to retry ")
					if !lines.Scan() {
						return fmt.Errorf("playback failed: %s", st.Fault)
					}
				}
				go func() { retryErr <- retry.Retry(ctx) }()
			}
			hold = nil
		}
	}
}

// followDebounce applies reloaded retry debounce values until ctx ends.
func followDebounce(ctx context.Context, updates <-chan config.AppConfig, retry *playback.RetryController) {
	logger := mclog.WithComponent("watchprobe")
	for {
		select {
		case <-ctx.Done():
			return
		case cfg := <-updates:
			if cfg.Playback.RetryDebounce == retry.Debounce() {
				continue
			}
			retry.SetDebounce(cfg.Playback.RetryDebounce)
			logger.Info().
				Dur("debounce", cfg.Playback.RetryDebounce).
				Str(mclog.FieldEvent, "retry.debounce_updated").
				Msg("retry debounce updated from config")
		}
	}
}

func printStatus(out io.Writer, st playback.Status, elapsed time.Duration) {
	line := fmt.Sprintf("%8s  %-18s %-8s gen=%d", elapsed.Truncate(time.Millisecond), st.State, st.Phase, st.Generation)
	if st.Fault != "" {
		line += "  fault=" + st.Fault
	}
	if st.Error != "" {
		line += "  error=" + st.Error
	}
	_, _ = fmt.Fprintln(out, line)
}
