// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ManuGH/matchcast/internal/config"
	"github.com/ManuGH/matchcast/internal/persistence/sqlite"
	"github.com/ManuGH/matchcast/internal/version"
)

func runStorageCLI(args []string) int {
	return storageCLI(args, os.Stdout, os.Stderr)
}

func storageCLI(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printStorageUsage(stdout)
		return 0
	}

	switch args[0] {
	case "verify":
		return runStorageVerify(args[1:], stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printStorageUsage(stderr)
		return 2
	}
}

func printStorageUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  matchcast storage verify [--path PATH | --config FILE] [--mode quick|full]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Flags:")
	_, _ = fmt.Fprintln(w, "  --path string    Path to a specific SQLite database file")
	_, _ = fmt.Fprintln(w, "  --config string  Verify every SQLite database the config file names")
	_, _ = fmt.Fprintln(w, "  --mode string    Verification mode: quick (default) or full")
}

func runStorageVerify(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("matchcast storage verify", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var path, configPath, mode string
	fs.StringVar(&path, "path", "", "Path to the SQLite database file")
	fs.StringVar(&configPath, "config", "", "Config file naming the databases to verify")
	fs.StringVar(&mode, "mode", "quick", "Verification mode: quick or full")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if path == "" && configPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --path or --config is required")
		return 2
	}

	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode != "quick" && mode != "full" {
		_, _ = fmt.Fprintf(stderr, "Error: invalid mode %q. Use 'quick' or 'full'.\n", mode)
		return 2
	}

	if path != "" {
		return doVerify(path, mode, stdout, stderr)
	}

	cfg, err := config.NewLoader(configPath, version.Version).Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	paths := sqlitePaths(cfg)
	if len(paths) == 0 {
		_, _ = fmt.Fprintln(stderr, "Error: the config names no SQLite databases")
		return 2
	}
	exitCode := 0
	for _, p := range paths {
		if code := doVerify(p, mode, stdout, stderr); code != 0 {
			exitCode = code
		}
	}
	return exitCode
}

// sqlitePaths lists the SQLite files cfg uses.
func sqlitePaths(cfg config.AppConfig) []string {
	var paths []string
	if cfg.Grants.Backend == "sqlite" && cfg.Grants.Path != "" {
		paths = append(paths, cfg.Grants.Path)
	}
	if cfg.Catalog.Path != "" {
		paths = append(paths, cfg.Catalog.Path)
	}
	return paths
}

func doVerify(path, mode string, stdout, stderr io.Writer) int {
	_, _ = fmt.Fprintf(stderr, "Verifying integrity of %s (mode: %s)...\n", path, mode)

	issues, err := sqlite.Verify(context.Background(), path, mode == "full")
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Verification interrupted by system error: %v\n", err)
		return 1
	}

	if issues != nil {
		_, _ = fmt.Fprintln(stderr, "CORRUPTION DETECTED")
		for _, issue := range issues {
			_, _ = fmt.Fprintf(stderr, "  - %s\n", issue)
		}
		return 1
	}

	_, _ = fmt.Fprintf(stdout, "Integrity verified: %s ok\n", path)
	return 0
}
