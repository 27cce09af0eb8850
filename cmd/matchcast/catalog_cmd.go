// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ManuGH/matchcast/internal/catalog"
)

func runCatalogCLI(args []string) int {
	return catalogCLI(args, os.Stdout, os.Stderr)
}

func catalogCLI(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] != "put" {
		_, _ = fmt.Fprintln(stderr, "Usage: matchcast catalog put --db PATH --match ID --device D [--lang L] --url URL")
		return 2
	}

	fs := flag.NewFlagSet("matchcast catalog put", flag.ContinueOnError)
	fs.SetOutput(stderr)
	db := fs.String("db", "", "catalog SQLite database")
	var s catalog.Stream
	fs.StringVar(&s.MatchID, "match", "", "match id")
	fs.StringVar(&s.Device, "device", "", "device class, e.g. web or tv")
	fs.StringVar(&s.Language, "lang", "", "BCP 47 language of the commentary")
	fs.StringVar(&s.URL, "url", "", "HLS manifest URL")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	if *db == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --db is required")
		return 2
	}

	ctx := context.Background()
	c, err := catalog.OpenSQLite(ctx, *db)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer c.Close()

	if err := c.Put(ctx, s); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "stored %s/%s/%s\n", s.MatchID, s.Device, s.Language)
	return 0
}
