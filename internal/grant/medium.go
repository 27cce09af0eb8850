// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package grant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned by Medium.Get when the key is absent or expired.
var ErrNotFound = errors.New("grant: not found")

// Medium is the key/value storage behind grants. Implementations must be
// safe for concurrent use and must stop returning a key once its TTL elapsed.
type Medium interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// Sweeper is implemented by mediums that only expire entries lazily.
type Sweeper interface {
	// Sweep removes expired entries and returns how many it removed.
	Sweep(ctx context.Context) (int, error)
}

// Options selects and configures a Medium.
type Options struct {
	Backend       string
	Path          string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// OpenMedium opens the medium named by opts.Backend.
func OpenMedium(ctx context.Context, opts Options) (Medium, error) {
	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	switch backend {
	case "", "memory":
		return NewMemoryMedium(nil), nil
	case "redis":
		return NewRedisMedium(ctx, RedisOptions{Addr: opts.RedisAddr, Password: opts.RedisPassword, DB: opts.RedisDB})
	case "sqlite":
		return NewSQLiteMedium(ctx, opts.Path, nil)
	case "badger":
		return NewBadgerMedium(opts.Path)
	case "bolt":
		return NewBoltMedium(opts.Path, nil)
	default:
		return nil, fmt.Errorf("grant: unknown backend %q", opts.Backend)
	}
}
