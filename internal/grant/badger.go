// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package grant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerMedium stores grants as badger entries carrying their own TTL.
type BadgerMedium struct {
	db *badger.DB
}

// NewBadgerMedium opens a badger directory. An empty path runs in memory.
func NewBadgerMedium(path string) (*BadgerMedium, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("grant: open badger: %w", err)
	}
	return &BadgerMedium{db: db}, nil
}

func (m *BadgerMedium) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("grant: badger get: %w", err)
	}
	return value, nil
}

func (m *BadgerMedium) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	err := m.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), value).WithTTL(ttl))
	})
	if err != nil {
		return fmt.Errorf("grant: badger set: %w", err)
	}
	return nil
}

func (m *BadgerMedium) Delete(_ context.Context, key string) error {
	err := m.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("grant: badger delete: %w", err)
	}
	return nil
}

// Sweep runs one value-log GC pass. Expired entries are already invisible.
func (m *BadgerMedium) Sweep(_ context.Context) (int, error) {
	if m.db.Opts().InMemory {
		return 0, nil
	}
	err := m.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("grant: badger gc: %w", err)
	}
	return 1, nil
}

func (m *BadgerMedium) Close() error {
	return m.db.Close()
}
