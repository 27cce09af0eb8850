// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package grant

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	bolt "go.etcd.io/bbolt"
)

var grantsBucket = []byte("grants")

// BoltMedium stores grants in a bbolt file. Each value is prefixed with its
// expiry (8 bytes, big-endian epoch ms).
type BoltMedium struct {
	db    *bolt.DB
	clock clockwork.Clock
}

// NewBoltMedium opens the bolt file at path.
func NewBoltMedium(path string, clock clockwork.Clock) (*BoltMedium, error) {
	if path == "" {
		return nil, errors.New("grant: bolt medium requires a path")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("grant: open bolt: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(grantsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("grant: create bolt bucket: %w", err)
	}
	return &BoltMedium{db: db, clock: clock}, nil
}

func (m *BoltMedium) live(raw []byte) ([]byte, bool) {
	if len(raw) < 8 {
		return nil, false
	}
	expiresAt := int64(binary.BigEndian.Uint64(raw[:8]))
	if m.clock.Now().UnixMilli() > expiresAt {
		return nil, false
	}
	return raw[8:], true
}

func (m *BoltMedium) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := m.db.View(func(tx *bolt.Tx) error {
		v, ok := m.live(tx.Bucket(grantsBucket).Get([]byte(key)))
		if !ok {
			return ErrNotFound
		}
		value = append([]byte(nil), v...)
		return nil
	})
	return value, err
}

func (m *BoltMedium) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf[:8], uint64(m.clock.Now().Add(ttl).UnixMilli()))
	copy(buf[8:], value)
	err := m.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(grantsBucket).Put([]byte(key), buf)
	})
	if err != nil {
		return fmt.Errorf("grant: bolt put: %w", err)
	}
	return nil
}

func (m *BoltMedium) Delete(_ context.Context, key string) error {
	err := m.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(grantsBucket).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("grant: bolt delete: %w", err)
	}
	return nil
}

func (m *BoltMedium) Sweep(_ context.Context) (int, error) {
	removed := 0
	err := m.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(grantsBucket)
		var expired [][]byte
		err := b.ForEach(func(k, v []byte) error {
			if _, ok := m.live(v); !ok {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(expired)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("grant: bolt sweep: %w", err)
	}
	return removed, nil
}

func (m *BoltMedium) Close() error {
	return m.db.Close()
}
