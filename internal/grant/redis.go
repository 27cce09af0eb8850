// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package grant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ManuGH/matchcast/internal/log"
)

// RedisOptions holds Redis connection configuration.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisMedium stores grants as plain keys with a PX expiry, so Redis
// reclaims abandoned tabs itself.
type RedisMedium struct {
	client *redis.Client
}

// NewRedisMedium connects and pings the server.
func NewRedisMedium(ctx context.Context, opts RedisOptions) (*RedisMedium, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("grant: redis connection failed: %w", err)
	}

	logger := log.WithComponent("grant")
	logger.Info().
		Str("addr", opts.Addr).
		Int("db", opts.DB).
		Msg("connected to redis grant medium")
	return &RedisMedium{client: client}, nil
}

// NewRedisMediumFromClient wraps an existing client.
func NewRedisMediumFromClient(client *redis.Client) *RedisMedium {
	return &RedisMedium{client: client}
}

func (m *RedisMedium) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := m.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("grant: redis get: %w", err)
	}
	return val, nil
}

func (m *RedisMedium) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := m.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("grant: redis set: %w", err)
	}
	return nil
}

func (m *RedisMedium) Delete(ctx context.Context, key string) error {
	if err := m.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("grant: redis del: %w", err)
	}
	return nil
}

func (m *RedisMedium) Close() error {
	return m.client.Close()
}
