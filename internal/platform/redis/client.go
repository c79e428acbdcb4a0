// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package redis connects the optional Redis backend of the refresh session store.

Session records carry their own TTL, so the client needs no eviction policy;
it only has to fail fast when Redis is unreachable.
*/
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 2 * time.Second

// Options tunes the client. Zero fields keep the go-redis values set in [NewClient].
type Options struct {
	PoolSize     int
	OpTimeout    time.Duration
	DialTimeout  time.Duration
	MinIdleConns int
}

/*
NewClient parses redisURL (redis:// or rediss://), applies options and pings
the server before returning.
*/
func NewClient(ctx context.Context, redisURL string, options Options, logger *slog.Logger) (*redis.Client, error) {
	parsed, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}

	parsed.PoolSize = orDefault(options.PoolSize, 10)
	parsed.MinIdleConns = orDefault(options.MinIdleConns, 2)
	parsed.DialTimeout = orDefault(options.DialTimeout, 3*time.Second)
	parsed.ReadTimeout = orDefault(options.OpTimeout, 2*time.Second)
	parsed.WriteTimeout = parsed.ReadTimeout

	client := redis.NewClient(parsed)

	if err := Ping(ctx, client); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("redis_client_connected",
		slog.String("addr", parsed.Addr),
		slog.Int("db", parsed.DB),
		slog.Int("pool_size", parsed.PoolSize),
	)

	return client, nil
}

// Ping checks the server within a short deadline. Readiness calls it.
func Ping(ctx context.Context, client redis.UniversalClient) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis: ping failed: %w", err)
	}
	return nil
}

func orDefault[T int | time.Duration](value, fallback T) T {
	if value <= 0 {
		return fallback
	}
	return value
}
