// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package postgres opens the pgx pool behind the users schema and runs the
transactions the promotion workflow depends on.

Repositories take a [DBTX] so the same SQL runs on the pool or inside [InTx].
*/
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	connectTimeout = 5 * time.Second
	pingTimeout    = 2 * time.Second
)

// DBTX is the query surface shared by [*pgxpool.Pool] and [pgx.Tx].
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Options sizes the pool. Zero fields keep the defaults from [DefaultOptions].
type Options struct {
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	StatementTimeout time.Duration
}

// DefaultOptions suits a single API instance of the club.
func DefaultOptions() Options {
	return Options{
		MaxConns:         20,
		MinConns:         2,
		MaxConnLifetime:  time.Hour,
		MaxConnIdleTime:  10 * time.Minute,
		StatementTimeout: 30 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	defaults := DefaultOptions()
	if o.MaxConns <= 0 {
		o.MaxConns = defaults.MaxConns
	}
	if o.MinConns <= 0 || o.MinConns > o.MaxConns {
		o.MinConns = min(defaults.MinConns, o.MaxConns)
	}
	if o.MaxConnLifetime <= 0 {
		o.MaxConnLifetime = defaults.MaxConnLifetime
	}
	if o.MaxConnIdleTime <= 0 {
		o.MaxConnIdleTime = defaults.MaxConnIdleTime
	}
	if o.StatementTimeout <= 0 {
		o.StatementTimeout = defaults.StatementTimeout
	}
	return o
}

/*
NewPool connects to dsn and pings it before returning.

Every physical connection gets the statement timeout from options, so a slow
query cannot outlive the request that issued it.
*/
func NewPool(ctx context.Context, dsn string, options Options, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: invalid DSN: %w", err)
	}

	options = options.withDefaults()
	poolConfig.MaxConns = options.MaxConns
	poolConfig.MinConns = options.MinConns
	poolConfig.MaxConnLifetime = options.MaxConnLifetime
	poolConfig.MaxConnIdleTime = options.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = time.Minute
	poolConfig.ConnConfig.ConnectTimeout = connectTimeout
	poolConfig.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(options.StatementTimeout.Milliseconds())
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "fitclub-api"

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create pool: %w", err)
	}

	if err := Ping(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("postgres_pool_connected",
		slog.String("database", poolConfig.ConnConfig.Database),
		slog.Int("max_conns", int(options.MaxConns)),
		slog.Duration("statement_timeout", options.StatementTimeout),
	)

	return pool, nil
}

// Ping checks the pool within a short deadline. Readiness calls it.
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("postgres: ping failed: %w", err)
	}
	return nil
}

/*
InTx runs fn inside a READ COMMITTED transaction.

The transaction commits when fn returns nil and rolls back otherwise, panics
included. Promotion decisions lock the member row with SELECT ... FOR UPDATE
inside fn.
*/
func InTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("postgres: begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit failed: %w", err)
	}
	return nil
}
