// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

// Package store opens the PostgreSQL connection pool and manages schema migrations.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// DB is the subset of *pgxpool.Pool used by repositories.
// pgxmock.PgxPoolIface satisfies it as well.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// OpenOptions tunes the startup connection retry.
type OpenOptions struct {
	// ConnectTimeout bounds the whole connect-and-ping loop.
	ConnectTimeout time.Duration
	// MaxRetries is the number of retries after the first failed ping.
	MaxRetries uint64
	// BaseDelay is the first backoff interval; it doubles per attempt.
	BaseDelay time.Duration
	Logger    *slog.Logger
}

// DefaultOpenOptions returns the options used by the server.
func DefaultOpenOptions() OpenOptions {
	return OpenOptions{
		ConnectTimeout: 30 * time.Second,
		MaxRetries:     5,
		BaseDelay:      250 * time.Millisecond,
	}
}

// Open creates a pgx pool for dsn and waits until the database answers a ping.
// Ping failures are retried with exponential backoff; an unparseable DSN is not.
// The caller owns the returned pool and must Close it.
func Open(ctx context.Context, dsn string, opts OpenOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultOpenOptions().BaseDelay
	}
	if opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	backoff := retry.WithMaxRetries(opts.MaxRetries, retry.NewExponential(opts.BaseDelay))
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if pingErr := pool.Ping(ctx); pingErr != nil {
			logger.WarnContext(ctx, "database not ready",
				"attempt", attempt,
				"host", cfg.ConnConfig.Host,
				"error", pingErr,
			)
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", attempt).
			Wrap(err)
	}

	logger.InfoContext(ctx, "database connected", "host", cfg.ConnConfig.Host, "attempts", attempt)
	return pool, nil
}

var _ DB = (*pgxpool.Pool)(nil)
