// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/taskvault/taskvault/internal/auth"
	authpg "github.com/taskvault/taskvault/internal/auth/postgres"
	"github.com/taskvault/taskvault/internal/config"
	"github.com/taskvault/taskvault/internal/observability"
	"github.com/taskvault/taskvault/internal/store"
)

// NewPruneTokensCmd creates the prune-tokens subcommand.
func NewPruneTokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune-tokens",
		Short: "Delete expired refresh and reset tokens",
		Long: `Delete every stored refresh or reset token whose expiry has passed.
Live sessions are not affected.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runPruneWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}
}

func runPruneWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *PruneDeps) error {
	if deps == nil {
		deps = &PruneDeps{}
	}
	if deps.PoolFactory == nil {
		deps.PoolFactory = openPool
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}

	pool, err := deps.PoolFactory(ctx, cfg.Database.URL, store.DefaultOpenOptions())
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	n, err := pruneExpiredTokens(ctx, authpg.NewTokenRepository(pool), nil, slog.Default())
	if err != nil {
		return err
	}
	cmd.Printf("Deleted %d expired tokens\n", n)
	return nil
}

// pruneExpiredTokens deletes expired tokens once. metrics may be nil.
func pruneExpiredTokens(
	ctx context.Context,
	tokens auth.TokenRepository,
	metrics *observability.Metrics,
	logger *slog.Logger,
) (int64, error) {
	n, err := tokens.DeleteExpired(ctx)
	if err != nil {
		return 0, oops.Code("TOKEN_PRUNE_FAILED").Wrap(err)
	}
	if metrics != nil {
		metrics.TokensPrunedTotal.Add(float64(n))
	}
	logger.InfoContext(ctx, "expired tokens pruned", "count", n)
	return n, nil
}

// runPruneLoop prunes every interval until ctx is done. Failures are logged
// and retried on the next tick.
func runPruneLoop(
	ctx context.Context,
	interval time.Duration,
	tokens auth.TokenRepository,
	metrics *observability.Metrics,
	logger *slog.Logger,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := pruneExpiredTokens(ctx, tokens, metrics, logger); err != nil {
				logger.WarnContext(ctx, "token pruning failed", "error", err)
			}
		}
	}
}
