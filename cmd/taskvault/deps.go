// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

package main

import (
	"context"
	"net"

	"github.com/taskvault/taskvault/internal/observability"
	"github.com/taskvault/taskvault/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// PoolFactory opens the database pool.
	// Default: store.Open
	PoolFactory func(ctx context.Context, url string, opts store.OpenOptions) (Pool, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readiness observability.ReadinessChecker) ObservabilityServer

	// ListenerFactory creates the API listener.
	// Default: net.Listen
	ListenerFactory func(network, address string) (net.Listener, error)
}

// MigrateDeps contains injectable dependencies for the migrate commands.
type MigrateDeps struct {
	// MigratorFactory connects a migrator to the database.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (Migrator, error)
}

// PruneDeps contains injectable dependencies for the prune-tokens command.
type PruneDeps struct {
	// PoolFactory opens the database pool.
	// Default: store.Open
	PoolFactory func(ctx context.Context, url string, opts store.OpenOptions) (Pool, error)
}

// Pool wraps the methods used from *pgxpool.Pool.
type Pool interface {
	store.DB
	Ping(ctx context.Context) error
	Close()
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Rollback() error
	RollbackAll() error
	Status() (store.MigrationStatus, error)
	Close() error
}

func openPool(ctx context.Context, url string, opts store.OpenOptions) (Pool, error) {
	pool, err := store.Open(ctx, url, opts)
	if err != nil {
		return nil, err
	}
	return pool, nil
}

var (
	_ ObservabilityServer = (*observability.Server)(nil)
	_ Migrator            = (*store.Migrator)(nil)
)
