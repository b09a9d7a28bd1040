// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/taskvault/taskvault/internal/config"
	"github.com/taskvault/taskvault/internal/store"
)

// NewMigrateCmd creates the migrate command group.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmd(nil)
}

func newMigrateCmd(deps *MigrateDeps) *cobra.Command {
	if deps == nil {
		deps = &MigrateDeps{}
	}
	if deps.MigratorFactory == nil {
		deps.MigratorFactory = func(url string) (Migrator, error) {
			m, err := store.NewMigrator(url)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back or inspect the PostgreSQL schema migrations.`,
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				cmd.Println("Running migrations...")
				if err := m.Up(); err != nil {
					return err
				}
				cmd.Println("Migrations completed successfully")
				return nil
			})
		},
	}

	var all bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Long: `Roll back the most recent migration. With --all every migration is
rolled back and all TaskVault data is dropped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				if all {
					cmd.Println("Rolling back all migrations...")
					return m.RollbackAll()
				}
				cmd.Println("Rolling back one migration...")
				return m.Rollback()
			})
		},
	}
	down.Flags().BoolVar(&all, "all", false, "roll back every migration")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				return printStatus(cmd, m)
			})
		},
	}

	cmd.AddCommand(up, down, status)
	return cmd
}

func withMigrator(cmd *cobra.Command, deps *MigrateDeps, fn func(Migrator) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return runWithMigrator(cfg, deps, fn)
}

func runWithMigrator(cfg *config.Config, deps *MigrateDeps, fn func(Migrator) error) (err error) {
	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}

	m, err := deps.MigratorFactory(cfg.Database.URL)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").With("operation", "connect migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return fn(m)
}

func printStatus(cmd *cobra.Command, m Migrator) error {
	status, err := m.Status()
	if err != nil {
		return err
	}

	cmd.Printf("Current version: %d\n", status.Version)
	if status.Dirty {
		cmd.Println("WARNING: the last migration failed midway; repair the schema and clear the dirty flag in schema_migrations")
	}
	for _, mig := range status.Applied {
		cmd.Printf("Applied: %s\n", mig)
	}
	for _, mig := range status.Pending {
		cmd.Printf("Pending: %s\n", mig)
	}
	if status.UpToDate() {
		cmd.Println("Database is up to date")
	}
	return nil
}
