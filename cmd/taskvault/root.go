// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/taskvault/taskvault/internal/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the TaskVault CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taskvault",
		Short: "TaskVault - personal todo lists behind JWT sessions",
		Long: `TaskVault serves a JSON API for user accounts and per-user todo lists.
Sessions use short-lived access tokens and a refresh token cookie backed
by PostgreSQL.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewPruneTokensCmd())

	return cmd
}

// loadConfig reads configuration for cmd, letting its changed flags win.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(configFile, cmd.Flags())
}
