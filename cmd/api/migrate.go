// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/taibuivan/fitclub/internal/platform/config"
	"github.com/taibuivan/fitclub/internal/platform/migration"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, err := newMigrationRunner()
			if err != nil {
				return err
			}
			return runner.Up()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				parsed, err := strconv.Atoi(args[0])
				if err != nil || parsed < 1 {
					return fmt.Errorf("steps must be a positive integer, got %q", args[0])
				}
				steps = parsed
			}

			runner, err := newMigrationRunner()
			if err != nil {
				return err
			}
			return runner.Down(steps)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Mark a version as applied and clear the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("version must be an integer, got %q", args[0])
			}

			runner, err := newMigrationRunner()
			if err != nil {
				return err
			}
			return runner.Force(version)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, err := newMigrationRunner()
			if err != nil {
				return err
			}

			version, dirty, err := runner.Version()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
			return nil
		},
	})

	return cmd
}

func newMigrationRunner() (*migration.Runner, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required for migrations")
	}

	return migration.NewRunner(cfg.DatabaseURL, cfg.MigrationPath, newLogger(cfg.Debug)), nil
}
