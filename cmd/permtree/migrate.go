// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Permtree Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/permtree/permtree/internal/config"
	"github.com/permtree/permtree/pkg/store/postgres"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the postgres schema",
		Long:  `Apply, roll back, or inspect the permission schema migrations.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE:  runMigrateUp,
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			RunE:  runMigrateDown,
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the current schema version",
			RunE:  runMigrateStatus,
		},
	)

	return cmd
}

// openMigrator builds a Migrator from the configured postgres DSN.
// The migrate command only makes sense for the postgres backend.
func openMigrator(cmd *cobra.Command) (*postgres.Migrator, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.Store.Backend != config.BackendPostgres {
		return nil, oops.
			Code("INVALID_CONFIG").
			With("backend", cfg.Store.Backend).
			Errorf("migrate requires the postgres backend")
	}
	return postgres.NewMigrator(cfg.Store.PostgresDSN)
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	m, err := openMigrator(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	cmd.Println("Running migrations...")
	if err := m.Up(); err != nil {
		return err
	}
	cmd.Println("Migrations completed successfully")
	return nil
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	m, err := openMigrator(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	cmd.Println("Rolling back migrations...")
	if err := m.Down(); err != nil {
		return err
	}
	cmd.Println("Rollback completed successfully")
	return nil
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	m, err := openMigrator(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if version == 0 {
		cmd.Println("No migrations applied")
		return nil
	}
	cmd.Printf("Schema version: %d (dirty: %v)\n", version, dirty)
	return nil
}
