// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Permtree Contributors

package main

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/permtree/permtree/internal/seed"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedConfig holds flags for the seed subcommand.
type seedConfig struct {
	timeout time.Duration
	dryRun  bool
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed <seed-file>",
		Short: "Load permission scopes from a YAML seed file",
		Long: `Loads a YAML seed document and replaces each seeded scope in the
configured store. Scopes absent from the document are untouched, so
reseeding defaults never clobbers personal overrides.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, args, cfg)
		},
	}

	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for store operations (e.g., 30s, 1m)")
	cmd.Flags().BoolVar(&cfg.dryRun, "dry-run", false, "validate the seed file without writing")

	return cmd
}

func runSeed(cmd *cobra.Command, args []string, cfg *seedConfig) error {
	appCfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	doc, err := seed.ParseFile(args[0])
	if err != nil {
		return err
	}
	cmd.Printf("Parsed %d records across %d scopes\n", doc.RecordCount(), len(doc.Scopes))

	if cfg.dryRun {
		cmd.Println("Dry run: store not modified")
		return nil
	}

	// Use cmd.Context() to respect SIGINT/SIGTERM signals.
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	s, cleanup, err := openStore(ctx, appCfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := doc.Apply(ctx, s); err != nil {
		return oops.With("seed_file", args[0]).Wrap(err)
	}

	cmd.Println("Seeding complete")
	return nil
}
