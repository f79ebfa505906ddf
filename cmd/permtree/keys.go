// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Permtree Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/permtree/permtree/pkg/store"
)

// keysConfig holds flags for the keys subcommand.
type keysConfig struct {
	match string
}

// NewKeysCmd creates the keys subcommand.
func NewKeysCmd() *cobra.Command {
	cfg := &keysConfig{}

	cmd := &cobra.Command{
		Use:   "keys <scope>",
		Short: "List the permission keys defined in a scope",
		Long: `Lists every key that carries at least one entry in the given scope
("default", "group:<name>", or "actor:<ulid>"), sorted. With --match,
only keys matching the dot-separated glob pattern are listed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeys(cmd, args, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.match, "match", "", "glob pattern over keys, e.g. 'cmd.*'")

	return cmd
}

func runKeys(cmd *cobra.Command, args []string, cfg *keysConfig) error {
	appCfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	scope := args[0]

	ctx := cmd.Context()
	s, cleanup, err := openStore(ctx, appCfg)
	if err != nil {
		return err
	}
	defer cleanup()

	records, err := s.Load(ctx, scope)
	if err != nil {
		return oops.With("scope", scope).Wrapf(err, "loading scope")
	}
	tree, err := store.TreeFromRecords(records)
	if err != nil {
		return oops.With("scope", scope).Wrapf(err, "building tree")
	}

	keys := tree.Keys()
	if cfg.match != "" {
		keys, err = tree.KeysMatching(cfg.match)
		if err != nil {
			return err
		}
	}
	for _, key := range keys {
		cmd.Println(key)
	}
	return nil
}
