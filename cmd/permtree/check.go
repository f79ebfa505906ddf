// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Permtree Contributors

package main

import (
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/permtree/permtree/pkg/perm"
	"github.com/permtree/permtree/pkg/resolver"
)

// checkConfig holds flags for the check subcommand.
type checkConfig struct {
	groups   []string
	contexts []string
}

// NewCheckCmd creates the check subcommand.
func NewCheckCmd() *cobra.Command {
	cfg := &checkConfig{}

	cmd := &cobra.Command{
		Use:   "check <actor-ulid> <permission-key>",
		Short: "Resolve a permission key for an actor",
		Long: `Resolves a permission key against the actor's flattened scopes:
server defaults, then each --group in order, then the actor's personal
overrides. Prints the resolved state and payload.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args, cfg)
		},
	}

	cmd.Flags().StringSliceVar(&cfg.groups, "group", nil, "group membership, lowest priority first (repeatable)")
	cmd.Flags().StringArrayVar(&cfg.contexts, "context", nil, "context pair key=value (repeatable)")

	return cmd
}

func runCheck(cmd *cobra.Command, args []string, cfg *checkConfig) error {
	appCfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	actorID, err := ulid.Parse(args[0])
	if err != nil {
		return oops.Code("INVALID_ACTOR_ID").With("actor", args[0]).Wrap(err)
	}
	key := args[1]

	cset, err := parseContextPairs(cfg.contexts)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, cleanup, err := openStore(ctx, appCfg)
	if err != nil {
		return err
	}
	defer cleanup()

	r := resolver.New(s)
	result, err := r.Query(ctx, resolver.Actor{ID: actorID, Groups: cfg.groups}, key, cset)
	if err != nil {
		return oops.With("key", key).Wrapf(err, "resolving permission")
	}

	cmd.Printf("%s: %s\n", key, result.State())
	if result.Payload() != nil {
		cmd.Printf("payload: %v\n", result.Payload())
	}
	return nil
}

// parseContextPairs converts repeated key=value flags into a context set.
func parseContextPairs(pairs []string) (perm.Set, error) {
	if len(pairs) == 0 {
		return perm.EmptySet, nil
	}
	b := perm.NewBuilder()
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" || value == "" {
			return perm.EmptySet, oops.
				Code("INVALID_CONTEXT_PAIR").
				With("pair", pair).
				Errorf("context pair must be key=value")
		}
		b = b.With(perm.NewKey(name), value)
	}
	return b.Build(), nil
}
