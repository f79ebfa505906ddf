// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Permtree Contributors

package main

import (
	"context"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/permtree/permtree/internal/config"
	"github.com/permtree/permtree/internal/logging"
	"github.com/permtree/permtree/internal/xdg"
	"github.com/permtree/permtree/pkg/store"
	"github.com/permtree/permtree/pkg/store/postgres"
	"github.com/permtree/permtree/pkg/store/redis"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the permtree CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permtree",
		Short: "permtree - tri-state permission resolution for game servers",
		Long: `permtree manages tree-structured permission scopes and resolves
allow/deny/undefined decisions for actors, with wildcard inheritance
and context-conditional grants.`,
	}

	// Global flags. The dotted names mirror the config file structure, so
	// a set flag overrides the corresponding file value.
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	cmd.PersistentFlags().String("store.backend", config.Default().Store.Backend, "store backend: memory, file, postgres, redis")
	cmd.PersistentFlags().String("store.path", config.Default().Store.Path, "permission file for the file backend")
	cmd.PersistentFlags().String("store.postgres_dsn", "", "connection string for the postgres backend")
	cmd.PersistentFlags().String("store.redis_addr", "", "host:port for the redis backend")
	cmd.PersistentFlags().String("log.format", config.Default().Log.Format, "log format: json or text")
	cmd.PersistentFlags().String("log.level", config.Default().Log.Level, "log level: debug, info, warn, error")

	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewKeysCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

// loadConfig resolves the effective configuration for a subcommand and
// installs the configured default logger. Without --config, the XDG
// config file is used when present.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path := configFile
	if path == "" {
		path = xdg.ConfigFile()
	}
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return config.Config{}, err
	}
	logging.SetDefault("permtree", version, cfg.Log.Format, cfg.Log.Level)
	return cfg, nil
}

// openStore constructs the configured store backend. The returned
// cleanup is safe to call unconditionally.
func openStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return store.NewMemoryStore(), func() {}, nil
	case config.BackendFile:
		return store.NewFileStore(cfg.Store.Path), func() {}, nil
	case config.BackendPostgres:
		s, err := postgres.Connect(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, nil, oops.Code("DB_CONNECT_FAILED").Wrap(err)
		}
		return s, s.Close, nil
	case config.BackendRedis:
		s := redis.Connect(cfg.Store.RedisAddr)
		return s, func() { _ = s.Close() }, nil
	default:
		// Validate catches this before openStore runs.
		return nil, nil, oops.Code("INVALID_CONFIG").Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
