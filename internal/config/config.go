// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Permtree Contributors

// Package config loads CLI configuration from a YAML file and command
// line flags, flags taking precedence.
package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Store backend names accepted in configuration.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is the full CLI configuration.
type Config struct {
	Store StoreConfig `koanf:"store"`
	Log   LogConfig   `koanf:"log"`
}

// StoreConfig selects and parameterizes the permission store backend.
type StoreConfig struct {
	// Backend is one of "memory", "file", "postgres", "redis".
	Backend string `koanf:"backend"`
	// Path is the permission file for the file backend.
	Path string `koanf:"path"`
	// PostgresDSN is the connection string for the postgres backend.
	PostgresDSN string `koanf:"postgres_dsn"`
	// RedisAddr is the host:port for the redis backend.
	RedisAddr string `koanf:"redis_addr"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	// Format is "json" or "text".
	Format string `koanf:"format"`
	// Level is "debug", "info", "warn", or "error".
	Level string `koanf:"level"`
}

// Default returns the built-in configuration: file-backed store next to
// the working directory, JSON logs at info.
func Default() Config {
	return Config{
		Store: StoreConfig{
			Backend: BackendFile,
			Path:    "permissions.json",
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
	}
}

// Load reads configuration from path (optional) and overlays the given
// flag set (optional). A missing config file at an explicitly given path
// is an error; an empty path skips file loading.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return Config{}, oops.
				Code("CONFIG_NOT_FOUND").
				With("path", path).
				Wrapf(err, "config file not found")
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.
				Code("CONFIG_PARSE_FAILED").
				With("path", path).
				Wrapf(err, "loading config file")
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, oops.
				Code("CONFIG_PARSE_FAILED").
				Wrapf(err, "loading flags")
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.
			Code("CONFIG_PARSE_FAILED").
			Wrapf(err, "unmarshaling config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks backend selection and its required parameters.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Store.Path == "" {
			return oops.
				Code("INVALID_CONFIG").
				Errorf("file backend requires store.path")
		}
	case BackendPostgres:
		if c.Store.PostgresDSN == "" {
			return oops.
				Code("INVALID_CONFIG").
				Errorf("postgres backend requires store.postgres_dsn")
		}
	case BackendRedis:
		if c.Store.RedisAddr == "" {
			return oops.
				Code("INVALID_CONFIG").
				Errorf("redis backend requires store.redis_addr")
		}
	default:
		return oops.
			Code("INVALID_CONFIG").
			With("backend", c.Store.Backend).
			Errorf("unknown store backend %q", c.Store.Backend)
	}
	return nil
}
