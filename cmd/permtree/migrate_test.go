// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Permtree Contributors

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/permtree/permtree/pkg/errutil"
)

func TestMigrateCommand_Help(t *testing.T) {
	output, err := execute(t, "migrate", "--help")
	require.NoError(t, err)

	for _, sub := range []string{"up", "down", "status"} {
		assert.Contains(t, output, sub, "Help missing %q subcommand", sub)
	}
	assert.Contains(t, output, "--config", "Migrate missing --config flag")
}

func TestMigrateCommand_RequiresPostgresBackend(t *testing.T) {
	for _, sub := range []string{"up", "down", "status"} {
		t.Run(sub, func(t *testing.T) {
			_, err := execute(t, "migrate", sub, "--store.backend=memory")
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "INVALID_CONFIG")
		})
	}
}

func TestMigrateCommand_InvalidDSN(t *testing.T) {
	_, err := execute(t, "migrate", "up",
		"--store.backend=postgres",
		"--store.postgres_dsn=invalid://not-a-real-db")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}
