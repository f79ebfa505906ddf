// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Permtree Contributors

package postgres

import (
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMigrate implements migrateIface with scripted results.
type fakeMigrate struct {
	upErr      error
	downErr    error
	version    uint
	dirty      bool
	versionErr error
	srcErr     error
	dbErr      error
}

func (f *fakeMigrate) Up() error   { return f.upErr }
func (f *fakeMigrate) Down() error { return f.downErr }
func (f *fakeMigrate) Version() (uint, bool, error) {
	return f.version, f.dirty, f.versionErr
}
func (f *fakeMigrate) Close() (error, error) { return f.srcErr, f.dbErr }

func TestMigrator_UpSwallowsNoChange(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{upErr: migrate.ErrNoChange}}
	assert.NoError(t, m.Up())

	m = &Migrator{m: &fakeMigrate{upErr: assert.AnError}}
	err := m.Up()
	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok)
	assert.Equal(t, "MIGRATION_UP_FAILED", oopsErr.Code())
}

func TestMigrator_DownSwallowsNoChange(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{downErr: migrate.ErrNoChange}}
	assert.NoError(t, m.Down())

	m = &Migrator{m: &fakeMigrate{downErr: assert.AnError}}
	require.Error(t, m.Down())
}

func TestMigrator_VersionNilIsZero(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}
	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.False(t, dirty)

	m = &Migrator{m: &fakeMigrate{version: 3, dirty: true}}
	version, dirty, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(3), version)
	assert.True(t, dirty)
}

func TestMigrator_Close(t *testing.T) {
	assert.NoError(t, (&Migrator{m: &fakeMigrate{}}).Close())
	require.Error(t, (&Migrator{m: &fakeMigrate{srcErr: assert.AnError}}).Close())
	require.Error(t, (&Migrator{m: &fakeMigrate{dbErr: assert.AnError}}).Close())

	err := (&Migrator{m: &fakeMigrate{srcErr: assert.AnError, dbErr: assert.AnError}}).Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source:")
	assert.Contains(t, err.Error(), "database:")
}

func TestMigrationsFS_UpDownPairs(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := make(map[string]bool)
	downs := make(map[string]bool)
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected migration file %q", name)
		}
	}
	assert.Equal(t, ups, downs, "every up migration needs a matching down")
}
