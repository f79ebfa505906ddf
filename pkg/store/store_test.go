// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Permtree Contributors

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/permtree/permtree/pkg/perm"
	"github.com/permtree/permtree/pkg/perm/permtest"
)

func TestRecordOf(t *testing.T) {
	node := perm.NewNode("ability.fly").
		Deny().
		Payload("grounded").
		Context(perm.NewSet(perm.WorldKey, "survival")).
		Build()

	r := RecordOf(node)
	assert.Equal(t, "ability.fly", r.Key)
	assert.Equal(t, "deny", r.State)
	assert.Equal(t, "grounded", r.Payload)
	assert.Equal(t, map[string]string{"world": "survival"}, r.Context)

	// Unconditional nodes omit the context map entirely.
	plain := RecordOf(perm.AllowNode("cmd.teleport"))
	assert.Nil(t, plain.Context)
	assert.Nil(t, plain.Payload)
}

func TestRecordsOf_PreservesEntryOrder(t *testing.T) {
	tree := permtest.TreeOf(t,
		perm.AllowNode("cmd.fly"),
		permtest.ScopedDeny("cmd.fly", permtest.World("survival")),
		permtest.ScopedAllow("cmd.duel", permtest.GameMode("hardcore")),
	)

	records := RecordsOf(tree)
	require.Len(t, records, 3)

	// Keys come back in sorted trie order; entries at one key keep their
	// insertion order, which the matching rule depends on.
	assert.Equal(t, "cmd.duel", records[0].Key)
	assert.Equal(t, map[string]string{"gamemode": "hardcore"}, records[0].Context)
	assert.Equal(t, "cmd.fly", records[1].Key)
	assert.Equal(t, "allow", records[1].State)
	assert.Equal(t, "cmd.fly", records[2].Key)
	assert.Equal(t, map[string]string{"world": "survival"}, records[2].Context)

	// The round trip back through TreeFromRecords keeps the scoped deny
	// winning in its world.
	rebuilt, err := TreeFromRecords(records)
	require.NoError(t, err)
	assert.True(t, rebuilt.Query("cmd.fly", permtest.World("survival")).IsDenied())
	assert.True(t, rebuilt.Query("cmd.fly", permtest.World("creative")).IsAllowed())
}

func TestRecord_Node(t *testing.T) {
	r := Record{
		Key:     "plots.limit",
		State:   "allow",
		Payload: 5,
		Context: map[string]string{"world": "survival"},
	}
	node, err := r.Node()
	require.NoError(t, err)
	assert.Equal(t, "plots.limit", node.Key())
	assert.Equal(t, perm.Allow, node.State())
	assert.Equal(t, 5, node.Payload())
	assert.True(t, node.Context().ContainsValue(perm.WorldKey, "survival"))
}

func TestRecord_NodeInvalid(t *testing.T) {
	tests := []struct {
		name   string
		record Record
	}{
		{"empty key", Record{State: "allow"}},
		{"unknown state", Record{Key: "cmd.fly", State: "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.record.Node()
			require.Error(t, err)
			oopsErr, ok := oops.AsOops(err)
			require.True(t, ok)
			assert.Equal(t, "INVALID_PERMISSION_RECORD", oopsErr.Code())
		})
	}
}

func TestTreeFromRecords_PreservesOrder(t *testing.T) {
	records := []Record{
		{Key: "cmd.fly", State: "deny"},
		{Key: "cmd.fly", State: "allow"},
	}
	tree, err := TreeFromRecords(records)
	require.NoError(t, err)
	assert.True(t, tree.Has("cmd.fly"), "later record must win")

	_, err = TreeFromRecords([]Record{{Key: "bad..key", State: "allow"}})
	require.Error(t, err)
}

func TestScopeHelpers(t *testing.T) {
	assert.Equal(t, "group:builders", GroupScope("builders"))
	assert.Panics(t, func() { GroupScope("") })

	id := ulid.MustParse("01HZXW00000000000000000000")
	assert.Equal(t, "actor:"+id.String(), ActorScope(id))
}

func TestIsScopeNotFound(t *testing.T) {
	assert.True(t, IsScopeNotFound(ErrScopeNotFound("default")))
	assert.False(t, IsScopeNotFound(nil))
	assert.False(t, IsScopeNotFound(oops.Code("STORE_IO").Errorf("boom")))
}

// runStoreConformance exercises the Store contract shared by every
// backend: ordering, replace-on-save, append, remove-by-key, missing
// scopes, and scope listing.
func runStoreConformance(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Load(ctx, "default")
	require.Error(t, err)
	assert.True(t, IsScopeNotFound(err))

	records := []Record{
		{Key: "cmd.fly", State: "deny"},
		{Key: "cmd.fly", State: "allow", Context: map[string]string{"world": "creative"}},
		{Key: "plots.limit", State: "allow", Payload: 5},
	}
	require.NoError(t, s.Save(ctx, "default", records))

	loaded, err := s.Load(ctx, "default")
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	assert.Equal(t, "cmd.fly", loaded[0].Key)
	assert.Equal(t, "deny", loaded[0].State)
	assert.Equal(t, map[string]string{"world": "creative"}, loaded[1].Context)

	require.NoError(t, s.Append(ctx, "default", Record{Key: "cmd.kick", State: "allow"}))
	loaded, err = s.Load(ctx, "default")
	require.NoError(t, err)
	require.Len(t, loaded, 4)
	assert.Equal(t, "cmd.kick", loaded[3].Key, "append goes to the end")

	// Remove clears every record at the key, across contexts.
	require.NoError(t, s.Remove(ctx, "default", "cmd.fly"))
	loaded, err = s.Load(ctx, "default")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "plots.limit", loaded[0].Key)

	require.Error(t, s.Remove(ctx, "missing", "cmd.fly"))

	require.NoError(t, s.Save(ctx, GroupScope("builders"), []Record{{Key: "build.place", State: "allow"}}))
	scopes, err := s.Scopes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "group:builders"}, scopes)

	// Save replaces, never merges.
	require.NoError(t, s.Save(ctx, "default", []Record{{Key: "chat.say", State: "allow"}}))
	loaded, err = s.Load(ctx, "default")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "chat.say", loaded[0].Key)
}

func TestMemoryStore_Conformance(t *testing.T) {
	runStoreConformance(t, NewMemoryStore())
}

func TestFileStore_Conformance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permissions.json")
	runStoreConformance(t, NewFileStore(path))
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "permissions.json")

	first := NewFileStore(path)
	require.NoError(t, first.Save(ctx, "default", []Record{
		{Key: "plots.limit", State: "allow", Payload: 5},
	}))

	second := NewFileStore(path)
	loaded, err := second.Load(ctx, "default")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	// JSON round-trips numbers as float64.
	assert.InDelta(t, 5.0, loaded[0].Payload, 0.0001)
}

func TestFileStore_MissingFileReadsEmpty(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "never-written.json"))
	scopes, err := s.Scopes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, scopes)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permissions.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path).Load(context.Background(), "default")
	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok)
	assert.Equal(t, "STORE_IO", oopsErr.Code())
}

func TestMemoryStore_LoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Save(ctx, "default", []Record{{Key: "cmd.fly", State: "allow"}}))

	loaded, err := s.Load(ctx, "default")
	require.NoError(t, err)
	loaded[0].State = "deny"

	again, err := s.Load(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "allow", again[0].State)
}
