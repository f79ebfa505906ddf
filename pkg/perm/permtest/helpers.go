// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Permtree Contributors

// Package permtest provides test helpers for building permission trees.
package permtest

import (
	"testing"

	"github.com/permtree/permtree/pkg/perm"
)

// TreeOf builds a tree from the given nodes, failing the test on invalid
// keys.
func TreeOf(t *testing.T, nodes ...perm.Node) *perm.Tree {
	t.Helper()
	tree := perm.NewTree()
	for _, n := range nodes {
		if err := tree.Set(n); err != nil {
			t.Fatalf("permtest: set %q: %v", n.Key(), err)
		}
	}
	return tree
}

// World returns a context set scoping a node to a single world.
func World(name string) perm.Set {
	return perm.NewSet(perm.WorldKey, name)
}

// GameMode returns a context set scoping a node to a single game mode.
func GameMode(name string) perm.Set {
	return perm.NewSet(perm.GameModeKey, name)
}

// ScopedDeny builds a deny node for key under the given context.
func ScopedDeny(key string, ctx perm.Set) perm.Node {
	return perm.NewNode(key).Deny().Context(ctx).Build()
}

// ScopedAllow builds an allow node for key under the given context.
func ScopedAllow(key string, ctx perm.Set) perm.Node {
	return perm.NewNode(key).Allow().Context(ctx).Build()
}
