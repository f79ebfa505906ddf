// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Permtree Contributors

// Package store defines the storage SPI for permission nodes.
//
// Backends persist permission scopes as ordered lists of Record tuples:
// (key, tristate name, optional payload, optional context map). Insertion
// order is significant — the trie's matching rule gives the newest entry
// precedence, so a backend that reorders records changes resolution
// outcomes.
//
// Scope names identify whose permissions a list holds:
//   - "default" — server-wide defaults
//   - "group:<name>" — a permission group
//   - "actor:<ulid>" — one actor's personal overrides
package store

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/permtree/permtree/pkg/perm"
)

// Scope name constants and prefixes.
const (
	ScopeDefault = "default"
	ScopeGroup   = "group:"
	ScopeActor   = "actor:"
)

// GroupScope returns the scope name for a permission group.
// Panics if name is empty, since an empty scope can never be loaded back.
func GroupScope(name string) string {
	if name == "" {
		panic("store.GroupScope: empty group name")
	}
	return ScopeGroup + name
}

// ActorScope returns the scope name for an actor's personal overrides.
func ActorScope(id ulid.ULID) string {
	return ScopeActor + id.String()
}

// Record is the persisted form of a permission node. Payload must be a
// JSON-serializable value; backends round-trip it through their own
// encoding, so integer payloads may come back as float64.
type Record struct {
	Key     string            `json:"key" yaml:"key"`
	State   string            `json:"state" yaml:"state"`
	Payload any               `json:"payload,omitempty" yaml:"payload,omitempty"`
	Context map[string]string `json:"context,omitempty" yaml:"context,omitempty"`
}

// RecordOf converts a node into its persisted tuple form.
func RecordOf(n perm.Node) Record {
	return Record{
		Key:     n.Key(),
		State:   n.State().String(),
		Payload: n.Payload(),
		Context: n.Context().Pairs(),
	}
}

// RecordsOf converts a whole tree, preserving entry order.
func RecordsOf(tree *perm.Tree) []Record {
	nodes := tree.Nodes()
	records := make([]Record, 0, len(nodes))
	for _, n := range nodes {
		records = append(records, RecordOf(n))
	}
	return records
}

// Node reconstructs the permission node a record describes. Returns an
// INVALID_PERMISSION_RECORD error for an unknown state name or an empty
// key.
func (r Record) Node() (perm.Node, error) {
	if r.Key == "" {
		return perm.Node{}, oops.
			Code("INVALID_PERMISSION_RECORD").
			Errorf("record has empty permission key")
	}
	state, err := perm.ParseTristate(r.State)
	if err != nil {
		return perm.Node{}, oops.
			Code("INVALID_PERMISSION_RECORD").
			With("key", r.Key).
			With("state", r.State).
			Wrap(err)
	}
	return perm.NewNode(r.Key).
		State(state).
		Payload(r.Payload).
		Context(perm.SetFromPairs(r.Context)).
		Build(), nil
}

// Store persists ordered permission records per scope. Implementations
// must preserve record order across Save/Load and keep Append ordering
// consistent with it.
type Store interface {
	// Load returns the records of a scope in insertion order.
	// Returns a SCOPE_NOT_FOUND error for scopes never saved to.
	Load(ctx context.Context, scope string) ([]Record, error)

	// Save replaces the records of a scope.
	Save(ctx context.Context, scope string, records []Record) error

	// Append adds a record to the end of a scope, creating the scope if
	// needed.
	Append(ctx context.Context, scope string, record Record) error

	// Remove deletes every record with the given key from a scope,
	// mirroring Tree.Remove clearing all contexts at a key.
	Remove(ctx context.Context, scope, key string) error

	// Scopes lists every stored scope name, sorted.
	Scopes(ctx context.Context) ([]string, error)
}

// TreeFromRecords builds a tree by setting each record's node in order.
func TreeFromRecords(records []Record) (*perm.Tree, error) {
	tree := perm.NewTree()
	for _, r := range records {
		node, err := r.Node()
		if err != nil {
			return nil, err
		}
		if err := tree.Set(node); err != nil {
			return nil, err
		}
	}
	return tree, nil
}

// ErrScopeNotFound constructs the canonical missing-scope error.
func ErrScopeNotFound(scope string) error {
	return oops.
		Code("SCOPE_NOT_FOUND").
		With("scope", scope).
		Errorf("permission scope %q not found", scope)
}

// IsScopeNotFound reports whether err is a SCOPE_NOT_FOUND error.
func IsScopeNotFound(err error) bool {
	if err == nil {
		return false
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return false
	}
	return oopsErr.Code() == "SCOPE_NOT_FOUND"
}
