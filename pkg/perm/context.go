// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Permtree Contributors

package perm

import (
	"sort"
	"strings"
)

// Key identifies one dimension of permission applicability, such as the
// world a character is in. The set of keys is open: callers may define
// their own dimensions with NewKey.
type Key struct {
	name string
}

// Built-in context keys shared by most game servers.
var (
	WorldKey    = Key{name: "world"}
	ServerKey   = Key{name: "server"}
	GameModeKey = Key{name: "gamemode"}
)

// NewKey creates a context key with the given name.
// Panics if name is empty, since an unnamed dimension can never match.
func NewKey(name string) Key {
	if name == "" {
		panic("perm.NewKey: empty context key name")
	}
	return Key{name: name}
}

// Name returns the key's name. Keys compare by name.
func (k Key) Name() string {
	return k.name
}

// Set is an immutable mapping from context-key name to value. A Set on a
// Node describes the conditions under which the node applies; a Set passed
// to Query describes the caller's current situation.
type Set struct {
	values map[string]string
}

// EmptySet is the condition-less context: it matches any situation.
// Builder returns it when nothing was added, so callers may compare a
// built set against EmptySet to short-circuit.
var EmptySet = Set{}

// NewSet creates a Set with a single condition.
func NewSet(key Key, value string) Set {
	return NewBuilder().With(key, value).Build()
}

// NewSet2 creates a Set with two conditions.
func NewSet2(k1 Key, v1 string, k2 Key, v2 string) Set {
	return NewBuilder().With(k1, v1).With(k2, v2).Build()
}

// Builder accumulates context conditions for an immutable Set.
type Builder struct {
	values map[string]string
}

// NewBuilder creates an empty context set builder.
func NewBuilder() *Builder {
	return &Builder{values: make(map[string]string)}
}

// With adds a condition. Panics on an empty value: absence is expressed by
// not adding the key, never by an empty pair (programmer error, caught at
// construction rather than at query time).
func (b *Builder) With(key Key, value string) *Builder {
	if key.name == "" {
		panic("perm.Builder.With: zero context key")
	}
	if value == "" {
		panic("perm.Builder.With: empty context value for key " + key.name)
	}
	b.values[key.name] = value
	return b
}

// Build returns the accumulated Set, or EmptySet if nothing was added.
func (b *Builder) Build() Set {
	if len(b.values) == 0 {
		return EmptySet
	}
	values := make(map[string]string, len(b.values))
	for k, v := range b.values {
		values[k] = v
	}
	return Set{values: values}
}

// Get returns the value stored for key.
func (s Set) Get(key Key) (string, bool) {
	v, ok := s.values[key.name]
	return v, ok
}

// Contains reports whether key is present.
func (s Set) Contains(key Key) bool {
	_, ok := s.values[key.name]
	return ok
}

// ContainsValue reports whether key is present with exactly value.
func (s Set) ContainsValue(key Key, value string) bool {
	v, ok := s.values[key.name]
	return ok && v == value
}

// Len returns the number of conditions.
func (s Set) Len() int {
	return len(s.values)
}

// IsEmpty reports whether the set holds no conditions.
func (s Set) IsEmpty() bool {
	return len(s.values) == 0
}

// Matches reports whether every condition in s is satisfied by other:
// each (key, value) of s must be present in other with an equal value.
// Other may carry additional keys. An empty s matches anything.
//
// This is subsumption, not equality, and it is deliberately asymmetric:
// "permission is scoped by s, the caller's situation is described by
// other". It is the single load-bearing predicate of the resolution
// algorithm.
func (s Set) Matches(other Set) bool {
	if len(s.values) == 0 {
		return true
	}
	if len(s.values) > len(other.values) {
		return false
	}
	for k, v := range s.values {
		if ov, ok := other.values[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Equal reports whether two sets hold exactly the same conditions.
func (s Set) Equal(other Set) bool {
	if len(s.values) != len(other.values) {
		return false
	}
	return s.Matches(other)
}

// Pairs returns the conditions as a plain map, for serialization at the
// storage boundary. Returns nil for the empty set.
func (s Set) Pairs() map[string]string {
	if len(s.values) == 0 {
		return nil
	}
	pairs := make(map[string]string, len(s.values))
	for k, v := range s.values {
		pairs[k] = v
	}
	return pairs
}

// SetFromPairs reconstructs a Set from a plain map, the inverse of Pairs.
// Empty keys or values are rejected by the builder's construction checks.
func SetFromPairs(pairs map[string]string) Set {
	if len(pairs) == 0 {
		return EmptySet
	}
	b := NewBuilder()
	for k, v := range pairs {
		b.With(NewKey(k), v)
	}
	return b.Build()
}

func (s Set) String() string {
	if len(s.values) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(s.values[k])
	}
	sb.WriteByte('}')
	return sb.String()
}
