// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Permtree Contributors

package perm

import (
	"fmt"
	"reflect"
)

// Node is the atomic unit stored in a Tree: a dot-segmented key, a
// Tristate decision, an optional payload, and the context conditions under
// which the decision applies. Nodes are immutable value objects and may be
// freely shared between trees.
//
// A node's context describes when it applies, not where it is stored: the
// tree path is determined purely by the key. Several nodes may coexist at
// the same key with different contexts.
type Node struct {
	key     string
	state   Tristate
	payload any
	context Set
}

// AllowNode creates an unconditional allow node for key.
func AllowNode(key string) Node {
	return Node{key: mustKey(key), state: Allow}
}

// DenyNode creates an unconditional deny node for key.
func DenyNode(key string) Node {
	return Node{key: mustKey(key), state: Deny}
}

// AllowValue creates an allow node carrying a payload, used instead of
// encoding limits into the key string ("plots.limit" with payload 5 rather
// than "plots.limit.5").
func AllowValue(key string, payload any) Node {
	return Node{key: mustKey(key), state: Allow, payload: payload}
}

// DenyValue creates a deny node carrying a payload; a denial may carry a
// reason value.
func DenyValue(key string, payload any) Node {
	return Node{key: mustKey(key), state: Deny, payload: payload}
}

// mustKey rejects empty keys at construction. An empty key can never be
// stored or resolved, so this is a broken caller, not a runtime condition.
func mustKey(key string) string {
	if key == "" {
		panic("perm: empty permission key")
	}
	return key
}

// Key returns the node's dot-segmented permission key.
func (n Node) Key() string {
	return n.key
}

// State returns the node's decision.
func (n Node) State() Tristate {
	return n.state
}

// Payload returns the node's payload, nil if none.
func (n Node) Payload() any {
	return n.payload
}

// Context returns the conditions under which the node applies.
// The zero context is EmptySet: the node is unconditional.
func (n Node) Context() Set {
	return n.context
}

// AppliesIn reports whether the node's conditions subsume the caller's
// current context.
func (n Node) AppliesIn(current Set) bool {
	return n.context.Matches(current)
}

// ToResult converts the node into the query result it would produce.
func (n Node) ToResult() Result {
	return Result{state: n.state, payload: n.payload}
}

// WithState returns a copy of the node with a different state.
func (n Node) WithState(state Tristate) Node {
	n.state = state
	return n
}

// WithPayload returns a copy of the node with a different payload.
func (n Node) WithPayload(payload any) Node {
	n.payload = payload
	return n
}

// WithContext returns a copy of the node with different conditions.
func (n Node) WithContext(context Set) Node {
	n.context = context
	return n
}

// Equal reports structural equality over key, state, payload, and context.
func (n Node) Equal(other Node) bool {
	return n.key == other.key &&
		n.state == other.state &&
		n.context.Equal(other.context) &&
		reflect.DeepEqual(n.payload, other.payload)
}

func (n Node) String() string {
	return fmt.Sprintf("%s=%s ctx=%s", n.key, n.state, n.context)
}

// NodeBuilder assembles a Node field by field.
type NodeBuilder struct {
	node Node
}

// NewNode starts a builder for key. Panics on an empty key.
func NewNode(key string) *NodeBuilder {
	return &NodeBuilder{node: Node{key: mustKey(key)}}
}

// State sets the decision.
func (b *NodeBuilder) State(state Tristate) *NodeBuilder {
	b.node.state = state
	return b
}

// Allow sets the decision to Allow.
func (b *NodeBuilder) Allow() *NodeBuilder {
	return b.State(Allow)
}

// Deny sets the decision to Deny.
func (b *NodeBuilder) Deny() *NodeBuilder {
	return b.State(Deny)
}

// Payload attaches a payload value.
func (b *NodeBuilder) Payload(payload any) *NodeBuilder {
	b.node.payload = payload
	return b
}

// Context scopes the node to the given conditions.
func (b *NodeBuilder) Context(context Set) *NodeBuilder {
	b.node.context = context
	return b
}

// Build returns the assembled immutable node.
func (b *NodeBuilder) Build() Node {
	return b.node
}
