// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Permtree Contributors

package perm

import (
	"sort"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Wildcard is the literal path segment matching any remaining sub-path.
// It is stored as an ordinary trie child under this key, which keeps
// wildcard resolution uniform with plain traversal.
const Wildcard = "*"

// trieNode is one level of the prefix tree. Each node independently
// guards its children map and entry list, so a query racing a concurrent
// set or remove observes either the pre- or post-mutation state of any
// single node, never torn data. Cross-node atomicity is not provided: a
// query may see a partially created multi-segment path and resolve
// Undefined, a benign race.
type trieNode struct {
	mu       sync.RWMutex
	children map[string]*trieNode
	entries  []Node
}

func newTrieNode() *trieNode {
	return &trieNode{}
}

// child returns the child at segment, nil if absent.
func (t *trieNode) child(segment string) *trieNode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.children[segment]
}

// childOrCreate returns the child at segment, creating it if absent.
func (t *trieNode) childOrCreate(segment string) *trieNode {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.children[segment]; ok {
		return c
	}
	if t.children == nil {
		t.children = make(map[string]*trieNode)
	}
	c := newTrieNode()
	t.children[segment] = c
	return c
}

// append adds a node to the entry list. Entries accumulate; insertion
// order is what the matching rule later scans in reverse.
func (t *trieNode) append(node Node) {
	t.mu.Lock()
	t.entries = append(t.entries, node)
	t.mu.Unlock()
}

// clearEntries drops every entry regardless of context, reporting whether
// any were present.
func (t *trieNode) clearEntries() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	had := len(t.entries) > 0
	t.entries = nil
	return had
}

// findMatching scans the entry list from the last-inserted entry backward
// and returns the result of the first entry whose conditions subsume the
// caller's context. Among several nodes stored at the same key, the most
// recently set one that matches the caller's situation wins: last write
// wins per matching context, not globally.
func (t *trieNode) findMatching(context Set) Result {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].AppliesIn(context) {
			return t.entries[i].ToResult()
		}
	}
	return UndefinedResult
}

// Tree stores Nodes in a prefix tree keyed by the dot-separated segments
// of their permission keys and resolves queries against them. The zero
// value is not usable; create trees with NewTree or Flatten.
//
// A Tree is safe for concurrent use: queries may race mutations without
// external synchronization, subject to the per-node guarantees described
// on trieNode.
type Tree struct {
	root *trieNode
}

// NewTree creates an empty permission tree.
func NewTree() *Tree {
	return &Tree{root: newTrieNode()}
}

// splitKey validates a key and splits it into its path segments. Keys
// with leading, trailing, or doubled dots are rejected rather than
// silently creating empty-segment children.
func splitKey(key string) ([]string, error) {
	if key == "" {
		return nil, oops.
			Code("INVALID_PERMISSION_KEY").
			With("key", key).
			Errorf("empty permission key")
	}
	segments := strings.Split(key, ".")
	for _, s := range segments {
		if s == "" {
			return nil, oops.
				Code("INVALID_PERMISSION_KEY").
				With("key", key).
				Errorf("permission key %q contains an empty segment", key)
		}
	}
	return segments, nil
}

// Set stores node under its key. Repeated calls with the same key never
// evict prior entries; they accumulate and are disambiguated by context at
// query time. Returns an INVALID_PERMISSION_KEY error for keys with empty
// segments.
func (t *Tree) Set(node Node) error {
	segments, err := splitKey(node.Key())
	if err != nil {
		return err
	}
	current := t.root
	for _, segment := range segments {
		current = current.childOrCreate(segment)
	}
	current.append(node)
	return nil
}

// Allow stores an unconditional allow node for key.
func (t *Tree) Allow(key string) error {
	return t.Set(AllowNode(key))
}

// Deny stores an unconditional deny node for key.
func (t *Tree) Deny(key string) error {
	return t.Set(DenyNode(key))
}

// Remove clears the entire entry list at key, regardless of the contexts
// of the stored nodes, and reports whether anything was removed. A missing
// or malformed key is not an error.
func (t *Tree) Remove(key string) bool {
	segments, err := splitKey(key)
	if err != nil {
		return false
	}
	current := t.root
	for _, segment := range segments {
		current = current.child(segment)
		if current == nil {
			return false
		}
	}
	return current.clearEntries()
}

// Query resolves key against the tree under the caller's context and
// returns the decision together with the payload of the node that made
// it.
//
// Resolution walks the key's segments from the root. At each level a
// wildcard child's entries are evaluated first; a defined outcome
// overwrites the wildcard fallback seen so far, so the deepest (most
// specific) wildcard wins. If the path runs out before the key is
// consumed the best wildcard seen so far answers. When the exact path is
// consumed, the terminal node's own entries take precedence, then a
// trailing wildcard child ("cmd.teleport" answered by a stored
// "cmd.teleport.*"), then the wildcard fallback. With nothing defined the
// result is Undefined.
func (t *Tree) Query(key string, context Set) Result {
	segments, err := splitKey(key)
	if err != nil {
		return UndefinedResult
	}

	wildcardResult := UndefinedResult
	current := t.root
	for _, segment := range segments {
		if wc := current.child(Wildcard); wc != nil {
			if r := wc.findMatching(context); r.State().Defined() {
				wildcardResult = r
			}
		}
		next := current.child(segment)
		if next == nil {
			return wildcardResult
		}
		current = next
	}

	if r := current.findMatching(context); r.State().Defined() {
		return r
	}
	if wc := current.child(Wildcard); wc != nil {
		if r := wc.findMatching(context); r.State().Defined() {
			return r
		}
	}
	return wildcardResult
}

// Has reports whether key resolves to Allow with no context conditions.
func (t *Tree) Has(key string) bool {
	return t.Query(key, EmptySet).IsAllowed()
}

// HasIn reports whether key resolves to Allow under the given context.
func (t *Tree) HasIn(key string, context Set) bool {
	return t.Query(key, context).IsAllowed()
}

// Merge appends every node of other into t. Duplicate keys accumulate,
// never replace, so nodes merged later win ties under the matching rule.
func (t *Tree) Merge(other *Tree) {
	for _, node := range other.Nodes() {
		// Nodes already stored in a tree passed key validation.
		_ = t.Set(node)
	}
}

// Flatten builds a new tree containing every node of the given trees,
// merged in argument order. Because Set appends and the matching rule
// scans newest first, trees passed later take precedence for any
// context-overlapping permission. The canonical caller order is
// (defaults, groups..., personal) so personal overrides win.
//
// The flattened tree shares the immutable Node values with its sources
// but none of their trie storage; mutating it does not affect them.
func Flatten(trees ...*Tree) *Tree {
	flat := NewTree()
	for _, tree := range trees {
		flat.Merge(tree)
	}
	return flat
}

// Nodes returns every stored node in pre-order traversal. Entries at a
// given key keep their insertion order, so Flatten preserves precedence.
func (t *Tree) Nodes() []Node {
	var nodes []Node
	t.root.walk(func(_ string, n *trieNode) {
		n.mu.RLock()
		nodes = append(nodes, n.entries...)
		n.mu.RUnlock()
	})
	return nodes
}

// Keys returns every key with at least one stored node, sorted.
func (t *Tree) Keys() []string {
	seen := make(map[string]struct{})
	t.root.walk(func(path string, n *trieNode) {
		n.mu.RLock()
		occupied := len(n.entries) > 0
		n.mu.RUnlock()
		if occupied {
			seen[path] = struct{}{}
		}
	})
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// KeysMatching returns the stored keys matched by pattern, a glob over
// dot-separated segments ("cmd.*", "ability.{fly,swim}"). Returns an
// INVALID_KEY_PATTERN error if the pattern does not compile.
func (t *Tree) KeysMatching(pattern string) ([]string, error) {
	g, err := glob.Compile(pattern, '.')
	if err != nil {
		return nil, oops.
			Code("INVALID_KEY_PATTERN").
			With("pattern", pattern).
			Wrap(err)
	}
	var keys []string
	for _, k := range t.Keys() {
		if g.Match(k) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Len returns the total number of stored nodes.
func (t *Tree) Len() int {
	count := 0
	t.root.walk(func(_ string, n *trieNode) {
		n.mu.RLock()
		count += len(n.entries)
		n.mu.RUnlock()
	})
	return count
}

// IsEmpty reports whether the tree stores no nodes.
func (t *Tree) IsEmpty() bool {
	return t.Len() == 0
}

// Clear removes every stored node and trie path.
func (t *Tree) Clear() {
	t.root.mu.Lock()
	t.root.children = nil
	t.root.entries = nil
	t.root.mu.Unlock()
}

// walk visits every trie node in pre-order with its dot-joined path. The
// root is visited with an empty path and never holds entries of its own.
func (t *trieNode) walk(visit func(path string, n *trieNode)) {
	t.walkFrom("", visit)
}

func (t *trieNode) walkFrom(path string, visit func(path string, n *trieNode)) {
	visit(path, t)

	t.mu.RLock()
	segments := make([]string, 0, len(t.children))
	for segment := range t.children {
		segments = append(segments, segment)
	}
	t.mu.RUnlock()
	sort.Strings(segments)

	for _, segment := range segments {
		child := t.child(segment)
		if child == nil {
			continue // removed between snapshot and visit
		}
		childPath := segment
		if path != "" {
			childPath = path + "." + segment
		}
		child.walkFrom(childPath, visit)
	}
}
