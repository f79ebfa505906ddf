// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Permtree Contributors

// Package perm implements context-aware, tri-state permission resolution
// over a prefix tree of dot-segmented permission keys.
//
// A permission check is not a boolean: Query returns Allow, Deny, or
// Undefined, optionally carrying a typed payload value. Every stored Node
// may be scoped to a Set of context conditions (world, server, game mode,
// or arbitrary caller-defined dimensions) and only participates in
// resolution when its conditions subsume the caller's current context.
//
// Lookup cost is O(segment count) regardless of how many nodes a tree
// holds. Trees may be merged with Flatten to layer scopes (defaults,
// groups, personal overrides); trees merged later take precedence.
//
// All parameters use dot-segmented key format:
//   - key: "cmd.teleport", "ability.fly", "plots.limit"
//   - the literal segment "*" is a wildcard matching any remaining sub-path
package perm
