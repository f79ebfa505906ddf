// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Permtree Contributors

// Package resolver turns stored permission scopes into per-actor
// decisions.
//
// For each actor it flattens the configured scopes — server defaults,
// the actor's groups in declaration order, then the actor's personal
// overrides — into one tree, caches it, and answers queries against it.
// Scopes flattened later take precedence, so personal overrides win.
//
// The resolver is an injected dependency: construct one where the
// application wires its services and pass it down, rather than holding a
// process-wide singleton.
package resolver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sethvargo/go-retry"

	"github.com/permtree/permtree/pkg/perm"
	"github.com/permtree/permtree/pkg/store"
)

// Default retry configuration for store loads during a rebuild.
const (
	defaultRetryBase     = 50 * time.Millisecond
	defaultRetryMaxTries = 3
)

// Actor identifies whose permissions are being resolved: a stable ID and
// the actor's group memberships in ascending priority order (later groups
// override earlier ones).
type Actor struct {
	ID     ulid.ULID
	Groups []string
}

// Hook intercepts a query's resolved result before it reaches the
// caller, to apply a temporary override. Return (replacement, true) to
// substitute the result, or (anything, false) to pass the resolved
// result through unchanged. The hook sees the tree's output, never its
// internals.
type Hook interface {
	Intercept(ctx context.Context, actor Actor, key string, cset perm.Set, resolved perm.Result) (perm.Result, bool)
}

// HookFunc adapts a function to the Hook interface.
type HookFunc func(ctx context.Context, actor Actor, key string, cset perm.Set, resolved perm.Result) (perm.Result, bool)

// Intercept implements Hook.
func (f HookFunc) Intercept(ctx context.Context, actor Actor, key string, cset perm.Set, resolved perm.Result) (perm.Result, bool) {
	return f(ctx, actor, key, cset, resolved)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHook installs a post-resolution hook.
func WithHook(h Hook) Option {
	return func(r *Resolver) {
		r.hook = h
	}
}

// WithLogger sets the logger for debug-level query tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithRetryConfig sets the exponential backoff used when a store load
// fails transiently during a rebuild.
func WithRetryConfig(base time.Duration, maxTries uint64) Option {
	return func(r *Resolver) {
		r.retryBase = base
		r.retryMaxTries = maxTries
	}
}

// Resolver resolves permission queries against cached, flattened
// per-actor trees. Safe for concurrent use.
type Resolver struct {
	store         store.Store
	hook          Hook
	logger        *slog.Logger
	retryBase     time.Duration
	retryMaxTries uint64

	mu    sync.RWMutex
	trees map[ulid.ULID]*perm.Tree
}

// New creates a Resolver reading from s.
func New(s store.Store, opts ...Option) *Resolver {
	r := &Resolver{
		store:         s,
		logger:        slog.Default(),
		retryBase:     defaultRetryBase,
		retryMaxTries: defaultRetryMaxTries,
		trees:         make(map[ulid.ULID]*perm.Tree),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Query resolves key for actor under the caller's context set. The
// actor's flattened tree is built on first use and cached until
// Invalidate or Rebuild. Store failures surface only from the build
// path; resolution itself never errors.
func (r *Resolver) Query(ctx context.Context, actor Actor, key string, cset perm.Set) (perm.Result, error) {
	start := time.Now()

	tree, err := r.treeFor(ctx, actor)
	if err != nil {
		recordQuery(time.Since(start), "error")
		return perm.UndefinedResult, err
	}

	result := tree.Query(key, cset)
	if r.hook != nil {
		if replacement, ok := r.hook.Intercept(ctx, actor, key, cset, result); ok {
			result = replacement
		}
	}

	recordQuery(time.Since(start), result.State().String())
	r.logger.DebugContext(ctx, "permission query",
		"actor", actor.ID.String(),
		"key", key,
		"context", cset.String(),
		"state", result.State().String(),
	)
	return result, nil
}

// Has reports whether key resolves to Allow for actor.
func (r *Resolver) Has(ctx context.Context, actor Actor, key string, cset perm.Set) (bool, error) {
	result, err := r.Query(ctx, actor, key, cset)
	if err != nil {
		return false, err
	}
	return result.IsAllowed(), nil
}

// treeFor returns the cached tree for actor, building it on a miss.
func (r *Resolver) treeFor(ctx context.Context, actor Actor) (*perm.Tree, error) {
	r.mu.RLock()
	tree, ok := r.trees[actor.ID]
	r.mu.RUnlock()
	if ok {
		return tree, nil
	}
	return r.rebuild(ctx, actor)
}

// Rebuild reloads the actor's scopes from the store and swaps the cached
// tree. Call after the backing store changed, typically on identity load
// or from a change-notification listener.
func (r *Resolver) Rebuild(ctx context.Context, actor Actor) error {
	_, err := r.rebuild(ctx, actor)
	return err
}

// rebuild builds outside the lock and swaps under it, so concurrent
// queries keep answering from the previous tree until the new one is
// ready.
func (r *Resolver) rebuild(ctx context.Context, actor Actor) (*perm.Tree, error) {
	tree, err := r.buildTree(ctx, actor)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.trees[actor.ID] = tree
	size := len(r.trees)
	r.mu.Unlock()
	cachedTrees.Set(float64(size))

	return tree, nil
}

// scopeOrder returns the actor's scopes in ascending priority order.
func scopeOrder(actor Actor) []string {
	scopes := make([]string, 0, len(actor.Groups)+2)
	scopes = append(scopes, store.ScopeDefault)
	for _, group := range actor.Groups {
		scopes = append(scopes, store.GroupScope(group))
	}
	scopes = append(scopes, store.ActorScope(actor.ID))
	return scopes
}

func (r *Resolver) buildTree(ctx context.Context, actor Actor) (*perm.Tree, error) {
	tree := perm.NewTree()
	for _, scope := range scopeOrder(actor) {
		records, err := r.loadScope(ctx, scope)
		if err != nil {
			if store.IsScopeNotFound(err) {
				// Absence is in-band: a missing scope contributes nothing.
				continue
			}
			return nil, err
		}
		scoped, err := store.TreeFromRecords(records)
		if err != nil {
			return nil, err
		}
		tree.Merge(scoped)
	}
	return tree, nil
}

// loadScope reads one scope with exponential backoff on transient store
// failures. A missing scope is not transient and returns immediately.
func (r *Resolver) loadScope(ctx context.Context, scope string) ([]store.Record, error) {
	var records []store.Record
	backoff := retry.WithMaxRetries(r.retryMaxTries, retry.NewExponential(r.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		loaded, err := r.store.Load(ctx, scope)
		if err != nil {
			if store.IsScopeNotFound(err) {
				return err
			}
			r.logger.WarnContext(ctx, "permission scope load failed, retrying",
				"scope", scope,
				"error", err,
			)
			return retry.RetryableError(err)
		}
		records = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Invalidate drops the cached tree for one actor; the next query
// rebuilds it.
func (r *Resolver) Invalidate(actorID ulid.ULID) {
	r.mu.Lock()
	delete(r.trees, actorID)
	size := len(r.trees)
	r.mu.Unlock()
	cachedTrees.Set(float64(size))
}

// InvalidateAll drops every cached tree.
func (r *Resolver) InvalidateAll() {
	r.mu.Lock()
	r.trees = make(map[ulid.ULID]*perm.Tree)
	r.mu.Unlock()
	cachedTrees.Set(0)
}

// CachedActors returns how many actors currently have a cached tree.
func (r *Resolver) CachedActors() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.trees)
}
