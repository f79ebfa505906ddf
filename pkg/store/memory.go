// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Permtree Contributors

package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store for tests and embedders that manage
// persistence themselves. Safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	scopes map[string][]Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{scopes: make(map[string][]Record)}
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, scope string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records, ok := s.scopes[scope]
	if !ok {
		return nil, ErrScopeNotFound(scope)
	}
	out := make([]Record, len(records))
	copy(out, records)
	return out, nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, scope string, records []Record) error {
	stored := make([]Record, len(records))
	copy(stored, records)
	s.mu.Lock()
	s.scopes[scope] = stored
	s.mu.Unlock()
	return nil
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, scope string, record Record) error {
	s.mu.Lock()
	s.scopes[scope] = append(s.scopes[scope], record)
	s.mu.Unlock()
	return nil
}

// Remove implements Store.
func (s *MemoryStore) Remove(_ context.Context, scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, ok := s.scopes[scope]
	if !ok {
		return ErrScopeNotFound(scope)
	}
	kept := records[:0]
	for _, r := range records {
		if r.Key != key {
			kept = append(kept, r)
		}
	}
	s.scopes[scope] = kept
	return nil
}

// Scopes implements Store.
func (s *MemoryStore) Scopes(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.scopes))
	for name := range s.scopes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
