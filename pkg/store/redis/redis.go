// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Permtree Contributors

// Package redis implements the permission store SPI on Redis.
//
// Each scope is a Redis list of JSON-encoded records under
// "permtree:scope:<scope>"; RPUSH keeps insertion order, which the trie's
// matching rule depends on. A companion set "permtree:scopes" indexes the
// stored scope names.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/permtree/permtree/pkg/store"
)

const (
	scopeKeyPrefix = "permtree:scope:"
	scopeIndexKey  = "permtree:scopes"
)

// Store implements store.Store using Redis.
type Store struct {
	client redis.UniversalClient
}

// Compile-time check that Store implements the SPI.
var _ store.Store = (*Store)(nil)

// New creates a Store on top of an existing Redis client.
func New(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

// Connect dials addr and wraps the connection in a Store.
func Connect(addr string) *Store {
	return New(redis.NewClient(&redis.Options{Addr: addr}))
}

// Close releases the underlying client's connections.
func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return oops.Code("STORE_IO").Wrapf(err, "closing redis client")
	}
	return nil
}

func scopeKey(scope string) string {
	return scopeKeyPrefix + scope
}

// Load implements store.Store.
func (s *Store) Load(ctx context.Context, scope string) ([]store.Record, error) {
	exists, err := s.client.SIsMember(ctx, scopeIndexKey, scope).Result()
	if err != nil {
		return nil, oops.
			Code("STORE_IO").
			With("scope", scope).
			Wrapf(err, "checking scope index")
	}
	if !exists {
		return nil, store.ErrScopeNotFound(scope)
	}

	raw, err := s.client.LRange(ctx, scopeKey(scope), 0, -1).Result()
	if err != nil {
		return nil, oops.
			Code("STORE_IO").
			With("scope", scope).
			Wrapf(err, "reading scope list")
	}
	records := make([]store.Record, 0, len(raw))
	for _, item := range raw {
		var r store.Record
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("decoding permission record in scope %q: %w", scope, err)
		}
		records = append(records, r)
	}
	return records, nil
}

// Save implements store.Store. The delete-and-repush runs in a pipeline
// transaction so concurrent loaders never observe a half-written list.
func (s *Store) Save(ctx context.Context, scope string, records []store.Record) error {
	encoded, err := encodeRecords(records)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, scopeKey(scope))
		if len(encoded) > 0 {
			pipe.RPush(ctx, scopeKey(scope), encoded...)
		}
		pipe.SAdd(ctx, scopeIndexKey, scope)
		return nil
	})
	if err != nil {
		return oops.
			Code("STORE_IO").
			With("scope", scope).
			Wrapf(err, "saving scope")
	}
	return nil
}

// Append implements store.Store.
func (s *Store) Append(ctx context.Context, scope string, record store.Record) error {
	encoded, err := encodeRecords([]store.Record{record})
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, scopeKey(scope), encoded...)
		pipe.SAdd(ctx, scopeIndexKey, scope)
		return nil
	})
	if err != nil {
		return oops.
			Code("STORE_IO").
			With("scope", scope).
			Wrapf(err, "appending to scope")
	}
	return nil
}

// Remove implements store.Store. Redis lists have no filtered delete, so
// the surviving records are rewritten in one transaction.
func (s *Store) Remove(ctx context.Context, scope, key string) error {
	records, err := s.Load(ctx, scope)
	if err != nil {
		return err
	}
	kept := make([]store.Record, 0, len(records))
	for _, r := range records {
		if r.Key != key {
			kept = append(kept, r)
		}
	}
	return s.Save(ctx, scope, kept)
}

// Scopes implements store.Store.
func (s *Store) Scopes(ctx context.Context) ([]string, error) {
	scopes, err := s.client.SMembers(ctx, scopeIndexKey).Result()
	if err != nil {
		return nil, oops.Code("STORE_IO").Wrapf(err, "listing scopes")
	}
	sort.Strings(scopes)
	return scopes, nil
}

func encodeRecords(records []store.Record) ([]any, error) {
	encoded := make([]any, 0, len(records))
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return nil, oops.
				Code("INVALID_PERMISSION_RECORD").
				With("key", r.Key).
				Wrapf(err, "encoding record")
		}
		encoded = append(encoded, data)
	}
	return encoded, nil
}
