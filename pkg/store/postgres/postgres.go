// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Permtree Contributors

// Package postgres implements the permission store SPI on PostgreSQL.
//
// Records live in the permission_nodes table, one row per node, ordered
// by a per-scope position column so Load returns them in insertion order.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/permtree/permtree/pkg/store"
)

// Store implements store.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// Compile-time check that Store implements the SPI.
var _ store.Store = (*Store)(nil)

// New creates a Store backed by the given connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect creates a pool from dsn and wraps it in a Store.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return New(pool), nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Load implements store.Store.
func (s *Store) Load(ctx context.Context, scope string) ([]store.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, state, payload, context
		 FROM permission_nodes
		 WHERE scope = $1
		 ORDER BY position`,
		scope,
	)
	if err != nil {
		return nil, oops.
			Code("STORE_IO").
			With("scope", scope).
			Wrapf(err, "querying permission nodes")
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		exists, err := s.scopeExists(ctx, scope)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, store.ErrScopeNotFound(scope)
		}
	}
	return records, nil
}

// scopeExists distinguishes an empty scope from one never saved to.
func (s *Store) scopeExists(ctx context.Context, scope string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM permission_scopes WHERE scope = $1)`,
		scope,
	).Scan(&exists)
	if err != nil {
		return false, oops.
			Code("STORE_IO").
			With("scope", scope).
			Wrapf(err, "checking scope existence")
	}
	return exists, nil
}

func scanRecords(rows pgx.Rows) ([]store.Record, error) {
	defer rows.Close()
	var records []store.Record
	for rows.Next() {
		var r store.Record
		var payload, contextJSON []byte
		if err := rows.Scan(&r.Key, &r.State, &payload, &contextJSON); err != nil {
			return nil, fmt.Errorf("scanning permission node row: %w", err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &r.Payload); err != nil {
				return nil, fmt.Errorf("decoding payload for %q: %w", r.Key, err)
			}
		}
		if len(contextJSON) > 0 {
			if err := json.Unmarshal(contextJSON, &r.Context); err != nil {
				return nil, fmt.Errorf("decoding context for %q: %w", r.Key, err)
			}
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating permission node rows: %w", err)
	}
	return records, nil
}

// Save implements store.Store. The replacement happens in one transaction
// so concurrent loaders see either the old or the new list, never a mix.
func (s *Store) Save(ctx context.Context, scope string, records []store.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return oops.Code("STORE_IO").With("scope", scope).Wrapf(err, "beginning save")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO permission_scopes (scope) VALUES ($1) ON CONFLICT DO NOTHING`,
		scope,
	); err != nil {
		return oops.Code("STORE_IO").With("scope", scope).Wrapf(err, "registering scope")
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM permission_nodes WHERE scope = $1`, scope,
	); err != nil {
		return oops.Code("STORE_IO").With("scope", scope).Wrapf(err, "clearing scope")
	}
	for i, r := range records {
		if err := insertRecord(ctx, tx, scope, i, r); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return oops.Code("STORE_IO").With("scope", scope).Wrapf(err, "committing save")
	}
	return nil
}

func insertRecord(ctx context.Context, tx pgx.Tx, scope string, position int, r store.Record) error {
	payload, err := encodeJSON(r.Payload)
	if err != nil {
		return oops.
			Code("INVALID_PERMISSION_RECORD").
			With("key", r.Key).
			Wrapf(err, "encoding payload")
	}
	contextJSON, err := encodeJSON(r.Context)
	if err != nil {
		return oops.
			Code("INVALID_PERMISSION_RECORD").
			With("key", r.Key).
			Wrapf(err, "encoding context")
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO permission_nodes (scope, position, key, state, payload, context)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		scope, position, r.Key, r.State, payload, contextJSON,
	)
	if err != nil {
		return oops.
			Code("STORE_IO").
			With("scope", scope).
			With("key", r.Key).
			Wrapf(err, "inserting permission node")
	}
	return nil
}

// encodeJSON marshals v for a jsonb column, mapping nil to SQL NULL.
func encodeJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	if m, ok := v.(map[string]string); ok && len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(v)
}

// Append implements store.Store.
func (s *Store) Append(ctx context.Context, scope string, record store.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return oops.Code("STORE_IO").With("scope", scope).Wrapf(err, "beginning append")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO permission_scopes (scope) VALUES ($1) ON CONFLICT DO NOTHING`,
		scope,
	); err != nil {
		return oops.Code("STORE_IO").With("scope", scope).Wrapf(err, "registering scope")
	}

	var next int
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM permission_nodes WHERE scope = $1`,
		scope,
	).Scan(&next); err != nil {
		return oops.Code("STORE_IO").With("scope", scope).Wrapf(err, "finding next position")
	}
	if err := insertRecord(ctx, tx, scope, next, record); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return oops.Code("STORE_IO").With("scope", scope).Wrapf(err, "committing append")
	}
	return nil
}

// Remove implements store.Store.
func (s *Store) Remove(ctx context.Context, scope, key string) error {
	exists, err := s.scopeExists(ctx, scope)
	if err != nil {
		return err
	}
	if !exists {
		return store.ErrScopeNotFound(scope)
	}
	_, err = s.pool.Exec(ctx,
		`DELETE FROM permission_nodes WHERE scope = $1 AND key = $2`,
		scope, key,
	)
	if err != nil {
		return oops.
			Code("STORE_IO").
			With("scope", scope).
			With("key", key).
			Wrapf(err, "deleting permission nodes")
	}
	return nil
}

// Scopes implements store.Store.
func (s *Store) Scopes(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT scope FROM permission_scopes ORDER BY scope`)
	if err != nil {
		return nil, oops.Code("STORE_IO").Wrapf(err, "listing scopes")
	}
	defer rows.Close()
	var scopes []string
	for rows.Next() {
		var scope string
		if err := rows.Scan(&scope); err != nil {
			return nil, fmt.Errorf("scanning scope row: %w", err)
		}
		scopes = append(scopes, scope)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scope rows: %w", err)
	}
	return scopes, nil
}
