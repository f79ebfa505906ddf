// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Permtree Contributors

// Package seed loads permission scopes from a YAML document into a
// store, for bootstrapping new deployments and test fixtures.
package seed

import (
	"context"
	"io"
	"os"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/permtree/permtree/pkg/store"
)

// Document is a parsed seed file: permission records grouped by scope.
// Record order within a scope is preserved, so later records override
// earlier ones at the same key.
type Document struct {
	Scopes map[string][]store.Record `yaml:"scopes"`
}

// Parse reads a seed document and validates every record.
func Parse(r io.Reader) (Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return Document{}, oops.
			Code("SEED_PARSE_FAILED").
			Wrapf(err, "decoding seed document")
	}
	if err := doc.validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// ParseFile reads and validates the seed document at path.
func ParseFile(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, oops.
			Code("SEED_IO").
			With("path", path).
			Wrapf(err, "opening seed file")
	}
	defer f.Close()

	doc, err := Parse(f)
	if err != nil {
		return Document{}, oops.With("path", path).Wrap(err)
	}
	return doc, nil
}

// validate checks that every scope is named and its records build a
// valid tree, so a bad seed fails before any scope is written.
func (d Document) validate() error {
	if len(d.Scopes) == 0 {
		return oops.
			Code("SEED_EMPTY").
			Errorf("seed document defines no scopes")
	}
	for scope, records := range d.Scopes {
		if scope == "" {
			return oops.
				Code("INVALID_SEED_SCOPE").
				Errorf("seed document contains an unnamed scope")
		}
		if _, err := store.TreeFromRecords(records); err != nil {
			return oops.
				With("scope", scope).
				Wrapf(err, "invalid seed records")
		}
	}
	return nil
}

// Apply replaces each seeded scope in s with the document's records.
// Scopes absent from the document are untouched.
func (d Document) Apply(ctx context.Context, s store.Store) error {
	for scope, records := range d.Scopes {
		if err := s.Save(ctx, scope, records); err != nil {
			return oops.
				With("scope", scope).
				Wrapf(err, "seeding scope")
		}
	}
	return nil
}

// RecordCount returns the total number of records across all scopes.
func (d Document) RecordCount() int {
	total := 0
	for _, records := range d.Scopes {
		total += len(records)
	}
	return total
}
