// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Permtree Contributors

package store

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/samber/oops"
)

// FileStore persists all scopes in a single JSON document. Writes go
// through a temp file and rename so a crash mid-write never leaves a
// truncated document behind. Safe for concurrent use within one process;
// it does not coordinate between processes.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// fileDocument is the on-disk shape: scope name to ordered record list.
type fileDocument map[string][]Record

// NewFileStore creates a FileStore at path. The file is created lazily on
// first write; a missing file reads as an empty store.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load implements Store.
func (s *FileStore) Load(_ context.Context, scope string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	records, ok := doc[scope]
	if !ok {
		return nil, ErrScopeNotFound(scope)
	}
	return records, nil
}

// Save implements Store.
func (s *FileStore) Save(_ context.Context, scope string, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	doc[scope] = records
	return s.write(doc)
}

// Append implements Store.
func (s *FileStore) Append(_ context.Context, scope string, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	doc[scope] = append(doc[scope], record)
	return s.write(doc)
}

// Remove implements Store.
func (s *FileStore) Remove(_ context.Context, scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	records, ok := doc[scope]
	if !ok {
		return ErrScopeNotFound(scope)
	}
	kept := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Key != key {
			kept = append(kept, r)
		}
	}
	doc[scope] = kept
	return s.write(doc)
}

// Scopes implements Store.
func (s *FileStore) Scopes(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *FileStore) read() (fileDocument, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return fileDocument{}, nil
	}
	if err != nil {
		return nil, oops.
			Code("STORE_IO").
			With("path", s.path).
			Wrapf(err, "reading permission file")
	}
	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, oops.
			Code("STORE_IO").
			With("path", s.path).
			Wrapf(err, "parsing permission file")
	}
	if doc == nil {
		doc = fileDocument{}
	}
	return doc, nil
}

func (s *FileStore) write(doc fileDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return oops.
			Code("STORE_IO").
			With("path", s.path).
			Wrapf(err, "encoding permission file")
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".permtree-*.json")
	if err != nil {
		return oops.
			Code("STORE_IO").
			With("path", s.path).
			Wrapf(err, "creating temp permission file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return oops.
			Code("STORE_IO").
			With("path", tmpName).
			Wrapf(err, "writing temp permission file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return oops.
			Code("STORE_IO").
			With("path", tmpName).
			Wrapf(err, "closing temp permission file")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return oops.
			Code("STORE_IO").
			With("path", s.path).
			Wrapf(err, "replacing permission file")
	}
	return nil
}
