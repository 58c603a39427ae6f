// Package memory implements an in-memory document store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"stockdash/internal/pkg/docstore"
)

// Store keeps documents in a map. Streams are served from a snapshot taken
// when StreamAll is called, ordered by key.
type Store struct {
	mu   sync.RWMutex
	docs map[string]docstore.Fields
}

var _ docstore.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{docs: make(map[string]docstore.Fields)}
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[key]
	return ok, nil
}

// Get returns a copy of the document at key.
func (s *Store) Get(ctx context.Context, key string) (docstore.Fields, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[key]
	if !ok {
		return nil, false, nil
	}
	return doc.Clone(), true, nil
}

// Set replaces the document at key.
func (s *Store) Set(ctx context.Context, key string, fields docstore.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key] = fields.Clone()
	return nil
}

// UpdateFields merges fields into the document at key. Like Firestore's
// update, it fails when the document does not exist.
func (s *Store) UpdateFields(ctx context.Context, key string, fields docstore.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[key]
	if !ok {
		return fmt.Errorf("memory: no document %q to update", key)
	}
	for k, v := range fields {
		doc[k] = v
	}
	return nil
}

// Delete removes the document at key; deleting a missing key is a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, key)
	return nil
}

// StreamAll iterates over a snapshot of all documents.
func (s *Store) StreamAll(ctx context.Context) docstore.Iterator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.docs))
	for k := range s.docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	docs := make([]docstore.Document, 0, len(keys))
	for _, k := range keys {
		docs = append(docs, docstore.Document{Key: k, Fields: s.docs[k].Clone()})
	}
	return docstore.NewSliceIterator(docs)
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
