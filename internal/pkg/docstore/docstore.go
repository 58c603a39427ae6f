// Package docstore is the single point of contact with the remote document
// collection that holds the products. Each backend lives in its own
// subpackage and satisfies Store.
package docstore

import (
	"context"

	"google.golang.org/api/iterator"
)

// Fields is an open field map stored under a document key.
type Fields map[string]interface{}

// Clone returns a shallow copy of f.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Document is one (key, fields) pair yielded by StreamAll.
type Document struct {
	Key    string
	Fields Fields
}

// Done is returned by Iterator.Next when the stream is exhausted.
var Done = iterator.Done

// Iterator enumerates a collection lazily. It is finite and cannot be
// rewound; call StreamAll again to start over.
type Iterator interface {
	Next() (Document, error)
	Stop()
}

// Store is implemented by every backend. Errors from the underlying store
// are returned as they are.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	// Get returns ok=false when no document exists under key.
	Get(ctx context.Context, key string) (Fields, bool, error)
	// Set creates or fully overwrites the document at key.
	Set(ctx context.Context, key string, fields Fields) error
	// UpdateFields merges fields into the existing document; fields not
	// mentioned are left untouched.
	UpdateFields(ctx context.Context, key string, fields Fields) error
	Delete(ctx context.Context, key string) error
	StreamAll(ctx context.Context) Iterator
	Close() error
}

// Collect drains it into a slice and stops it.
func Collect(it Iterator) ([]Document, error) {
	defer it.Stop()
	var docs []Document
	for {
		doc, err := it.Next()
		if err == Done {
			return docs, nil
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
}

// SliceIterator iterates over an already materialized batch.
type SliceIterator struct {
	docs []Document
	pos  int
	err  error
}

// NewSliceIterator returns an iterator over docs.
func NewSliceIterator(docs []Document) *SliceIterator {
	return &SliceIterator{docs: docs}
}

// ErrIterator returns an iterator whose first Next fails with err.
func ErrIterator(err error) *SliceIterator {
	return &SliceIterator{err: err}
}

func (it *SliceIterator) Next() (Document, error) {
	if it.err != nil {
		return Document{}, it.err
	}
	if it.pos >= len(it.docs) {
		return Document{}, Done
	}
	doc := it.docs[it.pos]
	it.pos++
	return doc, nil
}

func (it *SliceIterator) Stop() {
	it.pos = len(it.docs)
}
