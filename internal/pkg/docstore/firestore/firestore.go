// Package firestore stores product documents in a Cloud Firestore collection,
// one document per product code.
package firestore

import (
	"context"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"stockdash/internal/pkg/docstore"
)

// Config selects the project, collection and credentials. CredentialsJSON
// takes precedence over CredentialsFile; with neither set the client uses
// Application Default Credentials (or FIRESTORE_EMULATOR_HOST).
type Config struct {
	ProjectID       string
	Collection      string
	CredentialsFile string
	CredentialsJSON string
}

// Store is the Firestore implementation of docstore.Store.
type Store struct {
	client *firestore.Client
	coll   *firestore.CollectionRef
}

var _ docstore.Store = (*Store)(nil)

// New opens a Firestore client for cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("firestore: project id is required")
	}
	var opts []option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return NewWithClient(client, cfg.Collection), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *firestore.Client, collection string) *Store {
	return &Store{client: client, coll: client.Collection(collection)}
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// Exists reports whether a document with this id exists.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	snap, err := s.coll.Doc(key).Get(ctx)
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return snap.Exists(), nil
}

// Get reads the document with this id.
func (s *Store) Get(ctx context.Context, key string) (docstore.Fields, bool, error) {
	snap, err := s.coll.Doc(key).Get(ctx)
	if isNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !snap.Exists() {
		return nil, false, nil
	}
	return docstore.Fields(snap.Data()), true, nil
}

// Set writes the full document, replacing any previous content.
func (s *Store) Set(ctx context.Context, key string, fields docstore.Fields) error {
	_, err := s.coll.Doc(key).Set(ctx, map[string]interface{}(fields))
	return err
}

// UpdateFields applies a field-path update; Firestore rejects it with
// NotFound when the document is missing.
func (s *Store) UpdateFields(ctx context.Context, key string, fields docstore.Fields) error {
	updates := buildUpdates(fields)
	if len(updates) == 0 {
		return nil
	}
	_, err := s.coll.Doc(key).Update(ctx, updates)
	return err
}

// buildUpdates turns a field map into Firestore updates ordered by path so
// the request is deterministic.
func buildUpdates(fields docstore.Fields) []firestore.Update {
	paths := make([]string, 0, len(fields))
	for k := range fields {
		paths = append(paths, k)
	}
	sort.Strings(paths)

	updates := make([]firestore.Update, 0, len(paths))
	for _, p := range paths {
		updates = append(updates, firestore.Update{Path: p, Value: fields[p]})
	}
	return updates
}

// Delete removes the document.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.coll.Doc(key).Delete(ctx)
	return err
}

// StreamAll streams every document of the collection.
func (s *Store) StreamAll(ctx context.Context) docstore.Iterator {
	return &docIterator{it: s.coll.Documents(ctx)}
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

type docIterator struct {
	it *firestore.DocumentIterator
}

func (d *docIterator) Next() (docstore.Document, error) {
	snap, err := d.it.Next()
	if err == iterator.Done {
		return docstore.Document{}, docstore.Done
	}
	if err != nil {
		return docstore.Document{}, err
	}
	return docstore.Document{Key: snap.Ref.ID, Fields: docstore.Fields(snap.Data())}, nil
}

func (d *docIterator) Stop() {
	d.it.Stop()
}
