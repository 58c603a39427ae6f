// Package postgres keeps product documents as JSONB rows in the documents
// table created by the migrations under sql/.
package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"stockdash/internal/pkg/docstore"
)

const (
	queryExists = `SELECT EXISTS(SELECT 1 FROM documents WHERE collection = $1 AND key = $2)`
	queryGet    = `SELECT fields FROM documents WHERE collection = $1 AND key = $2`
	querySet    = `INSERT INTO documents (collection, key, fields, updated_at)
		VALUES ($1, $2, $3::jsonb, now())
		ON CONFLICT (collection, key) DO UPDATE SET fields = EXCLUDED.fields, updated_at = now()`
	queryUpdate = `UPDATE documents SET fields = fields || $3::jsonb, updated_at = now()
		WHERE collection = $1 AND key = $2`
	queryDelete = `DELETE FROM documents WHERE collection = $1 AND key = $2`
	queryAll    = `SELECT key, fields FROM documents WHERE collection = $1 ORDER BY key`
)

// Store is the PostgreSQL implementation of docstore.Store.
type Store struct {
	db         *sql.DB
	collection string
}

var _ docstore.Store = (*Store)(nil)

// New wraps an open database handle.
func New(db *sql.DB, collection string) *Store {
	return &Store{db: db, collection: collection}
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	var ok bool
	if err := s.db.QueryRowContext(ctx, queryExists, s.collection, key).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (s *Store) Get(ctx context.Context, key string) (docstore.Fields, bool, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, queryGet, s.collection, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	fields, err := decode(raw)
	if err != nil {
		return nil, false, err
	}
	return fields, true, nil
}

func (s *Store) Set(ctx context.Context, key string, fields docstore.Fields) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode document %q: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, querySet, s.collection, key, string(raw))
	return err
}

// UpdateFields merges the patch into the stored JSONB object.
func (s *Store) UpdateFields(ctx context.Context, key string, fields docstore.Fields) error {
	if len(fields) == 0 {
		return nil
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode patch %q: %w", key, err)
	}
	res, err := s.db.ExecContext(ctx, queryUpdate, s.collection, key, string(raw))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("postgres: no document %q to update", key)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, queryDelete, s.collection, key)
	return err
}

// StreamAll scans rows lazily from an open result set.
func (s *Store) StreamAll(ctx context.Context) docstore.Iterator {
	rows, err := s.db.QueryContext(ctx, queryAll, s.collection)
	if err != nil {
		return docstore.ErrIterator(err)
	}
	return &rowIterator{rows: rows}
}

func (s *Store) Close() error {
	return s.db.Close()
}

type rowIterator struct {
	rows   *sql.Rows
	closed bool
}

func (r *rowIterator) Next() (docstore.Document, error) {
	if r.closed {
		return docstore.Document{}, docstore.Done
	}
	if !r.rows.Next() {
		err := r.rows.Err()
		r.Stop()
		if err != nil {
			return docstore.Document{}, err
		}
		return docstore.Document{}, docstore.Done
	}
	var (
		key string
		raw []byte
	)
	if err := r.rows.Scan(&key, &raw); err != nil {
		return docstore.Document{}, err
	}
	fields, err := decode(raw)
	if err != nil {
		return docstore.Document{}, err
	}
	return docstore.Document{Key: key, Fields: fields}, nil
}

func (r *rowIterator) Stop() {
	if r.closed {
		return
	}
	r.closed = true
	r.rows.Close()
}

// decode keeps numbers as json.Number so integers survive the round trip.
func decode(raw []byte) (docstore.Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	fields := docstore.Fields{}
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return fields, nil
}
