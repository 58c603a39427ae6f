// Package mongo stores product documents in a MongoDB collection with the
// product code as _id.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"stockdash/internal/pkg/docstore"
)

const idField = "_id"

// Config configures the connection.
type Config struct {
	URI        string
	Database   string
	Collection string
}

// Store is the MongoDB implementation of docstore.Store.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ docstore.Store = (*Store)(nil)

// New connects to cfg.URI and pings the primary.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return &Store{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

// Exists counts documents with this _id.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{idField: key}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Get loads the document with this _id.
func (s *Store) Get(ctx context.Context, key string) (docstore.Fields, bool, error) {
	var raw bson.M
	err := s.coll.FindOne(ctx, bson.M{idField: key}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	_, fields := fromBSON(raw)
	return fields, true, nil
}

// Set replaces the document, inserting it when missing.
func (s *Store) Set(ctx context.Context, key string, fields docstore.Fields) error {
	_, err := s.coll.ReplaceOne(ctx, bson.M{idField: key}, toBSON(fields), options.Replace().SetUpsert(true))
	return err
}

// UpdateFields applies $set without upsert and fails when nothing matched.
func (s *Store) UpdateFields(ctx context.Context, key string, fields docstore.Fields) error {
	if len(fields) == 0 {
		return nil
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{idField: key}, bson.M{"$set": toBSON(fields)})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("mongo: no document %q to update", key)
	}
	return nil
}

// Delete removes the document.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{idField: key})
	return err
}

// StreamAll opens a cursor over the whole collection.
func (s *Store) StreamAll(ctx context.Context) docstore.Iterator {
	cur, err := s.coll.Find(ctx, bson.D{})
	if err != nil {
		return docstore.ErrIterator(err)
	}
	return &cursorIterator{ctx: ctx, cur: cur}
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

type cursorIterator struct {
	ctx    context.Context
	cur    *mongo.Cursor
	closed bool
}

func (c *cursorIterator) Next() (docstore.Document, error) {
	if c.closed {
		return docstore.Document{}, docstore.Done
	}
	if !c.cur.Next(c.ctx) {
		err := c.cur.Err()
		c.Stop()
		if err != nil {
			return docstore.Document{}, err
		}
		return docstore.Document{}, docstore.Done
	}
	var raw bson.M
	if err := c.cur.Decode(&raw); err != nil {
		return docstore.Document{}, err
	}
	key, fields := fromBSON(raw)
	return docstore.Document{Key: key, Fields: fields}, nil
}

func (c *cursorIterator) Stop() {
	if c.closed {
		return
	}
	c.closed = true
	_ = c.cur.Close(context.Background())
}

func toBSON(fields docstore.Fields) bson.M {
	out := make(bson.M, len(fields))
	for k, v := range fields {
		if k == idField {
			continue
		}
		out[k] = v
	}
	return out
}

// fromBSON splits _id from the rest of the document. Integers stored by the
// shell as int32 are widened so callers only see int64.
func fromBSON(raw bson.M) (string, docstore.Fields) {
	key := fmt.Sprint(raw[idField])
	fields := make(docstore.Fields, len(raw))
	for k, v := range raw {
		if k == idField {
			continue
		}
		if i, ok := v.(int32); ok {
			v = int64(i)
		}
		fields[k] = v
	}
	return key, fields
}
