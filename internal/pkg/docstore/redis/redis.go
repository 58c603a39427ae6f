// Package redis stores each product as a Redis hash under "<collection>:<code>".
// Hash values come back as strings; the repository coerces them to the
// field's kind on read.
package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"stockdash/internal/pkg/docstore"
)

// Options configures the connection.
type Options struct {
	Addr       string
	Password   string
	DB         int
	Collection string
}

// Store is the Redis implementation of docstore.Store.
type Store struct {
	rdb    *redis.Client
	prefix string
}

var _ docstore.Store = (*Store)(nil)

// Connect opens a client and checks it with PING.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

// New connects and returns a store over opts.Collection.
func New(ctx context.Context, opts Options) (*Store, error) {
	rdb, err := Connect(ctx, opts.Addr, opts.Password, opts.DB)
	if err != nil {
		return nil, err
	}
	return NewWithClient(rdb, opts.Collection), nil
}

// Client returns the underlying connection, for reuse by the rate limiter.
func (s *Store) Client() *redis.Client {
	return s.rdb
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *redis.Client, collection string) *Store {
	return &Store{rdb: rdb, prefix: collection + ":"}
}

func (s *Store) key(code string) string {
	return s.prefix + code
}

func (s *Store) code(key string) string {
	return strings.TrimPrefix(key, s.prefix)
}

// Exists reports whether the hash exists.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Get reads the whole hash. An empty result means the key does not exist.
func (s *Store) Get(ctx context.Context, key string) (docstore.Fields, bool, error) {
	vals, err := s.rdb.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return nil, false, err
	}
	if len(vals) == 0 {
		return nil, false, nil
	}
	return toFields(vals), true, nil
}

// Set replaces the hash in a single MULTI/EXEC.
func (s *Store) Set(ctx context.Context, key string, fields docstore.Fields) error {
	k := s.key(key)
	args := hashArgs(fields)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, k)
		if len(args) > 0 {
			pipe.HSet(ctx, k, args...)
		}
		return nil
	})
	return err
}

// UpdateFields writes only the given hash fields. The key is watched so a
// concurrent delete does not resurrect a partial document.
func (s *Store) UpdateFields(ctx context.Context, key string, fields docstore.Fields) error {
	if len(fields) == 0 {
		return nil
	}
	k := s.key(key)
	args := hashArgs(fields)
	return s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, k).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("redis: no document %q to update", key)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, k, args...)
			return nil
		})
		return err
	}, k)
}

// Delete removes the hash.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.key(key)).Err()
}

// StreamAll walks the collection with SCAN and loads each hash as it goes.
func (s *Store) StreamAll(ctx context.Context) docstore.Iterator {
	return &scanIterator{
		ctx:   ctx,
		store: s,
		it:    s.rdb.Scan(ctx, 0, s.prefix+"*", 100).Iterator(),
	}
}

// Close closes the client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

type scanIterator struct {
	ctx     context.Context
	store   *Store
	it      *redis.ScanIterator
	stopped bool
}

func (i *scanIterator) Next() (docstore.Document, error) {
	for {
		if i.stopped {
			return docstore.Document{}, docstore.Done
		}
		if !i.it.Next(i.ctx) {
			if err := i.it.Err(); err != nil {
				return docstore.Document{}, err
			}
			i.stopped = true
			return docstore.Document{}, docstore.Done
		}
		key := i.it.Val()
		vals, err := i.store.rdb.HGetAll(i.ctx, key).Result()
		if err != nil {
			return docstore.Document{}, err
		}
		// Deleted between SCAN and HGETALL.
		if len(vals) == 0 {
			continue
		}
		return docstore.Document{Key: i.store.code(key), Fields: toFields(vals)}, nil
	}
}

func (i *scanIterator) Stop() {
	i.stopped = true
}

// hashArgs flattens fields into HSET arguments. Values that go-redis cannot
// encode natively are formatted with %v.
func hashArgs(fields docstore.Fields) []interface{} {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		switch v.(type) {
		case string, int, int64, int32, float64, float32, bool, nil:
		default:
			v = fmt.Sprintf("%v", v)
		}
		if v == nil {
			v = ""
		}
		args = append(args, k, v)
	}
	return args
}

func toFields(vals map[string]string) docstore.Fields {
	out := make(docstore.Fields, len(vals))
	for k, v := range vals {
		out[k] = v
	}
	return out
}
