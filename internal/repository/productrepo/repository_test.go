package productrepo

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockdash/internal/domain"
	apperror "stockdash/internal/errors"
	"stockdash/internal/pkg/docstore"
	"stockdash/internal/pkg/docstore/memory"
)

// countingStore counts stream and write calls and can be told to fail.
type countingStore struct {
	docstore.Store
	streams int32
	writes  int32
	failErr error
}

func (s *countingStore) StreamAll(ctx context.Context) docstore.Iterator {
	atomic.AddInt32(&s.streams, 1)
	if s.failErr != nil {
		return docstore.ErrIterator(s.failErr)
	}
	return s.Store.StreamAll(ctx)
}

func (s *countingStore) Exists(ctx context.Context, key string) (bool, error) {
	if s.failErr != nil {
		return false, s.failErr
	}
	return s.Store.Exists(ctx, key)
}

func (s *countingStore) Set(ctx context.Context, key string, fields docstore.Fields) error {
	atomic.AddInt32(&s.writes, 1)
	return s.Store.Set(ctx, key, fields)
}

func (s *countingStore) UpdateFields(ctx context.Context, key string, fields docstore.Fields) error {
	atomic.AddInt32(&s.writes, 1)
	return s.Store.UpdateFields(ctx, key, fields)
}

func (s *countingStore) Delete(ctx context.Context, key string) error {
	atomic.AddInt32(&s.writes, 1)
	return s.Store.Delete(ctx, key)
}

func newRepo() (*ProductRepository, *countingStore) {
	store := &countingStore{Store: memory.New()}
	return NewProductRepository(store, 0), store
}

var widget = domain.Product{Code: "P1", Name: "Widget", Price: 9.99, Stock: 10, StockMin: 2, StockMax: 20}

func TestAdd_StoresCoercedFields(t *testing.T) {
	ctx := context.Background()
	repo, store := newRepo()

	require.NoError(t, repo.Add(ctx, widget))

	ok, err := store.Exists(ctx, "P1")
	require.NoError(t, err)
	assert.True(t, ok)

	doc, _, _ := store.Get(ctx, "P1")
	assert.Equal(t, docstore.Fields{
		"name":      "Widget",
		"price":     9.99,
		"stock":     int64(10),
		"stock_min": int64(2),
		"stock_max": int64(20),
	}, doc)
}

func TestAdd_AlreadyExistsLeavesDocumentUntouched(t *testing.T) {
	ctx := context.Background()
	repo, store := newRepo()
	require.NoError(t, repo.Add(ctx, widget))

	dup := widget
	dup.Name = "Other"
	dup.Stock = 99
	err := repo.Add(ctx, dup)

	assert.True(t, apperror.IsAlreadyExists(err))
	got, err := repo.Get(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, widget, got)
	assert.Equal(t, int32(1), atomic.LoadInt32(&store.writes))
}

func TestUpdateAndDelete_NotFound(t *testing.T) {
	ctx := context.Background()
	repo, store := newRepo()

	err := repo.UpdateFields(ctx, "missing", map[domain.Field]interface{}{domain.FieldStock: 1})
	assert.True(t, apperror.IsNotFound(err))

	err = repo.Delete(ctx, "missing")
	assert.True(t, apperror.IsNotFound(err))

	_, err = repo.Get(ctx, "missing")
	assert.True(t, apperror.IsNotFound(err))

	assert.Zero(t, atomic.LoadInt32(&store.writes))
}

func TestUpdateFields_Idempotent(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo()
	require.NoError(t, repo.Add(ctx, widget))

	for i := 0; i < 2; i++ {
		require.NoError(t, repo.UpdateFields(ctx, "P1", map[domain.Field]interface{}{domain.FieldStock: 5}))
		got, err := repo.Get(ctx, "P1")
		require.NoError(t, err)

		want := widget
		want.Stock = 5
		assert.Equal(t, want, got)
	}
}

func TestUpdateFields_CoercesStrings(t *testing.T) {
	ctx := context.Background()
	repo, store := newRepo()
	require.NoError(t, repo.Add(ctx, widget))

	require.NoError(t, repo.UpdateFields(ctx, "P1", map[domain.Field]interface{}{
		domain.FieldPrice: "3",
		domain.FieldStock: "4",
	}))

	doc, _, _ := store.Get(ctx, "P1")
	assert.Equal(t, 3.0, doc["price"])
	assert.Equal(t, int64(4), doc["stock"])
}

func TestUpdateFields_InvalidValue(t *testing.T) {
	ctx := context.Background()
	repo, store := newRepo()
	require.NoError(t, repo.Add(ctx, widget))

	err := repo.UpdateFields(ctx, "P1", map[domain.Field]interface{}{domain.FieldStock: "many"})

	status, category, _ := apperror.MapToHTTPStatus(err)
	assert.Equal(t, 400, status)
	assert.Equal(t, "VALIDATION_ERROR", category)
	assert.Equal(t, int32(1), atomic.LoadInt32(&store.writes))
}

func TestListAll_DefaultsAndCoercion(t *testing.T) {
	ctx := context.Background()
	repo, store := newRepo()
	require.NoError(t, store.Store.Set(ctx, "raw", docstore.Fields{"price": "2.5", "stock": "7"}))

	products, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, domain.Product{Code: "raw", Price: 2.5, Stock: 7}, products[0])
}

func TestList_CacheConsistency(t *testing.T) {
	ctx := context.Background()
	repo, store := newRepo()

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, _ = repo.List(ctx)
	assert.Equal(t, int32(1), atomic.LoadInt32(&store.streams), "second read must be served from cache")

	require.NoError(t, repo.Add(ctx, widget))
	list, _ = repo.List(ctx)
	require.Len(t, list, 1)

	require.NoError(t, repo.UpdateFields(ctx, "P1", map[domain.Field]interface{}{domain.FieldName: "Gizmo"}))
	list, _ = repo.List(ctx)
	assert.Equal(t, "Gizmo", list[0].Name)

	require.NoError(t, repo.Delete(ctx, "P1"))
	list, _ = repo.List(ctx)
	assert.Empty(t, list)

	assert.Equal(t, uint64(3), repo.Cache.Stats().Invalidations)
}

func TestFailedWritesDoNotInvalidate(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo()
	require.NoError(t, repo.Add(ctx, widget))
	_, _ = repo.List(ctx)
	before := repo.Cache.Stats().Invalidations

	_ = repo.Add(ctx, widget)
	_ = repo.Delete(ctx, "missing")
	_ = repo.UpdateFields(ctx, "missing", map[domain.Field]interface{}{domain.FieldStock: 1})

	assert.Equal(t, before, repo.Cache.Stats().Invalidations)
}

func TestStoreFailure(t *testing.T) {
	ctx := context.Background()
	repo, store := newRepo()
	store.failErr = errors.New("unavailable")

	_, err := repo.List(ctx)
	status, category, _ := apperror.MapToHTTPStatus(err)
	assert.Equal(t, 502, status)
	assert.Equal(t, "STORE_FAILURE", category)

	err = repo.Add(ctx, widget)
	assert.ErrorIs(t, err, store.failErr)
}

func TestDBTimeoutApplied(t *testing.T) {
	repo := NewProductRepository(memory.New(), 50*time.Millisecond)
	ctx, cancel := repo.withTimeout(context.Background())
	defer cancel()

	_, ok := ctx.Deadline()
	assert.True(t, ok)

	repo.DBTimeout = 0
	ctx, cancel = repo.withTimeout(context.Background())
	defer cancel()
	_, ok = ctx.Deadline()
	assert.False(t, ok)
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo()

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, repo.Add(ctx, widget))

	list, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "P1", list[0].Code)
	assert.Equal(t, "Widget", list[0].Name)
	assert.Equal(t, 9.99, list[0].Price)
	assert.Equal(t, int64(10), list[0].Stock)

	require.NoError(t, repo.UpdateFields(ctx, "P1", map[domain.Field]interface{}{domain.FieldStock: "7"}))

	list, err = repo.List(ctx)
	require.NoError(t, err)
	want := widget
	want.Stock = 7
	assert.Equal(t, []domain.Product{want}, list)

	require.NoError(t, repo.Delete(ctx, "P1"))

	list, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
