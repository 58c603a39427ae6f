package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockdash/internal/domain"
)

func staticLoader(calls *int32, products ...domain.Product) Loader {
	return func(ctx context.Context) ([]domain.Product, error) {
		atomic.AddInt32(calls, 1)
		return products, nil
	}
}

func TestGetAll_LoadsOnceUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	c := New()
	var calls int32
	load := staticLoader(&calls, domain.Product{Code: "P1", Name: "Widget"})

	first, err := c.GetAll(ctx, load)
	require.NoError(t, err)
	second, err := c.GetAll(ctx, load)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	c.Invalidate()
	_, err = c.GetAll(ctx, load)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	assert.Equal(t, Stats{Hits: 1, Loads: 2, Invalidations: 1}, c.Stats())
}

func TestGetAll_FailedLoadNotStored(t *testing.T) {
	ctx := context.Background()
	c := New()
	boom := errors.New("unavailable")

	_, err := c.GetAll(ctx, func(ctx context.Context) ([]domain.Product, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	var calls int32
	got, err := c.GetAll(ctx, staticLoader(&calls, domain.Product{Code: "P1"}))
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetAll_EmptyListingIsCached(t *testing.T) {
	ctx := context.Background()
	c := New()
	var calls int32
	load := staticLoader(&calls)

	got, err := c.GetAll(ctx, load)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)

	_, _ = c.GetAll(ctx, load)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetAll_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := New()
	var calls int32
	load := staticLoader(&calls, domain.Product{Code: "P1", Name: "Widget"})

	got, _ := c.GetAll(ctx, load)
	got[0].Name = "changed"

	again, _ := c.GetAll(ctx, load)
	assert.Equal(t, "Widget", again[0].Name)
}

func TestGetAll_ConcurrentMissesShareLoad(t *testing.T) {
	ctx := context.Background()
	c := New()
	var calls int32
	release := make(chan struct{})
	load := func(ctx context.Context) ([]domain.Product, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []domain.Product{{Code: "P1"}}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetAll(ctx, load)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestInvalidate_DuringLoadDiscardsResult(t *testing.T) {
	ctx := context.Background()
	c := New()
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.GetAll(ctx, func(ctx context.Context) ([]domain.Product, error) {
			close(started)
			<-release
			return []domain.Product{{Code: "stale"}}, nil
		})
	}()

	<-started
	c.Invalidate()
	close(release)
	<-done

	var calls int32
	got, err := c.GetAll(ctx, staticLoader(&calls, domain.Product{Code: "fresh"}))
	require.NoError(t, err)
	assert.Equal(t, "fresh", got[0].Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
