package redis

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/storage/memory"
)

type countingStore struct {
	cart.Store
	gets atomic.Int32
	// gate, when set, blocks Get before loading until closed.
	gate chan struct{}
	// hold, when set, blocks Get after loading until closed.
	hold chan struct{}
}

func (s *countingStore) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	s.gets.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	ct, err := s.Store.Get(ctx, userID)
	if s.hold != nil {
		<-s.hold
	}
	return ct, err
}

func setupTestCache(t *testing.T) (*CartCache, *countingStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := &countingStore{Store: memory.NewCartStore()}
	return NewCartCache(store, client, 15*time.Minute, 5*time.Minute), store, mr
}

func seed(t *testing.T, s cart.Store, userID string, qty int) {
	t.Helper()
	require.NoError(t, s.Save(context.Background(), &cart.Cart{
		UserID: userID,
		Items:  []cart.Item{{ProductID: "p1", Quantity: qty}},
	}))
}

func TestCartCache_ReadThrough(t *testing.T) {
	c, store, mr := setupTestCache(t)
	ctx := context.Background()
	seed(t, store.Store, "u1", 2)

	got, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.True(t, mr.Exists(cacheKey("u1")))

	ttl := mr.TTL(cacheKey("u1"))
	assert.GreaterOrEqual(t, ttl, 15*time.Minute)
	assert.Less(t, ttl, 20*time.Minute)

	_, err = c.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), store.gets.Load())
}

func TestCartCache_ServesCachedValue(t *testing.T) {
	c, store, mr := setupTestCache(t)

	data, err := json.Marshal(cart.Cart{UserID: "u1", Items: []cart.Item{{ProductID: "cached", Quantity: 7}}})
	require.NoError(t, err)
	require.NoError(t, mr.Set(cacheKey("u1"), string(data)))

	got, err := c.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "cached", got.Items[0].ProductID)
	assert.Zero(t, store.gets.Load())
}

func TestCartCache_WritesInvalidate(t *testing.T) {
	c, store, mr := setupTestCache(t)
	ctx := context.Background()
	seed(t, store.Store, "u1", 1)

	_, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, mr.Exists(cacheKey("u1")))

	seed(t, c, "u1", 4)
	assert.False(t, mr.Exists(cacheKey("u1")))

	got, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, got.Items[0].Quantity)

	require.NoError(t, c.Delete(ctx, "u1"))
	assert.False(t, mr.Exists(cacheKey("u1")))
	_, err = c.Get(ctx, "u1")
	require.ErrorIs(t, err, cart.ErrNotFound)
}

func TestCartCache_MissNotCached(t *testing.T) {
	c, _, mr := setupTestCache(t)

	_, err := c.Get(context.Background(), "nobody")
	require.ErrorIs(t, err, cart.ErrNotFound)
	assert.False(t, mr.Exists(cacheKey("nobody")))
}

func TestCartCache_RedisDownFallsBack(t *testing.T) {
	c, store, mr := setupTestCache(t)
	ctx := context.Background()
	seed(t, store.Store, "u1", 3)
	mr.Close()

	got, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Items[0].Quantity)

	require.NoError(t, c.Delete(ctx, "u1"))
}

func TestCartCache_CoalescesConcurrentMisses(t *testing.T) {
	c, store, _ := setupTestCache(t)
	ctx := context.Background()
	seed(t, store.Store, "u1", 1)
	store.gate = make(chan struct{})

	const callers = 10
	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
	)
	results := make([]*cart.Cart, callers)
	started.Add(callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			got, err := c.Get(ctx, "u1")
			assert.NoError(t, err)
			results[i] = got
		}()
	}
	started.Wait()
	time.Sleep(50 * time.Millisecond)
	close(store.gate)
	wg.Wait()

	assert.Equal(t, int32(1), store.gets.Load())

	// Every caller owns its items.
	results[0].Items[0].Quantity = 99
	for _, r := range results[1:] {
		assert.Equal(t, 1, r.Items[0].Quantity)
	}
}

func TestCartCache_InvalidationDuringFill(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(ctx context.Context, c *CartCache) error
		wantErr error
		wantQty int
	}{
		{
			name:    "Delete",
			mutate:  func(ctx context.Context, c *CartCache) error { return c.Delete(ctx, "u1") },
			wantErr: cart.ErrNotFound,
		},
		{
			name: "Save",
			mutate: func(ctx context.Context, c *CartCache) error {
				return c.Save(ctx, &cart.Cart{UserID: "u1", Items: []cart.Item{{ProductID: "p1", Quantity: 8}}})
			},
			wantQty: 8,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, store, mr := setupTestCache(t)
			ctx := context.Background()
			seed(t, store.Store, "u1", 3)
			store.hold = make(chan struct{})

			done := make(chan error, 1)
			go func() {
				_, err := c.Get(ctx, "u1")
				done <- err
			}()
			require.Eventually(t, func() bool { return store.gets.Load() == 1 }, time.Second, time.Millisecond)

			require.NoError(t, tt.mutate(ctx, c))
			close(store.hold)
			require.NoError(t, <-done)

			assert.False(t, mr.Exists(cacheKey("u1")), "old cart must not be cached")

			got, err := c.Get(ctx, "u1")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantQty, got.Items[0].Quantity)
		})
	}
}

func TestCartCache_CancelledCallerDoesNotFailOthers(t *testing.T) {
	c, store, _ := setupTestCache(t)
	seed(t, store.Store, "u1", 2)
	store.gate = make(chan struct{})

	cancelled, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.Get(cancelled, "u1")
		first <- err
	}()
	require.Eventually(t, func() bool { return store.gets.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan *cart.Cart, 1)
	go func() {
		got, err := c.Get(context.Background(), "u1")
		assert.NoError(t, err)
		second <- got
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	require.ErrorIs(t, <-first, context.Canceled)

	close(store.gate)
	got := <-second
	require.NotNil(t, got)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.Equal(t, int32(1), store.gets.Load())
}
