//go:build integration

package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"

	"github.com/xenking/storefront/internal/domain/cart"
)

func setupTestStore(t *testing.T) *CartStore {
	t.Helper()
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := Connect(ctx, uri, "storefront_test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Client().Disconnect(ctx) })

	store := NewCartStore(db)
	require.NoError(t, store.CreateIndexes(ctx))
	return store
}

func TestCartStore(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "u1")
	require.ErrorIs(t, err, cart.ErrNotFound)

	now := time.Now().UTC().Truncate(time.Millisecond)
	c := &cart.Cart{
		UserID:    "u1",
		Items:     []cart.Item{{ProductID: "p1", Quantity: 2, AddedAt: now}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.Save(ctx, c))

	c.Items = append(c.Items, cart.Item{ProductID: "p2", Quantity: 1, AddedAt: now})
	require.NoError(t, store.Save(ctx, c))

	got, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "p2", got.Items[1].ProductID)
	assert.True(t, now.Equal(got.CreatedAt))

	require.NoError(t, store.Delete(ctx, "u1"))
	require.NoError(t, store.Delete(ctx, "u1"))
	_, err = store.Get(ctx, "u1")
	require.ErrorIs(t, err, cart.ErrNotFound)

	require.NoError(t, store.Ping(ctx))
}
