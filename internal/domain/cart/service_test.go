package cart_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/storage/memory"
)

type mockProductRepo struct {
	byID map[string]product.Product
}

func (m *mockProductRepo) List(context.Context, product.Filter) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) Create(context.Context, *product.Product) error { return nil }
func (m *mockProductRepo) Update(context.Context, *product.Product) error { return nil }

func newService(t *testing.T) (*cart.Service, *memory.CartStore, *mockProductRepo) {
	t.Helper()
	products := &mockProductRepo{byID: map[string]product.Product{
		"p1": {ID: "p1", Name: "Mug", Price: decimal.RequireFromString("12.50"), Stock: 10},
		"p2": {ID: "p2", Name: "Tee", Price: decimal.RequireFromString("20.00"), Stock: 3},
	}}
	store := memory.NewCartStore()
	return cart.NewService(store, products), store, products
}

func TestAddItem_MergesQuantity(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "u1", "p1", 2)
	require.NoError(t, err)
	lines, err := svc.AddItem(ctx, "u1", "p1", 3)
	require.NoError(t, err)

	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)
	assert.Equal(t, "Mug", lines[0].Product.Name)
}

func TestAddItem_Validation(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "u1", "p1", 0)
	require.ErrorIs(t, err, cart.ErrInvalidQuantity)

	_, err = svc.AddItem(ctx, "u1", "missing", 1)
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestUpdateAndRemoveItem(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "u1", "p1", 1)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "u1", "p2", 1)
	require.NoError(t, err)

	lines, err := svc.UpdateItem(ctx, "u1", "p2", 3)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, 3, lines[1].Quantity)

	_, err = svc.UpdateItem(ctx, "u1", "p3", 1)
	require.ErrorIs(t, err, cart.ErrItemNotFound)

	_, err = svc.UpdateItem(ctx, "u1", "p1", -1)
	require.ErrorIs(t, err, cart.ErrInvalidQuantity)

	lines, err = svc.RemoveItem(ctx, "u1", "p1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "p2", lines[0].Product.ID)
}

func TestSnapshot_DropsStaleProducts(t *testing.T) {
	svc, store, products := newService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "u1", "p1", 1)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "u1", "p2", 2)
	require.NoError(t, err)

	delete(products.byID, "p1")

	lines, err := svc.Snapshot(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "p2", lines[0].Product.ID)

	// The stored cart still carries the stale reference; only reads filter it.
	c, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, c.Items, 2)
}

func TestSnapshot_MissingAndEmpty(t *testing.T) {
	svc, store, products := newService(t)
	ctx := context.Background()

	_, err := svc.Snapshot(ctx, "nobody")
	require.ErrorIs(t, err, cart.ErrNotFound)

	_, err = svc.AddItem(ctx, "u1", "p1", 1)
	require.NoError(t, err)
	delete(products.byID, "p1")

	_, err = svc.Snapshot(ctx, "u1")
	require.ErrorIs(t, err, cart.ErrEmpty)

	require.NoError(t, svc.Clear(ctx, "u1"))
	assert.Equal(t, 0, store.Len())
}

func TestGet_MissingCartIsEmpty(t *testing.T) {
	svc, _, _ := newService(t)

	lines, err := svc.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, lines)
}
