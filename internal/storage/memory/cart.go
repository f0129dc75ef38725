// Package memory holds process-local store implementations for tests and
// single-instance development runs.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/xenking/storefront/internal/domain/cart"
)

var _ cart.Store = (*CartStore)(nil)

// CartStore keeps carts in a map. Values are copied on the way in and out so
// callers never share slices with the store.
type CartStore struct {
	mu    sync.RWMutex
	carts map[string]cart.Cart
}

// NewCartStore returns an empty CartStore.
func NewCartStore() *CartStore {
	return &CartStore{carts: make(map[string]cart.Cart)}
}

func (s *CartStore) Get(_ context.Context, userID string) (*cart.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.carts[userID]
	if !ok {
		return nil, cart.ErrNotFound
	}
	c.Items = slices.Clone(c.Items)
	return &c, nil
}

func (s *CartStore) Save(_ context.Context, c *cart.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *c
	stored.Items = slices.Clone(c.Items)
	s.carts[c.UserID] = stored
	return nil
}

func (s *CartStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, userID)
	return nil
}

// Len reports how many carts are stored.
func (s *CartStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.carts)
}
