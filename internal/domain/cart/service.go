package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/product"
)

// Line is a cart item with its product reference resolved.
type Line struct {
	Product  product.Product
	Quantity int
}

// Service implements cart mutations and the snapshot read used at checkout.
type Service struct {
	store    Store
	products product.Repository
	now      func() time.Time
}

// NewService creates a cart Service.
func NewService(store Store, products product.Repository) *Service {
	return &Service{store: store, products: products, now: time.Now}
}

// Snapshot loads the user's cart and resolves every product in one batch.
// Lines referencing products that no longer exist are dropped. An absent
// cart is reported as ErrNotFound, a cart with nothing left as ErrEmpty.
func (s *Service) Snapshot(ctx context.Context, userID string) ([]Line, error) {
	c, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	lines, err := s.resolve(ctx, c)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmpty
	}
	return lines, nil
}

// Get returns the user's resolved cart lines; a missing cart reads as empty.
func (s *Service) Get(ctx context.Context, userID string) ([]Line, error) {
	c, err := s.store.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return []Line{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, c)
}

func (s *Service) resolve(ctx context.Context, c *Cart) ([]Line, error) {
	if len(c.Items) == 0 {
		return []Line{}, nil
	}

	fetched, err := s.products.GetByIDs(ctx, c.ProductIDs())
	if err != nil {
		return nil, errors.Wrap(err, "get cart products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	lines := make([]Line, 0, len(c.Items))
	for _, it := range c.Items {
		p, ok := byID[it.ProductID]
		if !ok || it.Quantity < 1 {
			continue
		}
		lines = append(lines, Line{Product: p, Quantity: it.Quantity})
	}
	return lines, nil
}

// AddItem puts qty units of productID into the cart, adding to any
// quantity already present.
func (s *Service) AddItem(ctx context.Context, userID, productID string, qty int) ([]Line, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}

	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if i := c.Find(productID); i >= 0 {
		c.Items[i].Quantity += qty
	} else {
		c.Items = append(c.Items, Item{ProductID: productID, Quantity: qty, AddedAt: now})
	}
	return s.save(ctx, c, now)
}

// UpdateItem sets the quantity of a product already in the cart.
func (s *Service) UpdateItem(ctx context.Context, userID, productID string, qty int) ([]Line, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}

	c, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	i := c.Find(productID)
	if i < 0 {
		return nil, ErrItemNotFound
	}
	c.Items[i].Quantity = qty
	return s.save(ctx, c, s.now())
}

// RemoveItem drops a product from the cart.
func (s *Service) RemoveItem(ctx context.Context, userID, productID string) ([]Line, error) {
	c, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	i := c.Find(productID)
	if i < 0 {
		return nil, ErrItemNotFound
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return s.save(ctx, c, s.now())
}

// Clear deletes the user's cart.
func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.store.Delete(ctx, userID)
}

func (s *Service) load(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.store.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return &Cart{UserID: userID, CreatedAt: s.now()}, nil
	}
	return c, err
}

func (s *Service) save(ctx context.Context, c *Cart, now time.Time) ([]Line, error) {
	c.UpdatedAt = now
	if err := s.store.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return s.resolve(ctx, c)
}
