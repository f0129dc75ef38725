package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
)

var _ order.Repository = (*OrderStore)(nil)

// ErrDuplicate is returned when creating an order whose id already exists.
var ErrDuplicate = errors.New("duplicate order id")

// OrderStore keeps orders in a map and settles stock against a ProductStore.
// MarkPaid holds the store lock for the claim and the stock update, which
// gives it the same all-or-nothing behavior as the SQL transaction.
type OrderStore struct {
	mu       sync.Mutex
	orders   map[string]order.Order
	products *ProductStore
}

// NewOrderStore returns an empty OrderStore.
func NewOrderStore(products *ProductStore) *OrderStore {
	return &OrderStore{orders: make(map[string]order.Order), products: products}
}

func (s *OrderStore) Create(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[o.ID]; ok {
		return ErrDuplicate
	}
	s.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (s *OrderStore) Get(_ context.Context, id string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	o = cloneOrder(o)
	return &o, nil
}

func (s *OrderStore) List(_ context.Context, f order.Filter) ([]order.Order, error) {
	f = f.Normalize()
	all := s.collect(func(o order.Order) bool {
		return f.Status == "" || o.Status == f.Status
	})
	if f.Offset >= len(all) {
		return []order.Order{}, nil
	}
	all = all[f.Offset:]
	if len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, nil
}

func (s *OrderStore) ListByUser(_ context.Context, userID string) ([]order.Order, error) {
	return s.collect(func(o order.Order) bool { return o.UserID == userID }), nil
}

func (s *OrderStore) collect(keep func(order.Order) bool) []order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]order.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if keep(o) {
			out = append(out, cloneOrder(o))
		}
	}
	slices.SortFunc(out, func(a, b order.Order) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out
}

func (s *OrderStore) SetPaymentIntent(_ context.Context, id, intentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	o.PaymentIntentID = intentID
	s.orders[id] = o
	return nil
}

func (s *OrderStore) MarkPaid(_ context.Context, id string, res payment.Result, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return false, order.ErrNotFound
	}
	if o.IsPaid {
		return false, nil
	}

	o.ApplyPayment(res, at)
	s.orders[id] = o
	if s.products != nil {
		for _, it := range o.Items {
			s.products.decrement(it.ProductID, it.Quantity)
		}
	}
	return true, nil
}

func (s *OrderStore) UpdateStatus(_ context.Context, id string, from, to order.Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	if o.Status != from {
		return order.ErrConflict
	}
	o.ApplyStatus(to, at)
	s.orders[id] = o
	return nil
}

func cloneOrder(o order.Order) order.Order {
	o.Items = slices.Clone(o.Items)
	return o
}
