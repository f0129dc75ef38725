package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/product"
)

var (
	_ product.Repository       = (*ProductStore)(nil)
	_ product.ReviewRepository = (*ProductStore)(nil)
)

// ProductStore keeps the catalog and its reviews in maps.
type ProductStore struct {
	mu       sync.RWMutex
	products map[string]product.Product
	reviews  map[string][]product.Review
}

// NewProductStore returns a ProductStore holding products.
func NewProductStore(products ...product.Product) *ProductStore {
	s := &ProductStore{
		products: make(map[string]product.Product, len(products)),
		reviews:  make(map[string][]product.Review),
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *ProductStore) List(_ context.Context, f product.Filter) ([]product.Product, error) {
	f = f.Normalize()

	s.mu.RLock()
	out := make([]product.Product, 0, len(s.products))
	for _, p := range s.products {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, p)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b product.Product) int { return strings.Compare(a.ID, b.ID) })
	if f.Offset >= len(out) {
		return []product.Product{}, nil
	}
	out = out[f.Offset:]
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *ProductStore) GetByID(_ context.Context, id string) (*product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (s *ProductStore) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *ProductStore) Create(_ context.Context, p *product.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	s.products[p.ID] = *p
	return nil
}

func (s *ProductStore) Update(_ context.Context, p *product.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[p.ID]; !ok {
		return product.ErrNotFound
	}
	s.products[p.ID] = *p
	return nil
}

// decrement lowers stock, never below zero. Unknown products are skipped.
func (s *ProductStore) decrement(id string, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return
	}
	p.Stock = max(p.Stock-qty, 0)
	s.products[id] = p
}

func (s *ProductStore) AddReview(_ context.Context, r *product.Review) (*product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[r.ProductID]
	if !ok {
		return nil, product.ErrNotFound
	}
	existing := s.reviews[r.ProductID]
	if slices.ContainsFunc(existing, func(rv product.Review) bool { return rv.UserID == r.UserID }) {
		return nil, product.ErrAlreadyReviewed
	}
	existing = append(existing, *r)
	s.reviews[r.ProductID] = existing

	p.Rating, p.NumReviews = product.Summarize(existing)
	s.products[p.ID] = p
	return &p, nil
}

func (s *ProductStore) ListReviews(_ context.Context, productID string) ([]product.Review, error) {
	s.mu.RLock()
	out := slices.Clone(s.reviews[productID])
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b product.Review) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if out == nil {
		out = []product.Review{}
	}
	return out, nil
}
