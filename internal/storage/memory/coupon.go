package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/xenking/storefront/internal/domain/coupon"
)

var _ coupon.Repository = (*CouponStore)(nil)

// CouponStore keeps coupons keyed by normalized code.
type CouponStore struct {
	mu      sync.Mutex
	coupons map[string]coupon.Coupon
}

// NewCouponStore returns a CouponStore holding coupons.
func NewCouponStore(coupons ...coupon.Coupon) *CouponStore {
	s := &CouponStore{coupons: make(map[string]coupon.Coupon, len(coupons))}
	for _, c := range coupons {
		s.coupons[c.Code] = c
	}
	return s
}

func (s *CouponStore) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.coupons[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return &c, nil
}

func (s *CouponStore) Redeem(_ context.Context, code string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.coupons[code]
	switch {
	case !ok:
		return coupon.ErrNotFound
	case c.ExpiresAt.Before(now):
		return coupon.ErrExpired
	case c.Exhausted():
		return coupon.ErrUsageExceeded
	}
	c.UsageCount++
	s.coupons[code] = c
	return nil
}

func (s *CouponStore) Release(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.coupons[code]; ok && c.UsageCount > 0 {
		c.UsageCount--
		s.coupons[code] = c
	}
	return nil
}

func (s *CouponStore) List(context.Context) ([]coupon.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]coupon.Coupon, 0, len(s.coupons))
	for _, c := range s.coupons {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b coupon.Coupon) int { return strings.Compare(a.Code, b.Code) })
	return out, nil
}

func (s *CouponStore) Create(_ context.Context, c *coupon.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.coupons[c.Code]; ok {
		return coupon.ErrExists
	}
	s.coupons[c.Code] = *c
	return nil
}

func (s *CouponStore) Delete(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.coupons[code]; !ok {
		return coupon.ErrNotFound
	}
	delete(s.coupons, code)
	return nil
}
