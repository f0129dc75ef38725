package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidRule is returned when an admin submits a malformed coupon.
var ErrInvalidRule = errors.New("invalid coupon definition")

// Service validates coupon codes and manages their usage counters.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a Service backed by the given Repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Lookup resolves a user-supplied code and checks expiry and usage limits.
// It does not consume a use; see Redeem.
func (s *Service) Lookup(ctx context.Context, code string) (*Coupon, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrNotFound
	}

	c, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if c.ExpiresAt.Before(s.now()) {
		return nil, ErrExpired
	}
	if c.Exhausted() {
		return nil, ErrUsageExceeded
	}

	return c, nil
}

// Redeem consumes one use of code. The repository performs the limit check
// and the increment as one conditional update, so concurrent redemptions
// cannot push the counter past the limit.
func (s *Service) Redeem(ctx context.Context, code string) error {
	if err := s.repo.Redeem(ctx, NormalizeCode(code), s.now()); err != nil {
		if errors.Is(err, ErrInvalid) {
			return err
		}
		return errors.Wrap(err, "redeem coupon")
	}
	return nil
}

// Release gives back a use consumed by Redeem.
func (s *Service) Release(ctx context.Context, code string) error {
	if err := s.repo.Release(ctx, NormalizeCode(code)); err != nil {
		return errors.Wrap(err, "release coupon")
	}
	return nil
}

// CreateRequest holds admin input for a new coupon.
type CreateRequest struct {
	Code         string
	DiscountType DiscountType
	Amount       decimal.Decimal
	ExpiresAt    time.Time
	UsageLimit   int
}

// Create validates and stores a new coupon.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Coupon, error) {
	c := &Coupon{
		Code:         NormalizeCode(req.Code),
		DiscountType: req.DiscountType,
		Amount:       req.Amount,
		ExpiresAt:    req.ExpiresAt,
		UsageLimit:   req.UsageLimit,
	}

	switch {
	case c.Code == "":
		return nil, errors.Wrap(ErrInvalidRule, "code required")
	case !c.DiscountType.Valid():
		return nil, errors.Wrapf(ErrInvalidRule, "unsupported discount type %q", req.DiscountType)
	case !c.Amount.IsPositive():
		return nil, errors.Wrap(ErrInvalidRule, "amount must be positive")
	case c.DiscountType == DiscountPercentage && c.Amount.GreaterThan(hundred):
		return nil, errors.Wrap(ErrInvalidRule, "percentage cannot exceed 100")
	case c.UsageLimit < 0:
		return nil, errors.Wrap(ErrInvalidRule, "usage limit cannot be negative")
	case !c.ExpiresAt.After(s.now()):
		return nil, errors.Wrap(ErrInvalidRule, "expiration must be in the future")
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create coupon")
	}
	return c, nil
}

// List returns every coupon.
func (s *Service) List(ctx context.Context) ([]Coupon, error) {
	return s.repo.List(ctx)
}

// Delete removes a coupon by code.
func (s *Service) Delete(ctx context.Context, code string) error {
	return s.repo.Delete(ctx, NormalizeCode(code))
}
