package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage-based discount to the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed monetary discount capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

var (
	// ErrInvalid is the umbrella error for every reason a code cannot be
	// applied. Callers facing end users should only ever report this one.
	ErrInvalid = errors.New("invalid coupon code")

	// ErrNotFound is returned when no coupon matches the code.
	ErrNotFound = errors.Wrap(ErrInvalid, "coupon not found")
	// ErrExpired is returned when a coupon is past its expiration date.
	ErrExpired = errors.Wrap(ErrInvalid, "coupon expired")
	// ErrUsageExceeded is returned when a coupon has exhausted its allowed uses.
	ErrUsageExceeded = errors.Wrap(ErrInvalid, "coupon usage limit reached")

	// ErrExists is returned when creating a code that is already taken.
	ErrExists = errors.New("coupon already exists")
)

// Coupon is a discount code and its usage bookkeeping.
type Coupon struct {
	Code         string
	DiscountType DiscountType
	Amount       decimal.Decimal
	ExpiresAt    time.Time
	// UsageLimit of zero means unlimited.
	UsageLimit int
	UsageCount int
	CreatedAt  time.Time
}

// NormalizeCode canonicalizes user input into the stored code form.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

var hundred = decimal.NewFromInt(100)

// Discount returns the amount this coupon takes off subtotal. The result is
// never negative and never exceeds the subtotal.
func (c *Coupon) Discount(subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		amount = subtotal.Mul(c.Amount).Div(hundred)
	case DiscountFixed:
		amount = c.Amount
	}

	if amount.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(amount, subtotal).Round(2)
}

// Exhausted reports whether the usage limit has been reached.
func (c *Coupon) Exhausted() bool {
	return c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit
}

// Repository provides lookup and mutation of coupons. Codes passed in are
// already normalized.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	// Redeem increments the usage counter only while the coupon is unexpired
	// and under its limit. It returns ErrUsageExceeded when the guard fails.
	Redeem(ctx context.Context, code string, now time.Time) error
	// Release undoes a Redeem, never dropping the counter below zero.
	Release(ctx context.Context, code string) error
	List(ctx context.Context) ([]Coupon, error)
	Create(ctx context.Context, c *Coupon) error
	Delete(ctx context.Context, code string) error
}
