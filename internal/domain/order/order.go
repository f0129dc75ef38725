package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/payment"
)

// Order is a placed purchase. Items and prices are frozen at placement;
// afterwards only the payment fields and the fulfillment status change.
type Order struct {
	ID              string
	UserID          string
	Email           string
	Items           []Item
	ShippingAddress Address
	PaymentMethod   string
	CouponCode      string

	ItemsPrice    decimal.Decimal
	DiscountPrice decimal.Decimal
	TaxPrice      decimal.Decimal
	ShippingPrice decimal.Decimal
	TotalPrice    decimal.Decimal

	PaymentIntentID string
	IsPaid          bool
	PaidAt          *time.Time
	PaymentResult   *payment.Result

	Status      Status
	IsDelivered bool
	DeliveredAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item is a line snapshot taken from the cart at placement time.
type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image,omitempty"`
}

// Address is the shipping destination.
type Address struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// ApplyStatus moves the order to s. Entering delivered stamps the delivery
// time; any other status clears it.
func (o *Order) ApplyStatus(s Status, at time.Time) {
	o.Status = s
	o.UpdatedAt = at
	if s == StatusDelivered {
		o.IsDelivered = true
		o.DeliveredAt = &at
		return
	}
	o.IsDelivered = false
	o.DeliveredAt = nil
}

// ApplyPayment records a successful payment and starts processing.
func (o *Order) ApplyPayment(res payment.Result, at time.Time) {
	o.IsPaid = true
	o.PaidAt = &at
	o.PaymentResult = &res
	o.Status = StatusProcessing
	o.UpdatedAt = at
}

// Filter narrows the admin order listing.
type Filter struct {
	Status Status
	Limit  int
	Offset int
}

// Normalize clamps paging to sane bounds.
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	// Get returns ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, f Filter) ([]Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	SetPaymentIntent(ctx context.Context, id, intentID string) error
	// MarkPaid claims an unpaid order and, in the same atomic unit, records
	// the payment and decrements the stock of every line (floored at zero).
	// It reports false without changing anything when the order is already
	// paid.
	MarkPaid(ctx context.Context, id string, res payment.Result, at time.Time) (bool, error)
	// UpdateStatus changes the status only while it still equals from,
	// returning ErrConflict otherwise.
	UpdateStatus(ctx context.Context, id string, from, to Status, at time.Time) error
}

// Notifier is told about every order that has just been paid.
type Notifier interface {
	OrderPaid(ctx context.Context, o *Order) error
}
