package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/payment"
)

// Carts is the part of the cart service the order workflow needs.
type Carts interface {
	Snapshot(ctx context.Context, userID string) ([]cart.Line, error)
	Clear(ctx context.Context, userID string) error
}

// Coupons is the part of the coupon service the order workflow needs.
type Coupons interface {
	Lookup(ctx context.Context, code string) (*coupon.Coupon, error)
	Redeem(ctx context.Context, code string) error
	Release(ctx context.Context, code string) error
}

// Deps holds the collaborators of Service.
type Deps struct {
	Orders   Repository
	Carts    Carts
	Coupons  Coupons
	Gateway  payment.Gateway
	Notifier Notifier
	// Meter is optional; counters are discarded when nil.
	Meter    metric.Meter
	Currency string
}

// Service implements order placement, payment finalization and the
// fulfillment lifecycle.
type Service struct {
	orders   Repository
	carts    Carts
	coupons  Coupons
	gateway  payment.Gateway
	notifier Notifier
	metrics  *metrics
	currency string
	now      func() time.Time
}

// NewService creates an order Service.
func NewService(d Deps) (*Service, error) {
	m, err := newMetrics(d.Meter)
	if err != nil {
		return nil, errors.Wrap(err, "metrics")
	}
	currency := strings.ToLower(d.Currency)
	if currency == "" {
		currency = "usd"
	}
	return &Service{
		orders:   d.Orders,
		carts:    d.Carts,
		coupons:  d.Coupons,
		gateway:  d.Gateway,
		notifier: d.Notifier,
		metrics:  m,
		currency: currency,
		now:      time.Now,
	}, nil
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	UserID          string
	Email           string
	ShippingAddress Address
	PaymentMethod   string
	CouponCode      string
}

func (r PlaceOrderRequest) validate() error {
	required := []struct {
		field, value string
	}{
		{"userId", r.UserID},
		{"shippingAddress.address", r.ShippingAddress.Address},
		{"shippingAddress.city", r.ShippingAddress.City},
		{"shippingAddress.postalCode", r.ShippingAddress.PostalCode},
		{"shippingAddress.country", r.ShippingAddress.Country},
		{"paymentMethod", r.PaymentMethod},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return &ValidationError{Field: f.field, Reason: "is required"}
		}
	}
	return nil
}

// PlaceOrderResult holds the output of a successfully placed order.
type PlaceOrderResult struct {
	Order        *Order
	ClientSecret string
}

// PlaceOrder prices the caller's cart, persists a pending order and opens a
// payment intent for it. Stock is checked but not reserved. A coupon use is
// consumed here and given back if the order cannot be persisted or the
// gateway refuses the intent.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	lines, err := s.carts.Snapshot(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	var rule *coupon.Coupon
	if strings.TrimSpace(req.CouponCode) != "" {
		if rule, err = s.coupons.Lookup(ctx, req.CouponCode); err != nil {
			return nil, err
		}
	}

	pricing, err := Price(lines, rule)
	if err != nil {
		return nil, err
	}

	now := s.now()
	o := &Order{
		ID:              uuid.New().String(),
		UserID:          req.UserID,
		Email:           req.Email,
		Items:           snapshotItems(lines),
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		ItemsPrice:      pricing.Items,
		DiscountPrice:   pricing.Discount,
		TaxPrice:        pricing.Tax,
		ShippingPrice:   pricing.Shipping,
		TotalPrice:      pricing.Total,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if rule != nil {
		if err := s.coupons.Redeem(ctx, rule.Code); err != nil {
			return nil, err
		}
		o.CouponCode = rule.Code
	}

	if err := s.orders.Create(ctx, o); err != nil {
		s.releaseCoupon(ctx, o.CouponCode)
		return nil, errors.Wrap(err, "create order")
	}

	cents := payment.ToCents(o.TotalPrice)
	intent, err := s.gateway.CreateIntent(ctx, payment.IntentRequest{
		AmountCents:    cents,
		Currency:       s.currency,
		OrderID:        o.ID,
		UserID:         o.UserID,
		Email:          o.Email,
		IdempotencyKey: payment.IdempotencyKey(o.ID, cents),
	})
	if err != nil {
		// The order stays pending and unpaid; nobody will ever pay for it.
		s.releaseCoupon(ctx, o.CouponCode)
		return nil, errors.Wrap(err, "create payment intent")
	}

	if err := s.orders.SetPaymentIntent(ctx, o.ID, intent.ID); err != nil {
		// Finalization keys on the intent metadata, so the order is still payable.
		zctx.From(ctx).Warn("Failed to record payment intent",
			zap.String("order_id", o.ID),
			zap.String("intent_id", intent.ID),
			zap.Error(err),
		)
	} else {
		o.PaymentIntentID = intent.ID
	}

	s.metrics.placed.Add(ctx, 1)
	zctx.From(ctx).Info("Order placed",
		zap.String("order_id", o.ID),
		zap.String("user_id", o.UserID),
		zap.Stringer("total", o.TotalPrice),
	)

	return &PlaceOrderResult{Order: o, ClientSecret: intent.ClientSecret}, nil
}

// Quote prices the caller's cart with an optional coupon without placing
// anything or consuming a coupon use.
func (s *Service) Quote(ctx context.Context, userID, couponCode string) (*Pricing, *coupon.Coupon, error) {
	var (
		rule *coupon.Coupon
		err  error
	)
	if strings.TrimSpace(couponCode) != "" {
		if rule, err = s.coupons.Lookup(ctx, couponCode); err != nil {
			return nil, nil, err
		}
	}
	lines, err := s.carts.Snapshot(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	pricing, err := Price(lines, rule)
	if err != nil {
		return nil, nil, err
	}
	return &pricing, rule, nil
}

func snapshotItems(lines []cart.Line) []Item {
	items := make([]Item, len(lines))
	for i, l := range lines {
		var image string
		if len(l.Product.Images) > 0 {
			image = l.Product.Images[0]
		}
		items[i] = Item{
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			Quantity:  l.Quantity,
			Price:     l.Product.Price,
			Image:     image,
		}
	}
	return items
}

func (s *Service) releaseCoupon(ctx context.Context, code string) {
	if code == "" {
		return
	}
	if err := s.coupons.Release(ctx, code); err != nil {
		zctx.From(ctx).Error("Failed to release coupon",
			zap.String("coupon", code),
			zap.Error(err),
		)
	}
}

// Get returns an order by id.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.orders.Get(ctx, id)
}

// GetForUser returns an order only if userID placed it.
func (s *Service) GetForUser(ctx context.Context, id, userID string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrNotFound
	}
	return o, nil
}

// List returns orders for the admin back-office, newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]Order, error) {
	f = f.Normalize()
	if f.Status != "" && !f.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.orders.List(ctx, f)
}

// ListByUser returns the caller's own orders, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// UpdateStatus moves an order along the fulfillment lifecycle. Transitions
// outside the table leave the order untouched.
func (s *Service) UpdateStatus(ctx context.Context, id string, to Status) (*Order, error) {
	if !to.Valid() {
		return nil, ErrInvalidStatus
	}

	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, to) {
		return nil, &InvalidTransitionError{From: o.Status, To: to}
	}

	now := s.now()
	if err := s.orders.UpdateStatus(ctx, id, o.Status, to, now); err != nil {
		return nil, errors.Wrap(err, "update status")
	}
	o.ApplyStatus(to, now)

	zctx.From(ctx).Info("Order status changed",
		zap.String("order_id", id),
		zap.String("to", string(to)),
	)
	return o, nil
}
