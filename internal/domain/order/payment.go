package order

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/payment"
)

// FinalizePayment marks an order paid, decrements stock, clears the buyer's
// cart and sends notifications. It is safe to call any number of times for
// the same order: only the caller that wins the repository claim performs
// the side effects, everyone else gets the current order back.
func (s *Service) FinalizePayment(ctx context.Context, orderID string, res payment.Result) (*Order, error) {
	lg := zctx.From(ctx).With(zap.String("order_id", orderID))

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.IsPaid {
		lg.Debug("Order already paid")
		return o, nil
	}

	claimed, err := s.orders.MarkPaid(ctx, orderID, res, s.now())
	if err != nil {
		return nil, errors.Wrap(err, "mark paid")
	}

	o, err = s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "reload order")
	}
	if !claimed {
		lg.Debug("Order finalized concurrently")
		return o, nil
	}

	s.metrics.finalized.Add(ctx, 1)
	lg.Info("Payment finalized", zap.String("payment_id", res.ID))

	// Payment is durable from here on; the rest must not fail the call.
	if err := s.carts.Clear(ctx, o.UserID); err != nil {
		lg.Warn("Failed to clear cart", zap.String("user_id", o.UserID), zap.Error(err))
	}
	if s.notifier != nil {
		if err := s.notifier.OrderPaid(ctx, o); err != nil {
			s.metrics.notifyFailed.Add(ctx, 1)
			lg.Error("Failed to send order notifications", zap.Error(err))
		}
	}

	return o, nil
}

// HandleWebhook verifies and applies a gateway event. Only verification
// failures are returned as errors, so the gateway retries exactly those.
// Unrelated events and events that cannot be matched to an order are
// acknowledged.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}

	lg := zctx.From(ctx).With(zap.String("event_id", ev.ID), zap.String("event_type", ev.Type))
	if ev.Type != payment.EventPaymentSucceeded || ev.Intent == nil {
		lg.Debug("Ignoring webhook event")
		return nil
	}

	orderID := ev.Intent.OrderID()
	if orderID == "" {
		lg.Warn("Payment intent carries no order id", zap.String("intent_id", ev.Intent.ID))
		return nil
	}

	if _, err := s.FinalizePayment(ctx, orderID, ev.Intent.Result(s.now())); err != nil {
		if errors.Is(err, ErrNotFound) {
			lg.Warn("Payment for unknown order", zap.String("order_id", orderID))
			return nil
		}
		return errors.Wrap(err, "finalize payment")
	}
	return nil
}

// ConfirmPayment is the client-driven fallback for a missed webhook. The
// client's claim is never trusted: the intent is fetched from the gateway
// and must have succeeded for this very order.
func (s *Service) ConfirmPayment(ctx context.Context, userID, intentID, orderID string) (*Order, error) {
	switch {
	case strings.TrimSpace(intentID) == "":
		return nil, &ValidationError{Field: "paymentIntentId", Reason: "is required"}
	case strings.TrimSpace(orderID) == "":
		return nil, &ValidationError{Field: "orderId", Reason: "is required"}
	}

	o, err := s.GetForUser(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	if o.IsPaid {
		return o, nil
	}

	intent, err := s.gateway.GetIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Status != payment.StatusSucceeded {
		return nil, errors.Wrapf(payment.ErrVerification, "payment intent status %q", intent.Status)
	}
	if intent.OrderID() != orderID {
		return nil, errors.Wrap(payment.ErrVerification, "payment intent belongs to another order")
	}

	return s.FinalizePayment(ctx, orderID, intent.Result(s.now()))
}
