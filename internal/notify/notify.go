// Package notify delivers paid-order events to customers, operators and
// downstream consumers.
package notify

import (
	"context"
	"errors"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/order"
)

var (
	_ order.Notifier = (Fanout)(nil)
	_ order.Notifier = LogNotifier{}
)

// Fanout calls every notifier in order and joins their errors. One failing
// sink does not stop the others.
type Fanout []order.Notifier

func (f Fanout) OrderPaid(ctx context.Context, o *order.Order) error {
	var errs []error
	for _, n := range f {
		if err := n.OrderPaid(ctx, o); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier only logs. It is the default when no mail or broker is set up.
type LogNotifier struct{}

func (LogNotifier) OrderPaid(ctx context.Context, o *order.Order) error {
	zctx.From(ctx).Info("Order paid",
		zap.String("order_id", o.ID),
		zap.String("user_id", o.UserID),
		zap.Stringer("total", o.TotalPrice),
	)
	return nil
}
