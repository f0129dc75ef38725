package order

import (
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type metrics struct {
	placed       metric.Int64Counter
	finalized    metric.Int64Counter
	notifyFailed metric.Int64Counter
}

func newMetrics(m metric.Meter) (*metrics, error) {
	if m == nil {
		m = noop.NewMeterProvider().Meter("")
	}

	placed, err := m.Int64Counter("storefront.orders.placed",
		metric.WithDescription("Orders created in pending state"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders.placed")
	}
	finalized, err := m.Int64Counter("storefront.payments.finalized",
		metric.WithDescription("Orders marked paid"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "payments.finalized")
	}
	notifyFailed, err := m.Int64Counter("storefront.notifications.failed",
		metric.WithDescription("Paid-order notifications that could not be delivered"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "notifications.failed")
	}

	return &metrics{
		placed:       placed,
		finalized:    finalized,
		notifyFailed: notifyFailed,
	}, nil
}
