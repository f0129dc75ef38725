package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/order"
)

// EventOrderPaid is the event_type header of published messages.
const EventOrderPaid = "order.paid"

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter creates a writer for topic on the given brokers.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// PaidEvent is the payload of an order.paid message.
type PaidEvent struct {
	OrderID    string          `json:"order_id"`
	UserID     string          `json:"user_id"`
	Email      string          `json:"email,omitempty"`
	Total      decimal.Decimal `json:"total"`
	CouponCode string          `json:"coupon_code,omitempty"`
	PaymentID  string          `json:"payment_id,omitempty"`
	Items      []order.Item    `json:"items"`
	PaidAt     time.Time       `json:"paid_at"`
}

// KafkaPublisher emits an order.paid event keyed by order id, so every
// event for one order lands on the same partition.
type KafkaPublisher struct {
	w MessageWriter
}

var _ order.Notifier = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a KafkaPublisher.
func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{w: w}
}

func (p *KafkaPublisher) OrderPaid(ctx context.Context, o *order.Order) error {
	ev := PaidEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		Email:      o.Email,
		Total:      o.TotalPrice,
		CouponCode: o.CouponCode,
		Items:      o.Items,
	}
	if o.PaidAt != nil {
		ev.PaidAt = *o.PaidAt
	}
	if o.PaymentResult != nil {
		ev.PaymentID = o.PaymentResult.ID
	}

	value, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}

	msg := kafka.Message{
		Key:   []byte(o.ID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventOrderPaid)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return errors.Wrap(err, "publish order.paid")
	}
	return nil
}
