// Package payment describes the boundary to the card payment gateway.
package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrVerification covers every reason a payment claim cannot be trusted:
	// bad webhook signature, non-succeeded intent, metadata mismatch.
	ErrVerification = errors.New("payment verification failed")
	// ErrUnavailable is returned when the gateway cannot be reached or errors.
	ErrUnavailable = errors.New("payment gateway unavailable")
)

// Metadata keys attached to every intent for later reconciliation.
const (
	MetaOrderID = "orderId"
	MetaUserID  = "userId"
)

// EventPaymentSucceeded is the only webhook event type that mutates state.
const EventPaymentSucceeded = "payment_intent.succeeded"

// StatusSucceeded is the gateway status of a settled intent.
const StatusSucceeded = "succeeded"

// IntentRequest describes an authorization to create.
type IntentRequest struct {
	AmountCents    int64
	Currency       string
	OrderID        string
	UserID         string
	Email          string
	IdempotencyKey string
}

// Intent is the gateway's handle for one payment attempt.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	AmountCents  int64
	ReceiptEmail string
	Metadata     map[string]string
}

// OrderID returns the order identifier recorded on the intent.
func (i *Intent) OrderID() string {
	return i.Metadata[MetaOrderID]
}

// Result converts a settled intent into the record kept on the order.
func (i *Intent) Result(at time.Time) Result {
	return Result{
		ID:         i.ID,
		Status:     i.Status,
		UpdateTime: at,
		Email:      i.ReceiptEmail,
	}
}

// Event is a verified webhook delivery.
type Event struct {
	ID     string
	Type   string
	Intent *Intent
}

// Result is the gateway outcome stored on a paid order.
type Result struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	UpdateTime time.Time `json:"update_time"`
	Email      string    `json:"email_address"`
}

// Gateway is the payment provider.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
	// ParseWebhook verifies signature against the raw payload and decodes it.
	ParseWebhook(payload []byte, signature string) (*Event, error)
}

// ToCents converts an amount to integer minor units, rounding half away
// from zero.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// IdempotencyKey derives the gateway idempotency key for an order charge.
// Retrying the same order and amount always yields the same key.
func IdempotencyKey(orderID string, cents int64) string {
	return fmt.Sprintf("order:%s:%d", orderID, cents)
}
