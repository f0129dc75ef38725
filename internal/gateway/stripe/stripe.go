// Package stripe adapts the Stripe PaymentIntents API to payment.Gateway.
package stripe

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/sony/gobreaker/v2"
	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/payment"
)

// Intents is the subset of the PaymentIntents client used by the gateway.
type Intents interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// Config configures the gateway.
type Config struct {
	SecretKey     string
	WebhookSecret string
	// FailureThreshold consecutive upstream failures open the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
}

var _ payment.Gateway = (*Gateway)(nil)

// Gateway talks to Stripe through a circuit breaker. Card and request
// errors do not count as breaker failures; only transport and server errors
// do.
type Gateway struct {
	intents       Intents
	webhookSecret string
	breaker       *gobreaker.CircuitBreaker[*stripe.PaymentIntent]
}

// New creates a Gateway using the official Stripe client.
func New(cfg Config, lg *zap.Logger) *Gateway {
	sc := client.New(cfg.SecretKey, nil)
	return NewWithIntents(sc.PaymentIntents, cfg, lg)
}

// NewWithIntents creates a Gateway over an arbitrary Intents implementation.
func NewWithIntents(intents Intents, cfg Config, lg *zap.Logger) *Gateway {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if lg == nil {
		lg = zap.NewNop()
	}

	breaker := gobreaker.NewCircuitBreaker[*stripe.PaymentIntent](gobreaker.Settings{
		Name:        "stripe",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !upstreamFault(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			lg.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})

	return &Gateway{
		intents:       intents,
		webhookSecret: cfg.WebhookSecret,
		breaker:       breaker,
	}
}

// upstreamFault reports whether err says Stripe itself is unhealthy, as
// opposed to rejecting this particular request.
func upstreamFault(err error) bool {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return true
	}
	return se.HTTPStatusCode == 0 ||
		se.HTTPStatusCode >= http.StatusInternalServerError ||
		se.HTTPStatusCode == http.StatusTooManyRequests
}

// CreateIntent opens a PaymentIntent with automatic payment methods.
func (g *Gateway) CreateIntent(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountCents),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata(payment.MetaOrderID, req.OrderID)
	params.AddMetadata(payment.MetaUserID, req.UserID)
	if req.Email != "" {
		params.ReceiptEmail = stripe.String(req.Email)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := g.breaker.Execute(func() (*stripe.PaymentIntent, error) {
		return g.intents.New(params)
	})
	if err != nil {
		return nil, errors.Wrap(payment.ErrUnavailable, describe(err))
	}
	return convert(pi), nil
}

// GetIntent fetches the current state of a PaymentIntent. An id Stripe does
// not know is a verification failure, not an outage.
func (g *Gateway) GetIntent(ctx context.Context, id string) (*payment.Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.breaker.Execute(func() (*stripe.PaymentIntent, error) {
		return g.intents.Get(id, params)
	})
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.HTTPStatusCode == http.StatusNotFound {
			return nil, errors.Wrap(payment.ErrVerification, "unknown payment intent")
		}
		return nil, errors.Wrap(payment.ErrUnavailable, describe(err))
	}
	return convert(pi), nil
}

// ParseWebhook verifies the Stripe-Signature header against the raw body.
// Events that are not about a PaymentIntent come back without an Intent.
func (g *Gateway) ParseWebhook(payload []byte, signature string) (*payment.Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return nil, errors.Wrap(payment.ErrVerification, err.Error())
	}

	out := &payment.Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		return out, nil
	}
	if obj, _ := ev.Data.Object["object"].(string); obj != "payment_intent" {
		return out, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
		return nil, errors.Wrap(payment.ErrVerification, "malformed payment intent")
	}
	out.Intent = convert(&pi)
	return out, nil
}

func convert(pi *stripe.PaymentIntent) *payment.Intent {
	return &payment.Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		AmountCents:  pi.Amount,
		ReceiptEmail: pi.ReceiptEmail,
		Metadata:     pi.Metadata,
	}
}

func describe(err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit open"
	}
	var se *stripe.Error
	if errors.As(err, &se) && se.Msg != "" {
		return se.Msg
	}
	return err.Error()
}
