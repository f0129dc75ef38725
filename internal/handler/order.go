package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
)

const (
	headerStripeSignature = "Stripe-Signature"
	maxWebhookBody        = 64 << 10
)

type placeOrderRequest struct {
	ShippingAddress addressDTO `json:"shippingAddress"`
	PaymentMethod   string     `json:"paymentMethod"`
	CouponCode      string     `json:"couponCode"`
}

type placeOrderResponse struct {
	OrderID      string        `json:"orderId"`
	ClientSecret string        `json:"clientSecret"`
	Order        orderResponse `json:"order"`
}

type confirmPaymentRequest struct {
	PaymentIntentID string `json:"paymentIntentId"`
	OrderID         string `json:"orderId"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// PlaceOrder turns the caller's cart into an order and opens a payment
// intent for its total.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if !decode(w, r, &req) {
		return
	}
	p := caller(r)
	res, err := h.Orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		UserID: p.UserID,
		Email:  p.Email,
		ShippingAddress: order.Address{
			Address:    req.ShippingAddress.Address,
			City:       req.ShippingAddress.City,
			PostalCode: req.ShippingAddress.PostalCode,
			Country:    req.ShippingAddress.Country,
		},
		PaymentMethod: req.PaymentMethod,
		CouponCode:    req.CouponCode,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, placeOrderResponse{
		OrderID:      res.Order.ID,
		ClientSecret: res.ClientSecret,
		Order:        h.toOrder(res.Order),
	})
}

// PaymentWebhook receives gateway events. The body is read raw because the
// signature covers the exact bytes.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	err = h.Orders.HandleWebhook(r.Context(), payload, r.Header.Get(headerStripeSignature))
	switch {
	case errors.Is(err, payment.ErrVerification):
		zctx.From(r.Context()).Warn("Webhook rejected", zap.Error(err))
		writeError(w, http.StatusBadRequest, "webhook verification failed")
	case err != nil:
		respondError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
	}
}

// ConfirmPayment settles an order from the client side after checkout when
// the webhook has not arrived yet.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmPaymentRequest
	if !decode(w, r, &req) {
		return
	}
	o, err := h.Orders.ConfirmPayment(r.Context(), caller(r).UserID, req.PaymentIntentID, req.OrderID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toOrder(o))
}

// ListMyOrders returns the caller's orders.
func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Orders.ListByUser(r.Context(), caller(r).UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toOrders(orders))
}

// GetOrder returns one order. Customers only see their own; another user's
// order reads as missing.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	var (
		p   = caller(r)
		id  = chi.URLParam(r, "id")
		o   *order.Order
		err error
	)
	if p.Admin {
		o, err = h.Orders.Get(r.Context(), id)
	} else {
		o, err = h.Orders.GetForUser(r.Context(), id, p.UserID)
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toOrder(o))
}

// ListOrders pages through every order, optionally by status.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := order.Filter{
		Status: order.Status(q.Get("status")),
		Limit:  queryInt(q.Get("limit")),
		Offset: queryInt(q.Get("offset")),
	}
	if f.Status != "" && !f.Status.Valid() {
		respondError(w, r, order.ErrInvalidStatus)
		return
	}
	orders, err := h.Orders.List(r.Context(), f)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toOrders(orders))
}

// UpdateOrderStatus moves an order along the fulfillment lifecycle.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decode(w, r, &req) {
		return
	}
	o, err := h.Orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), order.Status(req.Status))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toOrder(o))
}
