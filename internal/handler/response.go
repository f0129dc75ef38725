package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
)

const maxBodyBytes = 1 << 20

// Error is the body of every non-2xx response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Error{Code: status, Message: msg})
}

// decode reads a JSON body into v, rejecting unknown fields and trailing
// data.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	if dec.Decode(&struct{}{}) != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid JSON body: trailing data")
		return false
	}
	return true
}

// respondError maps domain errors to HTTP statuses. Anything unrecognized is
// logged and reported as a 500 without details.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *order.ValidationError
		stock      *order.InsufficientStockError
		transition *order.InvalidTransitionError
	)

	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Error())
	case errors.As(err, &stock):
		writeError(w, http.StatusUnprocessableEntity, stock.Error())
	case errors.As(err, &transition):
		writeError(w, http.StatusConflict, transition.Error())
	case errors.Is(err, coupon.ErrInvalid):
		writeError(w, http.StatusUnprocessableEntity, "invalid coupon code")

	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, cart.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, user.ErrNotFound):
		writeError(w, http.StatusNotFound, rootMessage(err))

	case errors.Is(err, cart.ErrEmpty),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, product.ErrInvalid),
		errors.Is(err, coupon.ErrInvalidRule),
		errors.Is(err, user.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, payment.ErrVerification):
		writeError(w, http.StatusBadRequest, "payment verification failed")

	case errors.Is(err, order.ErrConflict),
		errors.Is(err, user.ErrEmailTaken),
		errors.Is(err, coupon.ErrExists),
		errors.Is(err, product.ErrAlreadyReviewed):
		writeError(w, http.StatusConflict, rootMessage(err))

	case errors.Is(err, user.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, user.ErrInvalidCredentials.Error())
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")

	case errors.Is(err, payment.ErrUnavailable):
		zctx.From(r.Context()).Warn("Payment gateway unavailable", zap.Error(err))
		writeError(w, http.StatusBadGateway, "payment provider unavailable")

	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// rootMessage strips wrapping context so internal call paths do not leak
// into responses.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
