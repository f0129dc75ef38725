package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/coupon"
)

type validateCouponRequest struct {
	CouponCode string `json:"couponCode"`
}

type validateCouponResponse struct {
	Coupon couponResponse `json:"coupon"`
	pricingResponse
}

// ValidateCoupon previews the caller's cart total with a coupon applied.
// No use is consumed.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if !decode(w, r, &req) {
		return
	}
	if req.CouponCode == "" {
		respondError(w, r, coupon.ErrNotFound)
		return
	}
	pricing, c, err := h.Orders.Quote(r.Context(), caller(r).UserID, req.CouponCode)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, validateCouponResponse{
		Coupon:          toCoupon(c),
		pricingResponse: toPricing(pricing),
	})
}

// ListCoupons returns every coupon.
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.Coupons.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]couponResponse, len(coupons))
	for i := range coupons {
		out[i] = toCoupon(&coupons[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateCoupon adds a coupon.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.Coupons.Create(r.Context(), coupon.CreateRequest{
		Code:         req.Code,
		DiscountType: coupon.DiscountType(req.DiscountType),
		Amount:       req.Amount,
		ExpiresAt:    req.ExpiresAt,
		UsageLimit:   req.UsageLimit,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCoupon(c))
}

// DeleteCoupon removes a coupon by code.
func (h *Handler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	err := h.Coupons.Delete(r.Context(), chi.URLParam(r, "code"))
	switch {
	case errors.Is(err, coupon.ErrNotFound):
		// Admins get the real reason, not the collapsed customer message.
		writeError(w, http.StatusNotFound, "coupon not found")
	case err != nil:
		respondError(w, r, err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}
