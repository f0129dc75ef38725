package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type cartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

// GetCart returns the caller's cart with live product data.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	lines, err := h.Carts.Get(r.Context(), caller(r).UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toCart(lines))
}

// AddCartItem adds units of a product, merging with an existing line.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if !decode(w, r, &req) {
		return
	}
	lines, err := h.Carts.AddItem(r.Context(), caller(r).UserID, req.ProductID, req.Quantity)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toCart(lines))
}

// UpdateCartItem sets the quantity of a line.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if !decode(w, r, &req) {
		return
	}
	lines, err := h.Carts.UpdateItem(r.Context(), caller(r).UserID, chi.URLParam(r, "productId"), req.Quantity)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toCart(lines))
}

// RemoveCartItem drops a line.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	lines, err := h.Carts.RemoveItem(r.Context(), caller(r).UserID, chi.URLParam(r, "productId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toCart(lines))
}

// ClearCart deletes the caller's cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.Carts.Clear(r.Context(), caller(r).UserID); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
