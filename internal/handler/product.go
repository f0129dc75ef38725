package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/storefront/internal/domain/product"
)

// ListProducts returns a page of the catalog filtered by category and a name
// search.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := product.Filter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Limit:    queryInt(q.Get("limit")),
		Offset:   queryInt(q.Get("offset")),
	}
	products, err := h.Products.List(r.Context(), f.Normalize())
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]productResponse, len(products))
	for i, p := range products {
		out[i] = h.toProduct(p)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetProduct returns a single product by ID.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toProduct(*p))
}

// CreateProduct adds a catalog entry.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decode(w, r, &req) {
		return
	}
	p := req.apply(&product.Product{})
	if err := p.Validate(); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.Products.Create(r.Context(), p); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toProduct(*p))
}

// UpdateProduct replaces the editable fields of a catalog entry. Rating and
// review counts are kept.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.Products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	req.apply(p)
	if err := p.Validate(); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.Products.Update(r.Context(), p); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toProduct(*p))
}

// ListReviews returns a product's reviews, newest first.
func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.Reviews.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]reviewResponse, len(reviews))
	for i, rv := range reviews {
		out[i] = toReview(rv)
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateReview records the caller's review. Each user reviews a product once.
func (h *Handler) CreateReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if !decode(w, r, &req) {
		return
	}
	p := caller(r)
	rv, updated, err := h.Reviews.Add(r.Context(), product.Review{
		ProductID: chi.URLParam(r, "id"),
		UserID:    p.UserID,
		Name:      p.Name,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createReviewResponse{
		Review:     toReview(*rv),
		Rating:     json.Number(updated.Rating.StringFixed(1)),
		NumReviews: updated.NumReviews,
	})
}

func (req productRequest) apply(p *product.Product) *product.Product {
	p.Name = req.Name
	p.Description = req.Description
	p.Price = req.Price
	p.Category = req.Category
	p.Stock = req.Stock
	p.Images = req.Images
	return p
}

// queryInt parses a paging parameter; junk reads as zero and is replaced by
// the filter defaults.
func queryInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
