package handler

import "net/http"

// SalesSummary returns revenue, order counts and best sellers.
func (h *Handler) SalesSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.Deps.Analytics.Summary(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAnalytics(s))
}
