// Package handler exposes the storefront over HTTP.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/storefront/internal/domain/analytics"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	ImageBaseURL string
	// SecureCookie marks the session cookie Secure.
	SecureCookie bool
}

// Deps holds the domain services behind the HTTP surface.
type Deps struct {
	Orders    *order.Service
	Carts     *cart.Service
	Coupons   *coupon.Service
	Products  product.Repository
	Reviews   *product.ReviewService
	Users     *user.Service
	Analytics *analytics.Service
	Tokens    *auth.Tokens
	Keys      *auth.KeyAuthenticator
}

// Handler serves the REST API.
type Handler struct {
	Deps
	cfg Config
}

// New creates a Handler.
func New(cfg Config, deps Deps) *Handler {
	return &Handler{Deps: deps, cfg: cfg}
}

// RouterOptions lets the caller add middleware at the two points where it
// can see routing and identity.
type RouterOptions struct {
	// Observe runs inside the router before authentication, so it can read
	// the matched route pattern once the request is served.
	Observe []func(http.Handler) http.Handler
	// Limit runs after authentication and can key on the caller. The
	// gateway webhook bypasses it.
	Limit func(http.Handler) http.Handler
}

// Router builds the chi router for every API route.
func (h *Handler) Router(opts RouterOptions) chi.Router {
	r := chi.NewRouter()
	r.Use(opts.Observe...)
	r.Use(h.authenticate)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// The gateway signs the raw body and retries on its own schedule.
	r.Post("/api/orders/webhook", h.PaymentWebhook)

	r.Group(func(r chi.Router) {
		if opts.Limit != nil {
			r.Use(opts.Limit)
		}

		r.Route("/api/users", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			r.With(requireUser).Get("/me", h.Me)
		})

		r.Route("/api/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Get("/{id}", h.GetProduct)
			r.Get("/{id}/reviews", h.ListReviews)
			r.With(requireUser).Post("/{id}/reviews", h.CreateReview)
			r.With(requireAdmin).Post("/", h.CreateProduct)
			r.With(requireAdmin).Put("/{id}", h.UpdateProduct)
		})

		r.Route("/api/cart", func(r chi.Router) {
			r.Use(requireUser)
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/items", h.AddCartItem)
			r.Put("/items/{productId}", h.UpdateCartItem)
			r.Delete("/items/{productId}", h.RemoveCartItem)
		})

		r.Route("/api/coupons", func(r chi.Router) {
			r.With(requireUser).Post("/validate", h.ValidateCoupon)
			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				r.Get("/", h.ListCoupons)
				r.Post("/", h.CreateCoupon)
				r.Delete("/{code}", h.DeleteCoupon)
			})
		})

		r.Route("/api/orders", func(r chi.Router) {
			r.Use(requireUser)
			r.Post("/", h.PlaceOrder)
			r.Post("/confirm-payment", h.ConfirmPayment)
			r.Get("/user", h.ListMyOrders)
			r.Get("/{id}", h.GetOrder)
			r.With(requireAdmin).Get("/", h.ListOrders)
			r.With(requireAdmin).Put("/{id}", h.UpdateOrderStatus)
		})

		r.With(requireAdmin).Get("/api/admin/analytics", h.SalesSummary)
	})

	return r
}
