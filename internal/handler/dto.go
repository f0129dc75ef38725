package handler

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/analytics"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
)

// money renders amounts as JSON numbers with exactly two decimals.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

func toUser(u *user.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
	}
}

type productResponse struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Price       json.Number `json:"price"`
	Category    string      `json:"category"`
	Stock       int         `json:"countInStock"`
	Rating      json.Number `json:"rating"`
	NumReviews  int         `json:"numReviews"`
	Images      []string    `json:"images"`
}

// productRequest is the admin create/update body.
type productRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Stock       int             `json:"countInStock"`
	Images      []string        `json:"images"`
}

func (h *Handler) imageURL(path string) string {
	if path == "" || h.cfg.ImageBaseURL == "" || strings.Contains(path, "://") {
		return path
	}
	return strings.TrimRight(h.cfg.ImageBaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func (h *Handler) toProduct(p product.Product) productResponse {
	images := make([]string, len(p.Images))
	for i, img := range p.Images {
		images[i] = h.imageURL(img)
	}
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       money(p.Price),
		Category:    p.Category,
		Stock:       p.Stock,
		Rating:      json.Number(p.Rating.StringFixed(1)),
		NumReviews:  p.NumReviews,
		Images:      images,
	}
}

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type reviewResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

func toReview(r product.Review) reviewResponse {
	return reviewResponse{
		ID:        r.ID,
		UserID:    r.UserID,
		Name:      r.Name,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
	}
}

type createReviewResponse struct {
	Review     reviewResponse `json:"review"`
	Rating     json.Number    `json:"rating"`
	NumReviews int            `json:"numReviews"`
}

type cartLineResponse struct {
	ProductID string      `json:"productId"`
	Name      string      `json:"name"`
	Price     json.Number `json:"price"`
	Image     string      `json:"image,omitempty"`
	Stock     int         `json:"countInStock"`
	Quantity  int         `json:"quantity"`
}

type cartResponse struct {
	Items      []cartLineResponse `json:"items"`
	ItemsPrice json.Number        `json:"itemsPrice"`
}

func (h *Handler) toCart(lines []cart.Line) cartResponse {
	out := cartResponse{Items: make([]cartLineResponse, len(lines))}
	subtotal := decimal.Zero
	for i, l := range lines {
		var image string
		if len(l.Product.Images) > 0 {
			image = h.imageURL(l.Product.Images[0])
		}
		out.Items[i] = cartLineResponse{
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			Price:     money(l.Product.Price),
			Image:     image,
			Stock:     l.Product.Stock,
			Quantity:  l.Quantity,
		}
		subtotal = subtotal.Add(l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	out.ItemsPrice = money(subtotal)
	return out
}

type couponResponse struct {
	Code         string      `json:"code"`
	DiscountType string      `json:"discountType"`
	Amount       json.Number `json:"amount"`
	ExpiresAt    time.Time   `json:"expirationDate"`
	UsageLimit   int         `json:"usageLimit"`
	UsageCount   int         `json:"usageCount"`
}

func toCoupon(c *coupon.Coupon) couponResponse {
	return couponResponse{
		Code:         c.Code,
		DiscountType: string(c.DiscountType),
		Amount:       money(c.Amount),
		ExpiresAt:    c.ExpiresAt,
		UsageLimit:   c.UsageLimit,
		UsageCount:   c.UsageCount,
	}
}

type couponRequest struct {
	Code         string          `json:"code"`
	DiscountType string          `json:"discountType"`
	Amount       decimal.Decimal `json:"amount"`
	ExpiresAt    time.Time       `json:"expirationDate"`
	UsageLimit   int             `json:"usageLimit"`
}

type pricingResponse struct {
	ItemsPrice    json.Number `json:"itemsPrice"`
	DiscountPrice json.Number `json:"discountPrice"`
	TaxPrice      json.Number `json:"taxPrice"`
	ShippingPrice json.Number `json:"shippingPrice"`
	TotalPrice    json.Number `json:"totalPrice"`
}

func toPricing(p *order.Pricing) pricingResponse {
	return pricingResponse{
		ItemsPrice:    money(p.Items),
		DiscountPrice: money(p.Discount),
		TaxPrice:      money(p.Tax),
		ShippingPrice: money(p.Shipping),
		TotalPrice:    money(p.Total),
	}
}

type addressDTO struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type orderItemResponse struct {
	ProductID string      `json:"productId"`
	Name      string      `json:"name"`
	Quantity  int         `json:"quantity"`
	Price     json.Number `json:"price"`
	Image     string      `json:"image,omitempty"`
}

type paymentResultResponse struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	UpdateTime   time.Time `json:"updateTime"`
	EmailAddress string    `json:"emailAddress,omitempty"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	UserID          string              `json:"userId"`
	Email           string              `json:"email,omitempty"`
	Items           []orderItemResponse `json:"orderItems"`
	ShippingAddress addressDTO          `json:"shippingAddress"`
	PaymentMethod   string              `json:"paymentMethod"`
	CouponCode      string              `json:"couponCode,omitempty"`
	pricingResponse
	PaymentIntentID string                 `json:"paymentIntentId,omitempty"`
	IsPaid          bool                   `json:"isPaid"`
	PaidAt          *time.Time             `json:"paidAt,omitempty"`
	PaymentResult   *paymentResultResponse `json:"paymentResult,omitempty"`
	Status          string                 `json:"status"`
	IsDelivered     bool                   `json:"isDelivered"`
	DeliveredAt     *time.Time             `json:"deliveredAt,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

func (h *Handler) toOrder(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     money(it.Price),
			Image:     h.imageURL(it.Image),
		}
	}
	resp := orderResponse{
		ID:     o.ID,
		UserID: o.UserID,
		Email:  o.Email,
		Items:  items,
		ShippingAddress: addressDTO{
			Address:    o.ShippingAddress.Address,
			City:       o.ShippingAddress.City,
			PostalCode: o.ShippingAddress.PostalCode,
			Country:    o.ShippingAddress.Country,
		},
		PaymentMethod: o.PaymentMethod,
		CouponCode:    o.CouponCode,
		pricingResponse: toPricing(&order.Pricing{
			Items:    o.ItemsPrice,
			Discount: o.DiscountPrice,
			Tax:      o.TaxPrice,
			Shipping: o.ShippingPrice,
			Total:    o.TotalPrice,
		}),
		PaymentIntentID: o.PaymentIntentID,
		IsPaid:          o.IsPaid,
		PaidAt:          o.PaidAt,
		Status:          string(o.Status),
		IsDelivered:     o.IsDelivered,
		DeliveredAt:     o.DeliveredAt,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	if res := o.PaymentResult; res != nil {
		resp.PaymentResult = toPaymentResult(res)
	}
	return resp
}

func toPaymentResult(res *payment.Result) *paymentResultResponse {
	return &paymentResultResponse{
		ID:           res.ID,
		Status:       res.Status,
		UpdateTime:   res.UpdateTime,
		EmailAddress: res.Email,
	}
}

func (h *Handler) toOrders(orders []order.Order) []orderResponse {
	out := make([]orderResponse, len(orders))
	for i := range orders {
		out[i] = h.toOrder(&orders[i])
	}
	return out
}

type productSalesResponse struct {
	ProductID string      `json:"productId"`
	Name      string      `json:"name"`
	Units     int         `json:"units"`
	Revenue   json.Number `json:"revenue"`
}

type analyticsResponse struct {
	Revenue        json.Number            `json:"revenue"`
	PaidOrders     int                    `json:"paidOrders"`
	OrdersByStatus map[string]int         `json:"ordersByStatus"`
	TopProducts    []productSalesResponse `json:"topProducts"`
	GeneratedAt    time.Time              `json:"generatedAt"`
}

func toAnalytics(s *analytics.Summary) analyticsResponse {
	top := make([]productSalesResponse, len(s.TopProducts))
	for i, p := range s.TopProducts {
		top[i] = productSalesResponse{
			ProductID: p.ProductID,
			Name:      p.Name,
			Units:     p.Units,
			Revenue:   money(p.Revenue),
		}
	}
	return analyticsResponse{
		Revenue:        money(s.Revenue),
		PaidOrders:     s.PaidOrders,
		OrdersByStatus: s.OrdersByStatus,
		TopProducts:    top,
		GeneratedAt:    s.GeneratedAt,
	}
}
