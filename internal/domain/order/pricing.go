package order

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
)

var (
	// TaxRate is applied to the discounted subtotal.
	TaxRate = decimal.RequireFromString("0.10")
	// ShippingFlat is charged once per order.
	ShippingFlat = decimal.NewFromInt(10)
)

// Pricing is the breakdown of an order total.
type Pricing struct {
	Items    decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// Price computes the order total for resolved cart lines and an optional
// coupon. Every line must be covered by current stock.
func Price(lines []cart.Line, c *coupon.Coupon) (Pricing, error) {
	subtotal := decimal.Zero
	for _, l := range lines {
		if !l.Product.InStock(l.Quantity) {
			return Pricing{}, &InsufficientStockError{
				ProductID: l.Product.ID,
				Name:      l.Product.Name,
				Requested: l.Quantity,
				Available: l.Product.Stock,
			}
		}
		subtotal = subtotal.Add(l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	discount := decimal.Zero
	if c != nil {
		discount = c.Discount(subtotal)
	}

	taxable := subtotal.Sub(discount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	tax := taxable.Mul(TaxRate).Round(2)

	return Pricing{
		Items:    subtotal.Round(2),
		Discount: discount.Round(2),
		Tax:      tax,
		Shipping: ShippingFlat,
		Total:    taxable.Add(tax).Add(ShippingFlat).Round(2),
	}, nil
}
