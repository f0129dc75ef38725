package order

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/product"
)

func line(id, price string, qty, stock int) cart.Line {
	return cart.Line{
		Product: product.Product{
			ID:    id,
			Name:  "Product " + id,
			Price: decimal.RequireFromString(price),
			Stock: stock,
		},
		Quantity: qty,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPrice(t *testing.T) {
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name     string
		lines    []cart.Line
		coupon   *coupon.Coupon
		discount string
		tax      string
		total    string
	}{
		{
			name:     "no coupon",
			lines:    []cart.Line{line("p1", "25.00", 2, 10), line("p2", "50.00", 1, 1)},
			discount: "0",
			tax:      "10.00",
			total:    "120.00",
		},
		{
			name:  "percentage coupon",
			lines: []cart.Line{line("p1", "100.00", 1, 5)},
			coupon: &coupon.Coupon{
				Code: "TWENTY", DiscountType: coupon.DiscountPercentage,
				Amount: dec("20"), ExpiresAt: future,
			},
			discount: "20.00",
			tax:      "8.00",
			total:    "98.00",
		},
		{
			name:  "fixed coupon larger than subtotal",
			lines: []cart.Line{line("p1", "50.00", 1, 5)},
			coupon: &coupon.Coupon{
				Code: "SIXTY", DiscountType: coupon.DiscountFixed,
				Amount: dec("60"), ExpiresAt: future,
			},
			discount: "50.00",
			tax:      "0",
			total:    "10.00",
		},
		{
			name:  "full percentage",
			lines: []cart.Line{line("p1", "19.99", 3, 3)},
			coupon: &coupon.Coupon{
				Code: "FREE", DiscountType: coupon.DiscountPercentage,
				Amount: dec("100"), ExpiresAt: future,
			},
			discount: "59.97",
			tax:      "0",
			total:    "10.00",
		},
		{
			name:     "tax rounds to cents",
			lines:    []cart.Line{line("p1", "0.05", 1, 1)},
			discount: "0",
			tax:      "0.01",
			total:    "10.06",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Price(tt.lines, tt.coupon)
			require.NoError(t, err)

			assert.True(t, dec(tt.discount).Equal(p.Discount), "discount %s", p.Discount)
			assert.True(t, dec(tt.tax).Equal(p.Tax), "tax %s", p.Tax)
			assert.True(t, ShippingFlat.Equal(p.Shipping))
			assert.True(t, dec(tt.total).Equal(p.Total), "total %s", p.Total)
			assert.False(t, p.Total.Sub(p.Shipping).IsNegative())
		})
	}
}

func TestPrice_InsufficientStock(t *testing.T) {
	_, err := Price([]cart.Line{
		line("p1", "10.00", 1, 5),
		line("p2", "10.00", 4, 3),
	}, nil)

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "p2", stockErr.ProductID)
	assert.Equal(t, 4, stockErr.Requested)
	assert.Equal(t, 3, stockErr.Available)
}
