package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCoupon_Discount(t *testing.T) {
	d := decimal.RequireFromString

	tests := []struct {
		name     string
		coupon   Coupon
		subtotal decimal.Decimal
		want     decimal.Decimal
	}{
		{
			name:     "percentage",
			coupon:   Coupon{DiscountType: DiscountPercentage, Amount: d("20")},
			subtotal: d("100.00"),
			want:     d("20.00"),
		},
		{
			name:     "percentage rounds to cents",
			coupon:   Coupon{DiscountType: DiscountPercentage, Amount: d("15")},
			subtotal: d("33.33"),
			want:     d("5.00"),
		},
		{
			name:     "percentage of 100 equals subtotal",
			coupon:   Coupon{DiscountType: DiscountPercentage, Amount: d("100")},
			subtotal: d("42.10"),
			want:     d("42.10"),
		},
		{
			name:     "fixed under subtotal",
			coupon:   Coupon{DiscountType: DiscountFixed, Amount: d("7.50")},
			subtotal: d("20.00"),
			want:     d("7.50"),
		},
		{
			name:     "fixed capped at subtotal",
			coupon:   Coupon{DiscountType: DiscountFixed, Amount: d("60")},
			subtotal: d("50.00"),
			want:     d("50.00"),
		},
		{
			name:     "zero subtotal",
			coupon:   Coupon{DiscountType: DiscountFixed, Amount: d("10")},
			subtotal: decimal.Zero,
			want:     decimal.Zero,
		},
		{
			name:     "unknown type gives nothing",
			coupon:   Coupon{DiscountType: "bogo", Amount: d("10")},
			subtotal: d("10"),
			want:     decimal.Zero,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.coupon.Discount(tt.subtotal)
			assert.True(t, tt.want.Equal(got), "expected %s, got %s", tt.want, got)
		})
	}
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "SUMMER", NormalizeCode("  summer "))
	assert.Equal(t, "", NormalizeCode(" "))
}

func TestCoupon_Exhausted(t *testing.T) {
	assert.False(t, (&Coupon{UsageLimit: 0, UsageCount: 10}).Exhausted())
	assert.False(t, (&Coupon{UsageLimit: 2, UsageCount: 1}).Exhausted())
	assert.True(t, (&Coupon{UsageLimit: 2, UsageCount: 2}).Exhausted())
}
