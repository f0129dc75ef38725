package product

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		product Product
		wantErr bool
	}{
		{"Valid", Product{Name: "Mug", Price: decimal.NewFromInt(5), Stock: 3}, false},
		{"FreeItem", Product{Name: "Sticker", Price: decimal.Zero}, false},
		{"NoName", Product{Name: "  ", Price: decimal.NewFromInt(5)}, true},
		{"NegativePrice", Product{Name: "Mug", Price: decimal.NewFromInt(-1)}, true},
		{"NegativeStock", Product{Name: "Mug", Price: decimal.NewFromInt(1), Stock: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.product.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalid)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestFilterNormalize(t *testing.T) {
	f := Filter{Limit: 500, Offset: -3}.Normalize()
	assert.Equal(t, 20, f.Limit)
	assert.Zero(t, f.Offset)

	f = Filter{Limit: 7, Offset: 14}.Normalize()
	assert.Equal(t, 7, f.Limit)
	assert.Equal(t, 14, f.Offset)
}

func TestInStock(t *testing.T) {
	p := Product{Stock: 2}
	assert.True(t, p.InStock(2))
	assert.False(t, p.InStock(3))
}
