package payment

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestToCents(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"120.00", 12000},
		{"98", 9800},
		{"10.005", 1001},
		{"0.004", 0},
		{"19.99", 1999},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ToCents(decimal.RequireFromString(tt.in)), tt.in)
	}
}

func TestIdempotencyKey_Deterministic(t *testing.T) {
	a := IdempotencyKey("o-1", 12000)
	assert.Equal(t, a, IdempotencyKey("o-1", 12000))
	assert.NotEqual(t, a, IdempotencyKey("o-1", 12001))
	assert.NotEqual(t, a, IdempotencyKey("o-2", 12000))
}

func TestIntent_Result(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	in := &Intent{
		ID:           "pi_1",
		Status:       StatusSucceeded,
		ReceiptEmail: "a@b.c",
		Metadata:     map[string]string{MetaOrderID: "o-1"},
	}

	assert.Equal(t, "o-1", in.OrderID())
	assert.Equal(t, Result{ID: "pi_1", Status: "succeeded", UpdateTime: at, Email: "a@b.c"}, in.Result(at))
}
