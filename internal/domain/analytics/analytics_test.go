package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	revenue  decimal.Decimal
	paid     int
	byStatus map[string]int
	top      []ProductSales
	limit    int
	err      error
}

func (m *mockRepo) Revenue(context.Context) (decimal.Decimal, int, error) {
	return m.revenue, m.paid, m.err
}

func (m *mockRepo) OrdersByStatus(context.Context) (map[string]int, error) {
	return m.byStatus, nil
}

func (m *mockRepo) TopProducts(_ context.Context, limit int) ([]ProductSales, error) {
	m.limit = limit
	return m.top, nil
}

func TestSummary(t *testing.T) {
	at := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	repo := &mockRepo{
		revenue:  decimal.RequireFromString("218.00"),
		paid:     2,
		byStatus: map[string]int{"processing": 2, "pending": 1},
	}
	s := NewService(repo)
	s.now = func() time.Time { return at }

	sum, err := s.Summary(context.Background())
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("218").Equal(sum.Revenue))
	assert.Equal(t, 2, sum.PaidOrders)
	assert.Equal(t, 2, sum.OrdersByStatus["processing"])
	assert.NotNil(t, sum.TopProducts)
	assert.Equal(t, TopProductsLimit, repo.limit)
	assert.Equal(t, at, sum.GeneratedAt)
}

func TestSummary_Error(t *testing.T) {
	_, err := NewService(&mockRepo{err: errors.New("db down")}).Summary(context.Background())
	require.Error(t, err)
}
