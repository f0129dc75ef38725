// Package analytics aggregates sales figures for the admin dashboard.
package analytics

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TopProductsLimit is how many best sellers the summary lists.
const TopProductsLimit = 5

// Summary is the dashboard snapshot.
type Summary struct {
	Revenue        decimal.Decimal
	PaidOrders     int
	OrdersByStatus map[string]int
	TopProducts    []ProductSales
	GeneratedAt    time.Time
}

// ProductSales is the paid volume of one product.
type ProductSales struct {
	ProductID string
	Name      string
	Units     int
	Revenue   decimal.Decimal
}

// Repository runs the aggregations. Only paid orders count towards revenue
// and best sellers.
type Repository interface {
	Revenue(ctx context.Context) (decimal.Decimal, int, error)
	OrdersByStatus(ctx context.Context) (map[string]int, error)
	TopProducts(ctx context.Context, limit int) ([]ProductSales, error)
}

// Service builds dashboard summaries.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates an analytics Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Summary collects every dashboard figure.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	revenue, paid, err := s.repo.Revenue(ctx)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.repo.OrdersByStatus(ctx)
	if err != nil {
		return nil, err
	}
	top, err := s.repo.TopProducts(ctx, TopProductsLimit)
	if err != nil {
		return nil, err
	}
	if byStatus == nil {
		byStatus = map[string]int{}
	}
	if top == nil {
		top = []ProductSales{}
	}
	return &Summary{
		Revenue:        revenue,
		PaidOrders:     paid,
		OrdersByStatus: byStatus,
		TopProducts:    top,
		GeneratedAt:    s.now(),
	}, nil
}
