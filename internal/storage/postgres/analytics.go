package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/analytics"
)

const (
	revenueSQL = `SELECT COALESCE(SUM(total_price), 0), COUNT(*) FROM orders WHERE is_paid`

	ordersByStatusSQL = `SELECT status, COUNT(*) FROM orders GROUP BY status`

	topProductsSQL = `SELECT e->>'product_id',
			MAX(e->>'name'),
			SUM((e->>'quantity')::int),
			SUM((e->>'price')::numeric * (e->>'quantity')::int)
		FROM orders o, jsonb_array_elements(o.items) e
		WHERE o.is_paid
		GROUP BY 1
		ORDER BY 3 DESC, 1
		LIMIT $1`
)

var _ analytics.Repository = (*AnalyticsRepository)(nil)

// AnalyticsRepository runs dashboard aggregations over orders.
type AnalyticsRepository struct {
	pool *pgxpool.Pool
}

// NewAnalyticsRepository returns an AnalyticsRepository that uses the given pool.
func NewAnalyticsRepository(pool *pgxpool.Pool) *AnalyticsRepository {
	return &AnalyticsRepository{pool: pool}
}

func (r *AnalyticsRepository) Revenue(ctx context.Context) (decimal.Decimal, int, error) {
	var (
		revenue decimal.Decimal
		count   int
	)
	if err := r.pool.QueryRow(ctx, revenueSQL).Scan(&revenue, &count); err != nil {
		return decimal.Zero, 0, fmt.Errorf("computing revenue: %w", err)
	}
	return revenue, count, nil
}

func (r *AnalyticsRepository) OrdersByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, ordersByStatusSQL)
	if err != nil {
		return nil, fmt.Errorf("counting orders by status: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		out[status] = count
	}
	return out, rows.Err()
}

func (r *AnalyticsRepository) TopProducts(ctx context.Context, limit int) ([]analytics.ProductSales, error) {
	rows, err := r.pool.Query(ctx, topProductsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("listing top products: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (analytics.ProductSales, error) {
		var s analytics.ProductSales
		err := row.Scan(&s.ProductID, &s.Name, &s.Units, &s.Revenue)
		return s, err
	})
}
