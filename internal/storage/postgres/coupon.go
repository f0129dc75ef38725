package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/coupon"
)

const (
	couponColumns = `code, discount_type, amount, expires_at, usage_limit, usage_count, created_at`

	getCouponByCodeSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`

	listCouponsSQL = `SELECT ` + couponColumns + ` FROM coupons ORDER BY created_at DESC, code`

	redeemCouponSQL = `UPDATE coupons SET usage_count = usage_count + 1
		WHERE code = $1
		  AND expires_at >= $2
		  AND (usage_limit = 0 OR usage_count < usage_limit)`

	releaseCouponSQL = `UPDATE coupons SET usage_count = GREATEST(usage_count - 1, 0) WHERE code = $1`

	createCouponSQL = `INSERT INTO coupons (code, discount_type, amount, expires_at, usage_limit)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	deleteCouponSQL = `DELETE FROM coupons WHERE code = $1`

	importCouponSQL = `INSERT INTO coupons (code, discount_type, amount, expires_at, usage_limit)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO NOTHING`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its normalized code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// Redeem increments the usage counter in a single conditional UPDATE. When
// the guard rejects the row, the coupon is re-read to report why.
func (r *CouponRepository) Redeem(ctx context.Context, code string, now time.Time) error {
	tag, err := r.pool.Exec(ctx, redeemCouponSQL, code, now)
	if err != nil {
		return fmt.Errorf("redeeming coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	c, err := r.FindByCode(ctx, code)
	if err != nil {
		return err
	}
	if c.ExpiresAt.Before(now) {
		return coupon.ErrExpired
	}
	return coupon.ErrUsageExceeded
}

// Release decrements the usage counter, never below zero.
func (r *CouponRepository) Release(ctx context.Context, code string) error {
	if _, err := r.pool.Exec(ctx, releaseCouponSQL, code); err != nil {
		return fmt.Errorf("releasing coupon %q: %w", code, err)
	}
	return nil
}

// List returns every coupon, newest first.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// Create inserts a coupon. Duplicate codes yield coupon.ErrExists.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	err := r.pool.QueryRow(ctx, createCouponSQL,
		c.Code, string(c.DiscountType), c.Amount, c.ExpiresAt, c.UsageLimit,
	).Scan(&c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return coupon.ErrExists
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// Delete removes a coupon.
func (r *CouponRepository) Delete(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, deleteCouponSQL, code)
	if err != nil {
		return fmt.Errorf("deleting coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// Import inserts coupons in one round trip, skipping codes that already
// exist. It returns how many rows were inserted.
func (r *CouponRepository) Import(ctx context.Context, coupons []coupon.Coupon) (int64, error) {
	batch := &pgx.Batch{}
	for _, c := range coupons {
		batch.Queue(importCouponSQL, c.Code, string(c.DiscountType), c.Amount, c.ExpiresAt, c.UsageLimit)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer func() { _ = br.Close() }()

	var inserted int64
	for _, c := range coupons {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("importing coupon %q: %w", c.Code, err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
	)
	err := row.Scan(
		&c.Code, &discountType, &c.Amount, &c.ExpiresAt,
		&c.UsageLimit, &c.UsageCount, &c.CreatedAt,
	)
	c.DiscountType = coupon.DiscountType(discountType)
	return c, err
}
