package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/product"
)

const (
	lockProductSQL = `SELECT 1 FROM products WHERE id = $1 FOR UPDATE`

	insertReviewSQL = `INSERT INTO reviews (id, product_id, user_id, name, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	// The summary is recomputed from the reviews table.
	refreshRatingSQL = `UPDATE products
		SET (rating, num_reviews) = (
			SELECT COALESCE(ROUND(AVG(rating), 2), 0), COUNT(*)
			FROM reviews WHERE product_id = $1
		), updated_at = now()
		WHERE id = $1
		RETURNING ` + productColumns

	listReviewsSQL = `SELECT id, product_id, user_id, name, rating, comment, created_at
		FROM reviews
		WHERE product_id = $1
		ORDER BY created_at DESC, id`
)

var _ product.ReviewRepository = (*ProductRepository)(nil)

// AddReview inserts a review and refreshes the product's rating in one
// transaction. The product row is locked first so concurrent reviews of the
// same product see each other's inserts.
func (r *ProductRepository) AddReview(ctx context.Context, rv *product.Review) (*product.Product, error) {
	var updated product.Product
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var one int
		if err := tx.QueryRow(ctx, lockProductSQL, rv.ProductID).Scan(&one); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return product.ErrNotFound
			}
			return fmt.Errorf("locking product %q: %w", rv.ProductID, err)
		}

		_, err := tx.Exec(ctx, insertReviewSQL,
			rv.ID, rv.ProductID, rv.UserID, rv.Name, rv.Rating, rv.Comment, rv.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return product.ErrAlreadyReviewed
			}
			return fmt.Errorf("inserting review: %w", err)
		}

		rows, err := tx.Query(ctx, refreshRatingSQL, rv.ProductID)
		if err != nil {
			return fmt.Errorf("refreshing rating of %q: %w", rv.ProductID, err)
		}
		updated, err = pgx.CollectExactlyOneRow(rows, scanProduct)
		if err != nil {
			return fmt.Errorf("refreshing rating of %q: %w", rv.ProductID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// ListReviews returns a product's reviews, newest first.
func (r *ProductRepository) ListReviews(ctx context.Context, productID string) ([]product.Review, error) {
	rows, err := r.pool.Query(ctx, listReviewsSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("listing reviews of %q: %w", productID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.Review, error) {
		var rv product.Review
		err := row.Scan(&rv.ID, &rv.ProductID, &rv.UserID, &rv.Name, &rv.Rating, &rv.Comment, &rv.CreatedAt)
		return rv, err
	})
}
