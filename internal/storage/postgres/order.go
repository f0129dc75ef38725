package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
)

const (
	orderColumns = `id, user_id, email, items, shipping_address, payment_method, coupon_code,
		items_price, discount_price, tax_price, shipping_price, total_price,
		payment_intent_id, is_paid, paid_at, payment_result,
		status, is_delivered, delivered_at, created_at, updated_at`

	createOrderSQL = `INSERT INTO orders (id, user_id, email, items, shipping_address, payment_method, coupon_code,
		items_price, discount_price, tax_price, shipping_price, total_price, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	listOrdersByUserSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC`

	setPaymentIntentSQL = `UPDATE orders SET payment_intent_id = $2, updated_at = now() WHERE id = $1`

	// claimOrderSQL only matches an unpaid order, so of any number of
	// concurrent finalizers exactly one gets a row back.
	claimOrderSQL = `UPDATE orders
		SET is_paid = TRUE, paid_at = $2, payment_result = $3, status = 'processing', updated_at = $2
		WHERE id = $1 AND NOT is_paid`

	decrementStockSQL = `UPDATE products p
		SET stock = GREATEST(p.stock - li.qty, 0), updated_at = $2
		FROM (
			SELECT e->>'product_id' AS product_id, SUM((e->>'quantity')::int) AS qty
			FROM orders o, jsonb_array_elements(o.items) e
			WHERE o.id = $1
			GROUP BY 1
		) li
		WHERE p.id = li.product_id`

	updateOrderStatusSQL = `UPDATE orders
		SET status = $3, is_delivered = $4, delivered_at = $5, updated_at = $6
		WHERE id = $1 AND status = $2`

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. Items and the shipping address are stored as
// JSONB.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	addrJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.UserID, o.Email, itemsJSON, addrJSON, o.PaymentMethod, o.CouponCode,
		o.ItemsPrice, o.DiscountPrice, o.TaxPrice, o.ShippingPrice, o.TotalPrice,
		string(o.Status), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// Get returns an order by id.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// List returns a page of orders, newest first.
func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, error) {
	f = f.Normalize()
	rows, err := r.pool.Query(ctx, listOrdersSQL, string(f.Status), f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// ListByUser returns every order placed by userID, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders of %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// SetPaymentIntent records the gateway intent opened for an order.
func (r *OrderRepository) SetPaymentIntent(ctx context.Context, id, intentID string) error {
	tag, err := r.pool.Exec(ctx, setPaymentIntentSQL, id, intentID)
	if err != nil {
		return fmt.Errorf("setting payment intent of %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// MarkPaid claims the order and decrements stock in one transaction. The
// stock update only runs for the caller whose claim matched a row.
func (r *OrderRepository) MarkPaid(ctx context.Context, id string, res payment.Result, at time.Time) (bool, error) {
	resJSON, err := json.Marshal(res)
	if err != nil {
		return false, fmt.Errorf("marshaling payment result: %w", err)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, claimOrderSQL, id, at, resJSON)
	if err != nil {
		return false, fmt.Errorf("claiming order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, orderExistsSQL, id).Scan(&exists); err != nil {
			return false, fmt.Errorf("checking order %q: %w", id, err)
		}
		if !exists {
			return false, order.ErrNotFound
		}
		return false, nil
	}

	if _, err := tx.Exec(ctx, decrementStockSQL, id, at); err != nil {
		return false, fmt.Errorf("decrementing stock for %q: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit payment of %q: %w", id, err)
	}
	return true, nil
}

// UpdateStatus applies a transition guarded on the current status.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to order.Status, at time.Time) error {
	o := order.Order{}
	o.ApplyStatus(to, at)

	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL,
		id, string(from), string(to), o.IsDelivered, o.DeliveredAt, at,
	)
	if err != nil {
		return fmt.Errorf("updating status of %q: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, orderExistsSQL, id).Scan(&exists); err != nil {
		return fmt.Errorf("checking order %q: %w", id, err)
	}
	if !exists {
		return order.ErrNotFound
	}
	return order.ErrConflict
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o          order.Order
		status     string
		itemsJSON  []byte
		addrJSON   []byte
		resultJSON []byte
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.Email, &itemsJSON, &addrJSON, &o.PaymentMethod, &o.CouponCode,
		&o.ItemsPrice, &o.DiscountPrice, &o.TaxPrice, &o.ShippingPrice, &o.TotalPrice,
		&o.PaymentIntentID, &o.IsPaid, &o.PaidAt, &resultJSON,
		&status, &o.IsDelivered, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	o.Status = order.Status(status)

	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling order items: %w", err)
	}
	if err := json.Unmarshal(addrJSON, &o.ShippingAddress); err != nil {
		return o, fmt.Errorf("unmarshaling shipping address: %w", err)
	}
	if len(resultJSON) > 0 {
		var res payment.Result
		if err := json.Unmarshal(resultJSON, &res); err != nil {
			return o, fmt.Errorf("unmarshaling payment result: %w", err)
		}
		o.PaymentResult = &res
	}
	return o, nil
}
