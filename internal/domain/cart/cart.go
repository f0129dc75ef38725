package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when a user has no cart.
	ErrNotFound = errors.New("cart not found")
	// ErrEmpty is returned when a cart holds no purchasable lines.
	ErrEmpty = errors.New("cart is empty")
	// ErrInvalidQuantity is returned for quantities below one.
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	// ErrItemNotFound is returned when updating a product that is not in the cart.
	ErrItemNotFound = errors.New("item not found in cart")
)

// Cart is a user's in-progress selection. At most one exists per user.
type Cart struct {
	UserID    string    `json:"user_id" bson:"user_id"`
	Items     []Item    `json:"items" bson:"items"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Item is a product reference and the requested quantity.
type Item struct {
	ProductID string    `json:"product_id" bson:"product_id"`
	Quantity  int       `json:"quantity" bson:"quantity"`
	AddedAt   time.Time `json:"added_at" bson:"added_at"`
}

// Find returns the index of productID in the cart, or -1.
func (c *Cart) Find(productID string) int {
	for i, it := range c.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

// ProductIDs lists every referenced product in cart order.
func (c *Cart) ProductIDs() []string {
	ids := make([]string, len(c.Items))
	for i, it := range c.Items {
		ids[i] = it.ProductID
	}
	return ids
}

// Store persists carts keyed by owning user.
type Store interface {
	// Get returns ErrNotFound when the user has no cart.
	Get(ctx context.Context, userID string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	// Delete is a no-op for users without a cart.
	Delete(ctx context.Context, userID string) error
}
