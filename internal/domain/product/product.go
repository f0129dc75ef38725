package product

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrInvalid is returned for malformed catalog entries.
	ErrInvalid = errors.New("invalid product")
)

// Product represents a catalog item available for purchase.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Category    string
	Stock       int
	Rating      decimal.Decimal
	NumReviews  int
	Images      []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// InStock reports whether qty units can be sold right now.
func (p Product) InStock(qty int) bool {
	return qty <= p.Stock
}

// Validate checks the fields an admin must supply.
func (p *Product) Validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return errors.Wrap(ErrInvalid, "name required")
	case p.Price.IsNegative():
		return errors.Wrap(ErrInvalid, "price cannot be negative")
	case p.Stock < 0:
		return errors.Wrap(ErrInvalid, "stock cannot be negative")
	}
	return nil
}

// Filter narrows a catalog listing. Zero values mean "no constraint".
type Filter struct {
	Category string
	Search   string
	Limit    int
	Offset   int
}

// Normalize clamps paging to sane bounds.
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Repository defines operations for the product catalog.
type Repository interface {
	List(ctx context.Context, f Filter) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
}
