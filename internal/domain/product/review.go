package product

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrAlreadyReviewed is returned when a user reviews the same product twice.
var ErrAlreadyReviewed = errors.New("product already reviewed")

const (
	MinRating = 1
	MaxRating = 5

	maxCommentLen = 2000
)

// Review is one customer's rating of a product.
type Review struct {
	ID        string
	ProductID string
	UserID    string
	Name      string
	Rating    int
	Comment   string
	CreatedAt time.Time
}

// Validate checks a review before it is stored.
func (r *Review) Validate() error {
	switch {
	case r.ProductID == "" || r.UserID == "":
		return errors.Wrap(ErrInvalid, "review needs a product and a user")
	case r.Rating < MinRating || r.Rating > MaxRating:
		return errors.Wrapf(ErrInvalid, "rating must be between %d and %d", MinRating, MaxRating)
	case strings.TrimSpace(r.Comment) == "":
		return errors.Wrap(ErrInvalid, "comment required")
	case len(r.Comment) > maxCommentLen:
		return errors.Wrapf(ErrInvalid, "comment longer than %d bytes", maxCommentLen)
	}
	return nil
}

// Summarize returns the average rating, rounded to two places, and the
// review count.
func Summarize(reviews []Review) (decimal.Decimal, int) {
	if len(reviews) == 0 {
		return decimal.Zero, 0
	}
	var sum int64
	for _, r := range reviews {
		sum += int64(r.Rating)
	}
	avg := decimal.NewFromInt(sum).DivRound(decimal.NewFromInt(int64(len(reviews))), 2)
	return avg, len(reviews)
}

// ReviewRepository stores reviews.
type ReviewRepository interface {
	// AddReview stores r and recomputes the product's rating and review
	// count atomically with the insert. It returns the updated product,
	// ErrNotFound for unknown products and ErrAlreadyReviewed when the user
	// has reviewed the product before.
	AddReview(ctx context.Context, r *Review) (*Product, error)
	// ListReviews returns a product's reviews, newest first.
	ListReviews(ctx context.Context, productID string) ([]Review, error)
}

// ReviewService adds and lists product reviews.
type ReviewService struct {
	products Repository
	reviews  ReviewRepository
	now      func() time.Time
}

// NewReviewService creates a ReviewService.
func NewReviewService(products Repository, reviews ReviewRepository) *ReviewService {
	return &ReviewService{products: products, reviews: reviews, now: time.Now}
}

// Add validates and stores a review, returning it with the product's new
// rating summary.
func (s *ReviewService) Add(ctx context.Context, r Review) (*Review, *Product, error) {
	r.Comment = strings.TrimSpace(r.Comment)
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		r.Name = "Customer"
	}
	if err := r.Validate(); err != nil {
		return nil, nil, err
	}
	r.ID = uuid.New().String()
	r.CreatedAt = s.now().UTC()

	p, err := s.reviews.AddReview(ctx, &r)
	if err != nil {
		return nil, nil, err
	}
	return &r, p, nil
}

// List returns the reviews of an existing product.
func (s *ReviewService) List(ctx context.Context, productID string) ([]Review, error) {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.reviews.ListReviews(ctx, productID)
}
