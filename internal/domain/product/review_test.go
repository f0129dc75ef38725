package product_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/storage/memory"
)

func TestReview_Validate(t *testing.T) {
	valid := product.Review{ProductID: "p1", UserID: "u1", Rating: 4, Comment: "solid"}
	tests := []struct {
		name   string
		mutate func(*product.Review)
	}{
		{"NoProduct", func(r *product.Review) { r.ProductID = "" }},
		{"NoUser", func(r *product.Review) { r.UserID = "" }},
		{"RatingZero", func(r *product.Review) { r.Rating = 0 }},
		{"RatingSix", func(r *product.Review) { r.Rating = 6 }},
		{"BlankComment", func(r *product.Review) { r.Comment = "   " }},
		{"LongComment", func(r *product.Review) { r.Comment = strings.Repeat("x", 2001) }},
	}
	require.NoError(t, valid.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			require.ErrorIs(t, r.Validate(), product.ErrInvalid)
		})
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name    string
		ratings []int
		want    string
	}{
		{"None", nil, "0"},
		{"One", []int{4}, "4"},
		{"Average", []int{5, 4}, "4.5"},
		{"Rounded", []int{5, 5, 4}, "4.67"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reviews := make([]product.Review, len(tt.ratings))
			for i, r := range tt.ratings {
				reviews[i] = product.Review{Rating: r}
			}
			avg, n := product.Summarize(reviews)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(avg), "got %s", avg)
			assert.Equal(t, len(tt.ratings), n)
		})
	}
}

func newReviewService() (*product.ReviewService, *memory.ProductStore) {
	store := memory.NewProductStore(product.Product{ID: "p1", Name: "Widget", Price: decimal.NewFromInt(50)})
	return product.NewReviewService(store, store), store
}

func TestReviewService_Add(t *testing.T) {
	svc, store := newReviewService()
	ctx := context.Background()

	rv, p, err := svc.Add(ctx, product.Review{ProductID: "p1", UserID: "u1", Name: " Ann ", Rating: 5, Comment: " great "})
	require.NoError(t, err)
	assert.NotEmpty(t, rv.ID)
	assert.False(t, rv.CreatedAt.IsZero())
	assert.Equal(t, "Ann", rv.Name)
	assert.Equal(t, "great", rv.Comment)
	assert.Equal(t, 1, p.NumReviews)
	assert.True(t, decimal.NewFromInt(5).Equal(p.Rating))

	_, p, err = svc.Add(ctx, product.Review{ProductID: "p1", UserID: "u2", Rating: 2, Comment: "meh"})
	require.NoError(t, err)
	assert.Equal(t, 2, p.NumReviews)
	assert.True(t, decimal.RequireFromString("3.5").Equal(p.Rating))

	stored, err := store.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.NumReviews)

	reviews, err := svc.List(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.False(t, reviews[0].CreatedAt.Before(reviews[1].CreatedAt), "newest first")
	names := []string{reviews[0].Name, reviews[1].Name}
	assert.ElementsMatch(t, []string{"Ann", "Customer"}, names)
}

func TestReviewService_Errors(t *testing.T) {
	svc, _ := newReviewService()
	ctx := context.Background()
	_, _, err := svc.Add(ctx, product.Review{ProductID: "p1", UserID: "u1", Rating: 4, Comment: "ok"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		review product.Review
		want   error
	}{
		{"Twice", product.Review{ProductID: "p1", UserID: "u1", Rating: 1, Comment: "changed my mind"}, product.ErrAlreadyReviewed},
		{"UnknownProduct", product.Review{ProductID: "nope", UserID: "u1", Rating: 3, Comment: "?"}, product.ErrNotFound},
		{"BadRating", product.Review{ProductID: "p1", UserID: "u3", Rating: 9, Comment: "wow"}, product.ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Add(ctx, tt.review)
			require.ErrorIs(t, err, tt.want)
		})
	}

	_, err = svc.List(ctx, "nope")
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestReviewService_ConcurrentReviews(t *testing.T) {
	svc, store := newReviewService()
	ctx := context.Background()

	const users = 20
	var wg sync.WaitGroup
	for i := range users {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.Add(ctx, product.Review{ProductID: "p1", UserID: string(rune('a' + i)), Rating: 4, Comment: "fine"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, err := store.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, users, p.NumReviews)
	assert.True(t, decimal.NewFromInt(4).Equal(p.Rating))
}
