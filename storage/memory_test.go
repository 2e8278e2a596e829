package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amazon-scraper/models"
)

func strPtr(s string) *string     { return &s }
func fPtr(f float64) *float64     { return &f }
func iPtr(i int) *int             { return &i }
func tPtr(t time.Time) *time.Time { return &t }

func seedProduct(asin, title, brand string, price, rating float64, reviewCount int) *models.Product {
	return &models.Product{
		ASIN:          asin,
		ProductURL:    "https://www.amazon.com/dp/" + asin,
		Title:         strPtr(title),
		Brand:         strPtr(brand),
		Price:         fPtr(price),
		AverageRating: fPtr(rating),
		ReviewCount:   iPtr(reviewCount),
	}
}

func seedRepository(t *testing.T) *MemoryRepository {
	t.Helper()
	repo := NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, seedProduct("B000000001", "Acme Field Watch", "Acme", 120.00, 4.7, 820)))
	require.NoError(t, repo.Save(ctx, seedProduct("B000000002", "Acme Diver", "Acme", 310.50, 4.2, 95)))
	require.NoError(t, repo.Save(ctx, seedProduct("B000000003", "Orbit Chrono", "Orbit", 89.99, 4.7, 310)))
	require.NoError(t, repo.Save(ctx, seedProduct("B000000004", "Orbit Classic", "Orbit", 45.00, 3.9, 12)))
	return repo
}

func TestSaveUpsertsOnASIN(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	first := seedProduct("B000000001", "Acme Field Watch", "Acme", 120.00, 4.7, 820)
	first.Reviews = []*models.Review{
		{ReviewerName: strPtr("Jordan"), Rating: iPtr(5)},
		{ReviewerName: strPtr("Sam"), Rating: iPtr(3)},
	}
	require.NoError(t, repo.Save(ctx, first))
	firstID := first.ID

	second := seedProduct("B000000001", "Acme Field Watch v2", "Acme", 99.00, 4.5, 900)
	second.Reviews = []*models.Review{
		{ReviewerName: strPtr("Robin"), Rating: iPtr(4)},
	}
	require.NoError(t, repo.Save(ctx, second))

	// Same ASIN keeps the same row identity; fields and reviews are replaced.
	assert.Equal(t, firstID, second.ID)

	got, err := repo.FindByASIN(ctx, "B000000001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Acme Field Watch v2", *got.Title)
	require.Len(t, got.Reviews, 1)
	assert.Equal(t, "Robin", *got.Reviews[0].ReviewerName)
	assert.Equal(t, got.ID, got.Reviews[0].ProductID)

	_, total, err := repo.List(ctx, ProductQuery{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestFindAbsentReturnsNilNil(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	p, err := repo.FindByASIN(ctx, "B0MISSING0")
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = repo.FindByID(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestListFilters(t *testing.T) {
	repo := seedRepository(t)
	ctx := context.Background()

	products, total, err := repo.List(ctx, ProductQuery{Search: "acme", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, products, 2)

	products, total, err = repo.List(ctx, ProductQuery{
		MinPrice: fPtr(80), MaxPrice: fPtr(150), Page: 1, Limit: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, p := range products {
		assert.GreaterOrEqual(t, *p.Price, 80.0)
		assert.LessOrEqual(t, *p.Price, 150.0)
	}

	_, total, err = repo.List(ctx, ProductQuery{MinRating: fPtr(4.5), Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	_, total, err = repo.List(ctx, ProductQuery{Brand: "orbit", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestListSortAndPaginate(t *testing.T) {
	repo := seedRepository(t)
	ctx := context.Background()

	products, total, err := repo.List(ctx, ProductQuery{
		SortBy: ProductSortPrice, SortDesc: true, Page: 1, Limit: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, products, 2)
	assert.Equal(t, 310.50, *products[0].Price)
	assert.Equal(t, 120.00, *products[1].Price)

	products, _, err = repo.List(ctx, ProductQuery{
		SortBy: ProductSortPrice, SortDesc: true, Page: 2, Limit: 2,
	})
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, 89.99, *products[0].Price)
	assert.Equal(t, 45.00, *products[1].Price)

	// A page past the end is empty, not an error.
	products, total, err = repo.List(ctx, ProductQuery{Page: 9, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Empty(t, products)
}

func TestTopRated(t *testing.T) {
	repo := seedRepository(t)

	products, err := repo.TopRated(context.Background(), 2, 50)
	require.NoError(t, err)
	require.Len(t, products, 2)

	// Ties on rating break on review count.
	assert.Equal(t, "B000000001", products[0].ASIN)
	assert.Equal(t, "B000000003", products[1].ASIN)
}

func TestListReviews(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	product := seedProduct("B000000001", "Acme Field Watch", "Acme", 120.00, 4.7, 3)
	product.Reviews = []*models.Review{
		{ReviewerName: strPtr("Jordan"), Rating: iPtr(5), ReviewDate: tPtr(time.Date(2023, 3, 5, 0, 0, 0, 0, time.UTC))},
		{ReviewerName: strPtr("Sam"), Rating: iPtr(2), ReviewDate: tPtr(time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC))},
		{ReviewerName: strPtr("Robin"), Rating: iPtr(4), ReviewDate: tPtr(time.Date(2022, 7, 1, 0, 0, 0, 0, time.UTC))},
	}
	require.NoError(t, repo.Save(ctx, product))

	reviews, total, err := repo.ListReviews(ctx, product.ID, ReviewQuery{
		SortBy: ReviewSortDate, SortDesc: true, Page: 1, Limit: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, reviews, 2)
	assert.Equal(t, "Sam", *reviews[0].ReviewerName)
	assert.Equal(t, "Jordan", *reviews[1].ReviewerName)

	reviews, _, err = repo.ListReviews(ctx, product.ID, ReviewQuery{
		SortBy: ReviewSortRating, SortDesc: false, Page: 1, Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, reviews, 3)
	assert.Equal(t, 2, *reviews[0].Rating)
	assert.Equal(t, 5, *reviews[2].Rating)

	reviews, total, err = repo.ListReviews(ctx, 999, ReviewQuery{SortBy: ReviewSortDate, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, reviews)
}

func TestFetchAllOmitsReviews(t *testing.T) {
	repo := seedRepository(t)

	products, err := repo.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 4)
	for _, p := range products {
		assert.Empty(t, p.Reviews)
	}
}

func TestSaveIsolatesCallerMutation(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	product := seedProduct("B000000001", "Acme Field Watch", "Acme", 120.00, 4.7, 820)
	product.Specifications = map[string]string{"Band Material": "Steel"}
	product.Reviews = []*models.Review{{ReviewerName: strPtr("Jordan")}}
	require.NoError(t, repo.Save(ctx, product))

	// Mutating the saved value must not leak into the stored copy.
	product.Title = strPtr("mutated")
	product.Specifications["Band Material"] = "Plastic"
	product.Reviews = append(product.Reviews, &models.Review{ReviewerName: strPtr("Sam")})

	got, err := repo.FindByASIN(ctx, "B000000001")
	require.NoError(t, err)
	assert.Equal(t, "Acme Field Watch", *got.Title)
	assert.Equal(t, "Steel", got.Specifications["Band Material"])
	assert.Len(t, got.Reviews, 1)
}

func TestParseSortFields(t *testing.T) {
	field, ok := ParseProductSortField("price")
	assert.True(t, ok)
	assert.Equal(t, ProductSortPrice, field)

	_, ok = ParseProductSortField("title")
	assert.False(t, ok)

	reviewField, ok := ParseReviewSortField("review_date")
	assert.True(t, ok)
	assert.Equal(t, ReviewSortDate, reviewField)

	_, ok = ParseReviewSortField("helpful_votes")
	assert.False(t, ok)
}
