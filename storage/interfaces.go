package storage

import (
	"context"
	"fmt"

	"amazon-scraper/models"
)

// PersistenceError is a storage-layer failure on save or query. The
// ingestion pipeline treats it as a single unit's failure, never as a batch
// abort.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ProductSortField is the closed enumeration of permitted product sort keys.
type ProductSortField string

const (
	ProductSortNone        ProductSortField = ""
	ProductSortPrice       ProductSortField = "price"
	ProductSortRating      ProductSortField = "rating"
	ProductSortReviewCount ProductSortField = "review_count"
)

// ParseProductSortField validates a sort key at the boundary.
func ParseProductSortField(s string) (ProductSortField, bool) {
	switch ProductSortField(s) {
	case ProductSortNone, ProductSortPrice, ProductSortRating, ProductSortReviewCount:
		return ProductSortField(s), true
	}
	return ProductSortNone, false
}

// ReviewSortField is the closed enumeration of permitted review sort keys.
type ReviewSortField string

const (
	ReviewSortDate   ReviewSortField = "review_date"
	ReviewSortRating ReviewSortField = "rating"
)

// ParseReviewSortField validates a review sort key at the boundary.
func ParseReviewSortField(s string) (ReviewSortField, bool) {
	switch ReviewSortField(s) {
	case ReviewSortDate, ReviewSortRating:
		return ReviewSortField(s), true
	}
	return "", false
}

// ProductQuery selects, orders and pages the product list.
type ProductQuery struct {
	Search    string
	Brand     string
	Model     string
	MinPrice  *float64
	MaxPrice  *float64
	MinRating *float64
	SortBy    ProductSortField
	SortDesc  bool
	Page      int
	Limit     int
}

// ReviewQuery orders and pages one product's reviews.
type ReviewQuery struct {
	SortBy   ReviewSortField
	SortDesc bool
	Page     int
	Limit    int
}

// ProductRepository is the persistence contract for products and their
// nested reviews.
type ProductRepository interface {
	// Save persists the product and all nested reviews as one atomic unit,
	// upserting on the unique ASIN (last write wins).
	Save(ctx context.Context, product *models.Product) error
	// FindByASIN returns (nil, nil) when no product has the ASIN.
	FindByASIN(ctx context.Context, asin string) (*models.Product, error)
	// FindByID returns (nil, nil) when the id is unknown.
	FindByID(ctx context.Context, id int64) (*models.Product, error)
	// List returns one page of products plus the total match count.
	List(ctx context.Context, q ProductQuery) ([]*models.Product, int, error)
	// TopRated returns up to limit products with at least minReviews reviews,
	// ordered by rating then review count, reviews embedded.
	TopRated(ctx context.Context, limit, minReviews int) ([]*models.Product, error)
	// ListReviews returns one page of a product's reviews plus the total.
	ListReviews(ctx context.Context, productID int64, q ReviewQuery) ([]*models.Review, int, error)
	// FetchAll returns every product without reviews, for bulk indexing.
	FetchAll(ctx context.Context) ([]*models.Product, error)
	Close() error
}
