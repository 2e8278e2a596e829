package models

import "time"

// Product is a structured record extracted from a product detail page.
// Optional fields are pointers: nil means the field could not be extracted.
type Product struct {
	ID             int64             `json:"id"`
	ASIN           string            `json:"asin"`
	ProductURL     string            `json:"product_url"`
	Brand          *string           `json:"brand"`
	Model          *string           `json:"model"`
	Title          *string           `json:"title"`
	Price          *float64          `json:"price"`
	AverageRating  *float64          `json:"average_rating"`
	ReviewCount    *int              `json:"review_count"`
	Specifications map[string]string `json:"specifications"`
	ImageURLs      []string          `json:"image_urls"`
	Reviews        []*Review         `json:"reviews,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Review belongs to exactly one Product and never outlives it.
type Review struct {
	ID           int64      `json:"id"`
	ProductID    int64      `json:"product_id"`
	ReviewerName *string    `json:"reviewer_name"`
	Rating       *int       `json:"rating"`
	ReviewDate   *time.Time `json:"review_date"`
	ReviewText   *string    `json:"review_text"`
	CreatedAt    time.Time  `json:"created_at"`
}
