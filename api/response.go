package api

import "amazon-scraper/models"

// PaginatedMetadata describes one page of a larger result set.
type PaginatedMetadata struct {
	Total       int  `json:"total"`
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	TotalPages  int  `json:"total_pages"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

func newMetadata(total, page, limit int) PaginatedMetadata {
	totalPages := (total + limit - 1) / limit
	return PaginatedMetadata{
		Total:       total,
		Page:        page,
		Limit:       limit,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}
}

type paginatedProductsResponse struct {
	Metadata PaginatedMetadata `json:"metadata"`
	Items    []*models.Product `json:"items"`
}

type paginatedReviewsResponse struct {
	Metadata PaginatedMetadata `json:"metadata"`
	Items    []*models.Review  `json:"items"`
}

type messageResponse struct {
	Message string `json:"message"`
}
