package api

import (
	"net/http"
	"strconv"

	"amazon-scraper/storage"
)

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q, apiErr := parseProductQuery(r)
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}

	items, total, err := s.repo.List(r.Context(), *q)
	if err != nil {
		writeError(w, internalError(err.Error()))
		return
	}

	metadata := newMetadata(total, q.Page, q.Limit)
	if q.Page > metadata.TotalPages && metadata.TotalPages > 0 {
		writeError(w, invalidParameter("page",
			"Page "+strconv.Itoa(q.Page)+" exceeds available pages ("+strconv.Itoa(metadata.TotalPages)+")"))
		return
	}

	writeJSON(w, http.StatusOK, paginatedProductsResponse{Metadata: metadata, Items: items})
}

func (s *Server) handleTopProducts(w http.ResponseWriter, r *http.Request) {
	limit, apiErr := intParam(r, "limit", 10, 1, 50)
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}
	minReviews, apiErr := intParam(r, "min_reviews", 5, 1, 1<<30)
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}

	products, err := s.repo.TopRated(r.Context(), limit, minReviews)
	if err != nil {
		writeError(w, internalError(err.Error()))
		return
	}
	if len(products) == 0 {
		writeError(w, notFound("Products", "minimum "+strconv.Itoa(minReviews)+" reviews"))
		return
	}

	writeJSON(w, http.StatusOK, products)
}

func (s *Server) handleProductReviews(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, invalidParameter("product_id", "Must be an integer"))
		return
	}

	sortBy := queryDefault(r, "sort_by", string(storage.ReviewSortDate))
	sortField, ok := storage.ParseReviewSortField(sortBy)
	if !ok {
		writeError(w, invalidParameter("sort_by", "Must be one of: review_date, rating"))
		return
	}

	sortDesc, apiErr := parseSortOrder(queryDefault(r, "sort_order", "desc"))
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}

	page, apiErr := intParam(r, "page", 1, 1, 1<<30)
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}
	limit, apiErr := intParam(r, "limit", 10, 1, 100)
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}

	product, err := s.repo.FindByID(r.Context(), productID)
	if err != nil {
		writeError(w, internalError(err.Error()))
		return
	}
	if product == nil {
		writeError(w, notFound("Product", productID))
		return
	}

	items, total, err := s.repo.ListReviews(r.Context(), productID, storage.ReviewQuery{
		SortBy:   sortField,
		SortDesc: sortDesc,
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		writeError(w, internalError(err.Error()))
		return
	}

	metadata := newMetadata(total, page, limit)
	if page > metadata.TotalPages && metadata.TotalPages > 0 {
		writeError(w, invalidParameter("page", "No reviews found for the specified page"))
		return
	}

	writeJSON(w, http.StatusOK, paginatedReviewsResponse{Metadata: metadata, Items: items})
}

func parseProductQuery(r *http.Request) (*storage.ProductQuery, *apiError) {
	q := &storage.ProductQuery{
		Search: r.URL.Query().Get("search"),
		Brand:  r.URL.Query().Get("brand"),
		Model:  r.URL.Query().Get("model"),
	}

	var apiErr *apiError
	if q.MinPrice, apiErr = floatParam(r, "min_price", 0, -1); apiErr != nil {
		return nil, apiErr
	}
	if q.MaxPrice, apiErr = floatParam(r, "max_price", 0, -1); apiErr != nil {
		return nil, apiErr
	}
	if q.MinRating, apiErr = floatParam(r, "min_rating", 0, 5); apiErr != nil {
		return nil, apiErr
	}
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		return nil, invalidParameter("price_range", "Minimum price cannot be greater than maximum price")
	}

	sortField, ok := storage.ParseProductSortField(r.URL.Query().Get("sort_by"))
	if !ok {
		return nil, invalidParameter("sort_by", "Must be one of: price, rating, review_count")
	}
	q.SortBy = sortField

	sortDesc, apiErr := parseSortOrder(queryDefault(r, "sort_order", "asc"))
	if apiErr != nil {
		return nil, apiErr
	}
	q.SortDesc = sortDesc

	if q.Page, apiErr = intParam(r, "page", 1, 1, 1<<30); apiErr != nil {
		return nil, apiErr
	}
	if q.Limit, apiErr = intParam(r, "limit", 10, 1, 100); apiErr != nil {
		return nil, apiErr
	}

	return q, nil
}

func parseSortOrder(order string) (bool, *apiError) {
	switch order {
	case "asc":
		return false, nil
	case "desc":
		return true, nil
	}
	return false, invalidParameter("sort_order", "Must be 'asc' or 'desc'")
}

func queryDefault(r *http.Request, key, fallback string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return fallback
}

func intParam(r *http.Request, key string, fallback, min, max int) (int, *apiError) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidParameter(key, "Must be an integer")
	}
	if v < min || v > max {
		return 0, invalidParameter(key, "Out of range")
	}
	return v, nil
}

// floatParam parses an optional float query parameter bounded by [min, max];
// max < 0 means unbounded above.
func floatParam(r *http.Request, key string, min, max float64) (*float64, *apiError) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, invalidParameter(key, "Must be a number")
	}
	if v < min || (max >= 0 && v > max) {
		return nil, invalidParameter(key, "Out of range")
	}
	return &v, nil
}
