package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"amazon-scraper/models"
)

// MemoryRepository is an in-memory ProductRepository. It backs tests and
// dry runs where no database is available; semantics mirror the Postgres
// implementation, including ASIN-keyed upsert and review replacement.
type MemoryRepository struct {
	mu       sync.RWMutex
	nextID   int64
	products map[string]*models.Product // keyed by ASIN
}

var _ ProductRepository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		nextID:   1,
		products: make(map[string]*models.Product),
	}
}

// Save upserts the product keyed on ASIN, last write wins.
func (r *MemoryRepository) Save(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := cloneProduct(product)
	if existing, ok := r.products[product.ASIN]; ok {
		stored.ID = existing.ID
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.ID = r.nextID
		stored.CreatedAt = time.Now()
		r.nextID++
	}

	var reviewID int64 = 1
	for _, review := range stored.Reviews {
		review.ID = reviewID
		review.ProductID = stored.ID
		reviewID++
	}

	r.products[product.ASIN] = stored
	product.ID = stored.ID
	return nil
}

func (r *MemoryRepository) FindByASIN(_ context.Context, asin string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.products[asin]; ok {
		return cloneProduct(p), nil
	}
	return nil, nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id int64) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.products {
		if p.ID == id {
			return cloneProduct(p), nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) List(_ context.Context, q ProductQuery) ([]*models.Product, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*models.Product
	for _, p := range r.sortedByID() {
		if matchesQuery(p, q) {
			matched = append(matched, cloneProduct(p))
		}
	}

	sortProducts(matched, q.SortBy, q.SortDesc)

	total := len(matched)
	start := (q.Page - 1) * q.Limit
	if start >= total {
		return nil, total, nil
	}
	end := start + q.Limit
	if end > total {
		end = total
	}

	page := matched[start:end]
	for _, p := range page {
		p.Reviews = nil
	}
	return page, total, nil
}

func (r *MemoryRepository) TopRated(_ context.Context, limit, minReviews int) ([]*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*models.Product
	for _, p := range r.sortedByID() {
		if p.ReviewCount != nil && *p.ReviewCount >= minReviews {
			matched = append(matched, cloneProduct(p))
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		ri, rj := floatOrZero(matched[i].AverageRating), floatOrZero(matched[j].AverageRating)
		if ri != rj {
			return ri > rj
		}
		return intOrZero(matched[i].ReviewCount) > intOrZero(matched[j].ReviewCount)
	})

	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *MemoryRepository) ListReviews(_ context.Context, productID int64, q ReviewQuery) ([]*models.Review, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var reviews []*models.Review
	for _, p := range r.products {
		if p.ID != productID {
			continue
		}
		for _, review := range p.Reviews {
			c := *review
			reviews = append(reviews, &c)
		}
	}

	sort.SliceStable(reviews, func(i, j int) bool {
		var less bool
		if q.SortBy == ReviewSortRating {
			less = intOrZero(reviews[i].Rating) < intOrZero(reviews[j].Rating)
		} else {
			less = timeOrZero(reviews[i].ReviewDate).Before(timeOrZero(reviews[j].ReviewDate))
		}
		if q.SortDesc {
			return !less
		}
		return less
	})

	total := len(reviews)
	start := (q.Page - 1) * q.Limit
	if start >= total {
		return nil, total, nil
	}
	end := start + q.Limit
	if end > total {
		end = total
	}
	return reviews[start:end], total, nil
}

func (r *MemoryRepository) FetchAll(_ context.Context) ([]*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var products []*models.Product
	for _, p := range r.sortedByID() {
		clone := cloneProduct(p)
		clone.Reviews = nil
		products = append(products, clone)
	}
	return products, nil
}

func (r *MemoryRepository) Close() error {
	return nil
}

func (r *MemoryRepository) sortedByID() []*models.Product {
	products := make([]*models.Product, 0, len(r.products))
	for _, p := range r.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products
}

func matchesQuery(p *models.Product, q ProductQuery) bool {
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !containsFold(p.Brand, needle) && !containsFold(p.Model, needle) &&
			!containsFold(p.Title, needle) {
			return false
		}
	}
	if q.Brand != "" && !containsFold(p.Brand, strings.ToLower(q.Brand)) {
		return false
	}
	if q.Model != "" && !containsFold(p.Model, strings.ToLower(q.Model)) {
		return false
	}
	if q.MinPrice != nil && (p.Price == nil || *p.Price < *q.MinPrice) {
		return false
	}
	if q.MaxPrice != nil && (p.Price == nil || *p.Price > *q.MaxPrice) {
		return false
	}
	if q.MinRating != nil && (p.AverageRating == nil || *p.AverageRating < *q.MinRating) {
		return false
	}
	return true
}

func sortProducts(products []*models.Product, field ProductSortField, desc bool) {
	if field == ProductSortNone {
		return
	}
	sort.SliceStable(products, func(i, j int) bool {
		var less bool
		switch field {
		case ProductSortPrice:
			less = floatOrZero(products[i].Price) < floatOrZero(products[j].Price)
		case ProductSortRating:
			less = floatOrZero(products[i].AverageRating) < floatOrZero(products[j].AverageRating)
		case ProductSortReviewCount:
			less = intOrZero(products[i].ReviewCount) < intOrZero(products[j].ReviewCount)
		}
		if desc {
			return !less
		}
		return less
	})
}

func containsFold(s *string, needle string) bool {
	return s != nil && strings.Contains(strings.ToLower(*s), needle)
}

func floatOrZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func intOrZero(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func cloneProduct(p *models.Product) *models.Product {
	clone := *p
	if p.Specifications != nil {
		clone.Specifications = make(map[string]string, len(p.Specifications))
		for k, v := range p.Specifications {
			clone.Specifications[k] = v
		}
	}
	clone.ImageURLs = append([]string(nil), p.ImageURLs...)
	clone.Reviews = make([]*models.Review, len(p.Reviews))
	for i, review := range p.Reviews {
		c := *review
		clone.Reviews[i] = &c
	}
	return &clone
}
