package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"amazon-scraper/models"
)

// PostgresRepository persists products and reviews in PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

var _ ProductRepository = (*PostgresRepository)(nil)

// NewPostgresRepository opens a connection, waits for the server to become
// reachable, runs schema migrations, and returns a ready repository.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	repo := &PostgresRepository{db: db}
	if err := repo.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return repo, nil
}

// DB exposes the underlying handle for collaborators sharing the connection
// pool, such as the job store.
func (r *PostgresRepository) DB() *sql.DB {
	return r.db
}

func (r *PostgresRepository) migrate() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS products (
			id             SERIAL PRIMARY KEY,
			asin           VARCHAR(10)  UNIQUE NOT NULL,
			product_url    TEXT         NOT NULL,
			brand          TEXT,
			model          TEXT,
			title          TEXT,
			price          DOUBLE PRECISION,
			average_rating DOUBLE PRECISION,
			review_count   INTEGER,
			specifications JSONB,
			image_urls     JSONB,
			created_at     TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS reviews (
			id            SERIAL PRIMARY KEY,
			product_id    INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			reviewer_name TEXT,
			rating        INTEGER,
			review_date   TIMESTAMPTZ,
			review_text   TEXT,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_products_asin          ON products(asin);
		CREATE INDEX IF NOT EXISTS idx_products_price         ON products(price);
		CREATE INDEX IF NOT EXISTS idx_products_rating        ON products(average_rating);
		CREATE INDEX IF NOT EXISTS idx_products_review_count  ON products(review_count);
		CREATE INDEX IF NOT EXISTS idx_reviews_product_id     ON reviews(product_id);
	`)
	return err
}

// Save upserts the product keyed on ASIN and replaces its reviews, all
// inside one transaction. Either every row commits or none does.
func (r *PostgresRepository) Save(ctx context.Context, product *models.Product) error {
	specsJSON, err := json.Marshal(product.Specifications)
	if err != nil {
		return &PersistenceError{Op: "marshal specifications", Err: err}
	}
	imagesJSON, err := json.Marshal(product.ImageURLs)
	if err != nil {
		return &PersistenceError{Op: "marshal image urls", Err: err}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &PersistenceError{Op: "begin tx", Err: err}
	}
	defer tx.Rollback()

	var productID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO products (asin, product_url, brand, model, title, price,
		                      average_rating, review_count, specifications, image_urls)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (asin) DO UPDATE SET
			product_url    = EXCLUDED.product_url,
			brand          = EXCLUDED.brand,
			model          = EXCLUDED.model,
			title          = EXCLUDED.title,
			price          = EXCLUDED.price,
			average_rating = EXCLUDED.average_rating,
			review_count   = EXCLUDED.review_count,
			specifications = EXCLUDED.specifications,
			image_urls     = EXCLUDED.image_urls
		RETURNING id
	`, product.ASIN, product.ProductURL, product.Brand, product.Model,
		product.Title, product.Price, product.AverageRating, product.ReviewCount,
		specsJSON, imagesJSON).Scan(&productID)
	if err != nil {
		return &PersistenceError{Op: "upsert product", Err: err}
	}

	// Re-ingestion replaces the review set; stale reviews must not survive.
	if _, err := tx.ExecContext(ctx, `DELETE FROM reviews WHERE product_id = $1`, productID); err != nil {
		return &PersistenceError{Op: "clear reviews", Err: err}
	}

	for _, review := range product.Reviews {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO reviews (product_id, reviewer_name, rating, review_date, review_text)
			VALUES ($1, $2, $3, $4, $5)
		`, productID, review.ReviewerName, review.Rating, review.ReviewDate, review.ReviewText)
		if err != nil {
			return &PersistenceError{Op: "insert review", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &PersistenceError{Op: "commit", Err: err}
	}

	product.ID = productID
	return nil
}

const productColumns = `id, asin, product_url, brand, model, title, price,
	average_rating, review_count, specifications, image_urls, created_at`

// FindByASIN returns (nil, nil) when no product has the ASIN.
func (r *PostgresRepository) FindByASIN(ctx context.Context, asin string) (*models.Product, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE asin = $1`, asin)
	return r.scanProductRow(row)
}

// FindByID returns (nil, nil) when the id is unknown.
func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (*models.Product, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return r.scanProductRow(row)
}

// List returns one page of products plus the total match count.
func (r *PostgresRepository) List(ctx context.Context, q ProductQuery) ([]*models.Product, int, error) {
	where, args := buildProductFilter(q)

	var total int
	countQuery := `SELECT COUNT(*) FROM products` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, &PersistenceError{Op: "count products", Err: err}
	}

	query := `SELECT ` + productColumns + ` FROM products` + where

	switch q.SortBy {
	case ProductSortPrice:
		query += ` ORDER BY price` + sortDirection(q.SortDesc) + ` NULLS LAST`
	case ProductSortRating:
		query += ` ORDER BY average_rating` + sortDirection(q.SortDesc) + ` NULLS LAST`
	case ProductSortReviewCount:
		query += ` ORDER BY review_count` + sortDirection(q.SortDesc) + ` NULLS LAST`
	default:
		query += ` ORDER BY id`
	}

	offset := (q.Page - 1) * q.Limit
	args = append(args, q.Limit, offset)
	query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, &PersistenceError{Op: "list products", Err: err}
	}
	defer rows.Close()

	products, err := r.scanProducts(rows)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// TopRated returns the best rated products with their reviews embedded.
func (r *PostgresRepository) TopRated(ctx context.Context, limit, minReviews int) ([]*models.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE review_count >= $1
		ORDER BY average_rating DESC NULLS LAST, review_count DESC
		LIMIT $2
	`, minReviews, limit)
	if err != nil {
		return nil, &PersistenceError{Op: "top products", Err: err}
	}
	defer rows.Close()

	products, err := r.scanProducts(rows)
	if err != nil {
		return nil, err
	}

	for _, p := range products {
		reviews, _, err := r.ListReviews(ctx, p.ID, ReviewQuery{
			SortBy: ReviewSortDate, SortDesc: true, Page: 1, Limit: 100,
		})
		if err != nil {
			return nil, err
		}
		p.Reviews = reviews
	}
	return products, nil
}

// ListReviews returns one page of a product's reviews plus the total.
func (r *PostgresRepository) ListReviews(ctx context.Context, productID int64, q ReviewQuery) ([]*models.Review, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reviews WHERE product_id = $1`, productID).Scan(&total)
	if err != nil {
		return nil, 0, &PersistenceError{Op: "count reviews", Err: err}
	}

	query := `
		SELECT id, product_id, reviewer_name, rating, review_date, review_text, created_at
		FROM reviews WHERE product_id = $1`

	switch q.SortBy {
	case ReviewSortRating:
		query += ` ORDER BY rating` + sortDirection(q.SortDesc) + ` NULLS LAST`
	default:
		query += ` ORDER BY review_date` + sortDirection(q.SortDesc) + ` NULLS LAST`
	}

	offset := (q.Page - 1) * q.Limit
	query += ` LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, productID, q.Limit, offset)
	if err != nil {
		return nil, 0, &PersistenceError{Op: "list reviews", Err: err}
	}
	defer rows.Close()

	var reviews []*models.Review
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, 0, err
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, &PersistenceError{Op: "iterate reviews", Err: err}
	}
	return reviews, total, nil
}

// FetchAll returns every product without reviews, for bulk indexing.
func (r *PostgresRepository) FetchAll(ctx context.Context) ([]*models.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, &PersistenceError{Op: "fetch all", Err: err}
	}
	defer rows.Close()

	return r.scanProducts(rows)
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

func buildProductFilter(q ProductQuery) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Search != "" {
		p := arg("%" + q.Search + "%")
		clauses = append(clauses, fmt.Sprintf(
			"(brand ILIKE %s OR model ILIKE %s OR title ILIKE %s)", p, p, p))
	}
	if q.Brand != "" {
		clauses = append(clauses, "brand ILIKE "+arg("%"+q.Brand+"%"))
	}
	if q.Model != "" {
		clauses = append(clauses, "model ILIKE "+arg("%"+q.Model+"%"))
	}
	if q.MinPrice != nil {
		clauses = append(clauses, "price >= "+arg(*q.MinPrice))
	}
	if q.MaxPrice != nil {
		clauses = append(clauses, "price <= "+arg(*q.MaxPrice))
	}
	if q.MinRating != nil {
		clauses = append(clauses, "average_rating >= "+arg(*q.MinRating))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func sortDirection(desc bool) string {
	if desc {
		return " DESC"
	}
	return " ASC"
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *PostgresRepository) scanProductRow(row *sql.Row) (*models.Product, error) {
	product, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (r *PostgresRepository) scanProducts(rows *sql.Rows) ([]*models.Product, error) {
	var products []*models.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "iterate products", Err: err}
	}
	return products, nil
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var (
		p          models.Product
		brand      sql.NullString
		model      sql.NullString
		title      sql.NullString
		price      sql.NullFloat64
		rating     sql.NullFloat64
		count      sql.NullInt64
		specsJSON  []byte
		imagesJSON []byte
	)

	err := row.Scan(&p.ID, &p.ASIN, &p.ProductURL, &brand, &model, &title,
		&price, &rating, &count, &specsJSON, &imagesJSON, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, &PersistenceError{Op: "scan product", Err: err}
	}

	p.Brand = nullableString(brand)
	p.Model = nullableString(model)
	p.Title = nullableString(title)
	if price.Valid {
		p.Price = &price.Float64
	}
	if rating.Valid {
		p.AverageRating = &rating.Float64
	}
	if count.Valid {
		c := int(count.Int64)
		p.ReviewCount = &c
	}
	if len(specsJSON) > 0 {
		if err := json.Unmarshal(specsJSON, &p.Specifications); err != nil {
			return nil, &PersistenceError{Op: "unmarshal specifications", Err: err}
		}
	}
	if len(imagesJSON) > 0 {
		if err := json.Unmarshal(imagesJSON, &p.ImageURLs); err != nil {
			return nil, &PersistenceError{Op: "unmarshal image urls", Err: err}
		}
	}
	return &p, nil
}

func scanReview(row rowScanner) (*models.Review, error) {
	var (
		review models.Review
		name   sql.NullString
		rating sql.NullInt64
		date   sql.NullTime
		text   sql.NullString
	)

	err := row.Scan(&review.ID, &review.ProductID, &name, &rating, &date, &text, &review.CreatedAt)
	if err != nil {
		return nil, &PersistenceError{Op: "scan review", Err: err}
	}

	review.ReviewerName = nullableString(name)
	if rating.Valid {
		v := int(rating.Int64)
		review.Rating = &v
	}
	if date.Valid {
		review.ReviewDate = &date.Time
	}
	review.ReviewText = nullableString(text)
	return &review, nil
}

func nullableString(s sql.NullString) *string {
	if s.Valid {
		return &s.String
	}
	return nil
}
