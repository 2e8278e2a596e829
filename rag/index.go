package rag

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"amazon-scraper/logger"
	"amazon-scraper/models"
)

// Documented defaults replacing missing values in the flat projection.
const (
	defaultTitle = "Unknown Title"
	defaultBrand = "Unknown Brand"
	defaultModel = "Unknown Model"
)

// ErrIndexEmpty is returned when querying before any products were loaded.
var ErrIndexEmpty = errors.New("semantic index is empty")

// ProductDocument is the flat tabular projection of a product that gets
// embedded and returned from queries.
type ProductDocument struct {
	ProductID     int64   `json:"product_id"`
	Title         string  `json:"title"`
	Brand         string  `json:"brand"`
	Model         string  `json:"model"`
	Price         float64 `json:"price"`
	AverageRating float64 `json:"average_rating"`
	ReviewCount   int     `json:"review_count"`
}

// Text renders the document as the single line that is embedded and used as
// answer context.
func (d ProductDocument) Text() string {
	return fmt.Sprintf("%s - %s (%s): $%.2f | Rating: %.1f | Reviews: %d",
		d.Title, d.Brand, d.Model, d.Price, d.AverageRating, d.ReviewCount)
}

// Match is one query result with its cosine similarity.
type Match struct {
	Document   ProductDocument `json:"document"`
	Similarity float64         `json:"similarity"`
}

type indexEntry struct {
	doc    ProductDocument
	vector []float64
}

// Index is an in-memory vector index over the product projection.
type Index struct {
	embedder Embedder
	log      *logger.Logger

	mu      sync.RWMutex
	entries []indexEntry
}

// NewIndex creates an empty Index over the given embedder.
func NewIndex(embedder Embedder, log *logger.Logger) *Index {
	return &Index{
		embedder: embedder,
		log:      log.WithComponent("semantic-index"),
	}
}

// Load replaces the index contents with embeddings of the given products and
// returns the number of indexed documents.
func (i *Index) Load(ctx context.Context, products []*models.Product) (int, error) {
	docs := make([]ProductDocument, len(products))
	texts := make([]string, len(products))
	for n, p := range products {
		docs[n] = Flatten(p)
		texts[n] = docs[n].Text()
	}

	vectors, err := i.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, err
	}

	entries := make([]indexEntry, len(docs))
	for n := range docs {
		entries[n] = indexEntry{doc: docs[n], vector: vectors[n]}
	}

	i.mu.Lock()
	i.entries = entries
	i.mu.Unlock()

	i.log.Info().Int("documents", len(entries)).Msg("Semantic index loaded")
	return len(entries), nil
}

// Query embeds the free-text query and returns the topK nearest documents by
// cosine similarity.
func (i *Index) Query(ctx context.Context, text string, topK int) ([]Match, error) {
	i.mu.RLock()
	empty := len(i.entries) == 0
	i.mu.RUnlock()
	if empty {
		return nil, ErrIndexEmpty
	}

	vectors, err := i.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	query := vectors[0]

	i.mu.RLock()
	matches := make([]Match, 0, len(i.entries))
	for _, entry := range i.entries {
		matches = append(matches, Match{
			Document:   entry.doc,
			Similarity: cosineSimilarity(query, entry.vector),
		})
	}
	i.mu.RUnlock()

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Similarity > matches[b].Similarity
	})

	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Size returns the number of indexed documents.
func (i *Index) Size() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}

// Flatten projects a product onto the indexable document, substituting the
// documented defaults for missing values.
func Flatten(p *models.Product) ProductDocument {
	doc := ProductDocument{
		ProductID: p.ID,
		Title:     defaultTitle,
		Brand:     defaultBrand,
		Model:     defaultModel,
	}
	if p.Title != nil {
		doc.Title = *p.Title
	}
	if p.Brand != nil {
		doc.Brand = *p.Brand
	}
	if p.Model != nil {
		doc.Model = *p.Model
	}
	if p.Price != nil {
		doc.Price = *p.Price
	}
	if p.AverageRating != nil {
		doc.AverageRating = *p.AverageRating
	}
	if p.ReviewCount != nil {
		doc.ReviewCount = *p.ReviewCount
	}
	return doc
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
