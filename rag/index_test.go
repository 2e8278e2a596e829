package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amazon-scraper/logger"
	"amazon-scraper/models"
)

// stubEmbedder maps each text to a fixed vector, unknown texts to a default.
type stubEmbedder struct {
	vectors  map[string][]float64
	fallback []float64
}

func (e *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		if v, ok := e.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = e.fallback
		}
	}
	return out, nil
}

func strPtr(s string) *string { return &s }
func fPtr(f float64) *float64 { return &f }
func iPtr(i int) *int         { return &i }

func TestFlattenAppliesDefaults(t *testing.T) {
	doc := Flatten(&models.Product{ID: 7, ASIN: "B000000001"})

	assert.Equal(t, int64(7), doc.ProductID)
	assert.Equal(t, "Unknown Title", doc.Title)
	assert.Equal(t, "Unknown Brand", doc.Brand)
	assert.Equal(t, "Unknown Model", doc.Model)
	assert.Zero(t, doc.Price)
	assert.Zero(t, doc.AverageRating)
	assert.Zero(t, doc.ReviewCount)
}

func TestProductDocumentText(t *testing.T) {
	doc := ProductDocument{
		Title:         "Acme Field Watch",
		Brand:         "Acme",
		Model:         "AW-100",
		Price:         120,
		AverageRating: 4.7,
		ReviewCount:   820,
	}
	assert.Equal(t,
		"Acme Field Watch - Acme (AW-100): $120.00 | Rating: 4.7 | Reviews: 820",
		doc.Text())
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{1, 0}, []float64{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float64{1, 0}, []float64{-1, 0}), 1e-9)

	// Mismatched or zero vectors degrade to zero instead of failing.
	assert.Zero(t, cosineSimilarity([]float64{1, 0}, []float64{1}))
	assert.Zero(t, cosineSimilarity([]float64{0, 0}, []float64{1, 0}))
	assert.Zero(t, cosineSimilarity(nil, nil))
}

func indexedProduct(id int64, title, brand, model string, price, rating float64, reviews int) *models.Product {
	return &models.Product{
		ID:            id,
		Title:         strPtr(title),
		Brand:         strPtr(brand),
		Model:         strPtr(model),
		Price:         fPtr(price),
		AverageRating: fPtr(rating),
		ReviewCount:   iPtr(reviews),
	}
}

func TestIndexQueryRanksBySimilarity(t *testing.T) {
	diver := indexedProduct(1, "Acme Diver", "Acme", "AD-1", 310.50, 4.2, 95)
	field := indexedProduct(2, "Acme Field Watch", "Acme", "AW-100", 120, 4.7, 820)
	chrono := indexedProduct(3, "Orbit Chrono", "Orbit", "OC-9", 89.99, 4.7, 310)

	embedder := &stubEmbedder{
		vectors: map[string][]float64{
			Flatten(diver).Text():  {1, 0, 0},
			Flatten(field).Text():  {0, 1, 0},
			Flatten(chrono).Text(): {0.7, 0.7, 0},
			"dive watch":           {0.9, 0.1, 0},
		},
	}

	index := NewIndex(embedder, logger.NewNop())
	count, err := index.Load(context.Background(), []*models.Product{diver, field, chrono})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 3, index.Size())

	matches, err := index.Query(context.Background(), "dive watch", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, int64(1), matches[0].Document.ProductID)
	assert.Equal(t, int64(3), matches[1].Document.ProductID)
	assert.Greater(t, matches[0].Similarity, matches[1].Similarity)
}

func TestIndexQueryEmpty(t *testing.T) {
	index := NewIndex(&stubEmbedder{}, logger.NewNop())

	_, err := index.Query(context.Background(), "anything", 3)
	assert.ErrorIs(t, err, ErrIndexEmpty)
}

func TestIndexLoadReplacesContents(t *testing.T) {
	embedder := &stubEmbedder{fallback: []float64{1, 0}}
	index := NewIndex(embedder, logger.NewNop())

	_, err := index.Load(context.Background(), []*models.Product{
		indexedProduct(1, "A", "A", "A", 1, 1, 1),
		indexedProduct(2, "B", "B", "B", 2, 2, 2),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, index.Size())

	_, err = index.Load(context.Background(), []*models.Product{
		indexedProduct(3, "C", "C", "C", 3, 3, 3),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, index.Size())

	matches, err := index.Query(context.Background(), "anything", 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, int64(3), matches[0].Document.ProductID)
}
