package amazon

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amazon-scraper/logger"
)

const fullProductHTML = `<html><body>
<span id="productTitle">  Acme Quartz Watch  </span>
<div id="corePriceDisplay_desktop_feature_div"><span aria-hidden="true">$1,234.56</span></div>
<div id="acrPopover"><span class="a-size-base a-color-base">4.5</span></div>
<span id="acrCustomerReviewText">1,234 ratings</span>
<div data-hook="review">
  <span class="a-profile-name">Jordan</span>
  <i data-hook="review-star-rating"><span>4.0 out of 5 stars</span></i>
  <span data-hook="review-date">Reviewed in the United States on March 5, 2023</span>
  <span data-hook="review-body">Great watch, keeps perfect time.</span>
</div>
<div data-hook="review">
  <span class="a-profile-name">Sam</span>
  <i data-hook="review-star-rating"><span>not a rating</span></i>
  <span data-hook="review-date">Reviewed in Canada yesterday</span>
  <span data-hook="review-body">Strap broke after a week.</span>
</div>
<table id="technicalSpecifications_section_1">
  <tr><th>Brand, Seller, or Collection Name</th><td>Acme</td></tr>
  <tr><th>Model number</th><td>AW-100</td></tr>
  <tr><th>Band Material</th><td>Stainless   Steel</td></tr>
</table>
<div id="altImages">
  <img src="https://m.media-amazon.com/images/I/41abc._AC_SR38,50_.jpg"/>
  <img src="https://m.media-amazon.com/images/I/51xyz.jpg"/>
  <img src="https://example.com/elsewhere.jpg"/>
</div>
</body></html>`

func docFromHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func newTestExtractor() *Extractor {
	return NewExtractor(logger.NewNop())
}

func TestExtractFullDocument(t *testing.T) {
	doc := docFromHTML(t, fullProductHTML)
	product := newTestExtractor().Extract(doc, "https://www.amazon.com/Acme-Watch/dp/B012345678")

	assert.Equal(t, "B012345678", product.ASIN)

	require.NotNil(t, product.Title)
	assert.Equal(t, "Acme Quartz Watch", *product.Title)

	require.NotNil(t, product.Price)
	assert.Equal(t, 1234.56, *product.Price)

	require.NotNil(t, product.AverageRating)
	assert.Equal(t, 4.5, *product.AverageRating)

	require.NotNil(t, product.ReviewCount)
	assert.Equal(t, 1234, *product.ReviewCount)

	require.NotNil(t, product.Brand)
	assert.Equal(t, "Acme", *product.Brand)
	require.NotNil(t, product.Model)
	assert.Equal(t, "AW-100", *product.Model)
	assert.Equal(t, "Stainless Steel", product.Specifications["Band Material"])

	assert.Equal(t, []string{
		"https://m.media-amazon.com/images/I/41abc.jpg",
		"https://m.media-amazon.com/images/I/51xyz.jpg",
	}, product.ImageURLs)
}

// Removing any single field's markup must not disturb the other fields.
func TestExtractFieldIsolation(t *testing.T) {
	removals := map[string]string{
		"title":        `<span id="productTitle">`,
		"price":        `<div id="corePriceDisplay_desktop_feature_div">`,
		"rating":       `<div id="acrPopover">`,
		"review_count": `<span id="acrCustomerReviewText">`,
		"specs":        `<table id="technicalSpecifications_section_1">`,
		"images":       `<div id="altImages">`,
	}

	for field, marker := range removals {
		t.Run(field, func(t *testing.T) {
			// Renaming the anchor id/element makes the selector miss.
			broken := strings.Replace(fullProductHTML, marker,
				strings.Replace(marker, `"`, `"x`, 1), 1)
			doc := docFromHTML(t, broken)
			product := newTestExtractor().Extract(doc, "https://www.amazon.com/dp/B012345678")

			assert.Equal(t, "B012345678", product.ASIN)
			if field != "title" {
				assert.NotNil(t, product.Title)
			}
			if field != "price" {
				assert.NotNil(t, product.Price)
			}
			if field != "rating" {
				assert.NotNil(t, product.AverageRating)
			}
			if field != "review_count" {
				assert.NotNil(t, product.ReviewCount)
			}
			if field != "images" {
				assert.NotEmpty(t, product.ImageURLs)
			}
			assert.NotEmpty(t, product.Reviews)
		})
	}
}

func TestExtractASIN(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.amazon.com/Acme-Watch/dp/B012345678", "B012345678"},
		{"https://www.amazon.com/dp/B0C1D2E3F4/ref=sr_1_1", "B0C1D2E3F4"},
		{"https://www.amazon.com/gp/product/B012345678", ""},
		{"https://www.amazon.com/dp/short", ""},
		{"https://www.amazon.com/dp/b012345678", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractASIN(tt.url), "url %q", tt.url)
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw  string
		want *float64
	}{
		{"$1,234.56", floatPtr(1234.56)},
		{"$99", floatPtr(99)},
		{"12.50", floatPtr(12.50)},
		{"invalid", nil},
		{"", nil},
		{"$-5.00", nil},
	}

	for _, tt := range tests {
		got := ParsePrice(tt.raw)
		if tt.want == nil {
			assert.Nil(t, got, "raw %q", tt.raw)
		} else {
			require.NotNil(t, got, "raw %q", tt.raw)
			assert.Equal(t, *tt.want, *got)
		}
	}
}

// A malformed review block is skipped without losing its siblings.
func TestExtractReviewsIsolatesMalformedBlocks(t *testing.T) {
	doc := docFromHTML(t, fullProductHTML)
	reviews := extractReviews(doc)

	require.Len(t, reviews, 2)

	first := reviews[0]
	require.NotNil(t, first.ReviewerName)
	assert.Equal(t, "Jordan", *first.ReviewerName)
	require.NotNil(t, first.Rating)
	assert.Equal(t, 4, *first.Rating)
	require.NotNil(t, first.ReviewDate)
	assert.Equal(t, time.Date(2023, time.March, 5, 0, 0, 0, 0, time.UTC), *first.ReviewDate)

	// The second block has an unparseable rating and date but keeps the
	// fields that did extract.
	second := reviews[1]
	require.NotNil(t, second.ReviewerName)
	assert.Equal(t, "Sam", *second.ReviewerName)
	assert.Nil(t, second.Rating)
	assert.Nil(t, second.ReviewDate)
	require.NotNil(t, second.ReviewText)
}

func TestExtractReviewDate(t *testing.T) {
	got := ExtractReviewDate("Reviewed in the United States on January 2, 2024")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC), *got)

	assert.Nil(t, ExtractReviewDate("Reviewed yesterday"))
	assert.Nil(t, ExtractReviewDate(""))
}

func TestFilterAndCleanImageURLs(t *testing.T) {
	urls := []string{
		"https://m.media-amazon.com/images/I/41abc._AC_SR38,50_.jpg",
		"https://m.media-amazon.com/images/I/51xyz.jpg",
		"https://m.media-amazon.com/images/I/this-stem-is-way-too-long-to-pass-the-filter.jpg",
		"https://example.com/elsewhere.jpg",
		"https://m.media-amazon.com/images/I/41abc.png",
	}

	filtered := FilterImageURLs(urls)
	assert.Equal(t, []string{
		"https://m.media-amazon.com/images/I/41abc._AC_SR38,50_.jpg",
		"https://m.media-amazon.com/images/I/51xyz.jpg",
	}, filtered)

	cleaned := CleanImageURLs(filtered)
	assert.Equal(t, []string{
		"https://m.media-amazon.com/images/I/41abc.jpg",
		"https://m.media-amazon.com/images/I/51xyz.jpg",
	}, cleaned)
}

func TestExtractEmptyDocument(t *testing.T) {
	doc := docFromHTML(t, "<html><body><p>captcha</p></body></html>")
	product := newTestExtractor().Extract(doc, "https://www.amazon.com/dp/B012345678")

	assert.Equal(t, "B012345678", product.ASIN)
	assert.Nil(t, product.Title)
	assert.Nil(t, product.Price)
	assert.Nil(t, product.AverageRating)
	assert.Nil(t, product.ReviewCount)
	assert.Nil(t, product.Brand)
	assert.Nil(t, product.Model)
	assert.Empty(t, product.Specifications)
	assert.Empty(t, product.ImageURLs)
	assert.Empty(t, product.Reviews)
}

func floatPtr(f float64) *float64 { return &f }
