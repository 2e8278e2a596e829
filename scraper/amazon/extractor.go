package amazon

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"amazon-scraper/logger"
	"amazon-scraper/models"
)

const (
	specKeyBrand = "Brand, Seller, or Collection Name"
	specKeyModel = "Model number"
)

var (
	// asinRegexp matches the 10-character ASIN following a /dp/ path segment.
	asinRegexp = regexp.MustCompile(`/dp/([A-Z0-9]{10})`)
	// reviewDateRegexp captures the "on Month D, YYYY" suffix of review dates.
	reviewDateRegexp = regexp.MustCompile(`on (\w+ \d{1,2}, \d{4})`)
	// imageHostRegexp keeps only canonical full-catalog image URLs.
	imageHostRegexp = regexp.MustCompile(`^https://m\.media-amazon\.com/images/I/.{0,26}\.jpg$`)
	// thumbSuffixRegexp matches embedded thumbnail-size suffixes.
	thumbSuffixRegexp = regexp.MustCompile(`\._AC_SR\d{2,3},\d{2,3}_\.jpg`)
)

// Extractor turns a rendered product page into a Product candidate.
//
// Every field is extracted by an independent sub-routine that absorbs its own
// failures: a markup mismatch or parse error on one field leaves the field at
// its zero value and never aborts extraction of the others.
type Extractor struct {
	log *logger.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(log *logger.Logger) *Extractor {
	return &Extractor{log: log.WithComponent("extractor")}
}

// Extract builds a Product candidate from the document. A candidate without
// an ASIN is returned as-is; callers decide that it is unusable for
// persistence.
func (e *Extractor) Extract(doc *goquery.Document, url string) *models.Product {
	specs := extractSpecifications(doc)

	p := &models.Product{
		ASIN:           ExtractASIN(url),
		ProductURL:     url,
		Brand:          specValue(specs, specKeyBrand),
		Model:          specValue(specs, specKeyModel),
		Title:          extractTitle(doc),
		Price:          extractPrice(doc),
		AverageRating:  extractRating(doc),
		ReviewCount:    extractReviewCount(doc),
		Specifications: specs,
		ImageURLs:      extractImageURLs(doc),
		Reviews:        extractReviews(doc),
	}

	if p.ASIN == "" {
		e.log.Warn().Str("url", url).Msg("No ASIN in URL, candidate unusable")
	}
	return p
}

// ExtractASIN parses the ASIN from a product URL. Returns "" when the URL
// has no /dp/{10-alphanumeric} segment.
func ExtractASIN(url string) string {
	m := asinRegexp.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[1]
}

func extractTitle(doc *goquery.Document) *string {
	title := strings.TrimSpace(doc.Find("#productTitle").First().Text())
	if title == "" {
		return nil
	}
	return &title
}

func extractPrice(doc *goquery.Document) *float64 {
	raw := doc.Find("#corePriceDisplay_desktop_feature_div span[aria-hidden=true]").
		First().Text()
	return ParsePrice(raw)
}

// ParsePrice strips the currency symbol and thousands separators and parses
// the remainder as a float. Returns nil on any parse error.
func ParsePrice(raw string) *float64 {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	if cleaned == "" {
		return nil
	}
	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || price < 0 {
		return nil
	}
	return &price
}

func extractRating(doc *goquery.Document) *float64 {
	raw := strings.TrimSpace(doc.Find("#acrPopover .a-size-base.a-color-base").First().Text())
	rating, err := strconv.ParseFloat(raw, 64)
	if err != nil || rating < 0 || rating > 5 {
		return nil
	}
	return &rating
}

func extractReviewCount(doc *goquery.Document) *int {
	raw := strings.TrimSpace(doc.Find("#acrCustomerReviewText").First().Text())
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil
	}
	count, err := strconv.Atoi(strings.ReplaceAll(fields[0], ",", ""))
	if err != nil || count < 0 {
		return nil
	}
	return &count
}

// extractReviews iterates review blocks independently: one malformed block is
// skipped, its siblings are kept.
func extractReviews(doc *goquery.Document) []*models.Review {
	var reviews []*models.Review

	doc.Find("div[data-hook=review]").Each(func(_ int, sel *goquery.Selection) {
		review := &models.Review{}

		if name := strings.TrimSpace(sel.Find("span.a-profile-name").First().Text()); name != "" {
			review.ReviewerName = &name
		}

		ratingText := sel.Find("i[data-hook=review-star-rating]").First().Text()
		ratingText = strings.TrimSpace(strings.ReplaceAll(ratingText, "out of 5 stars", ""))
		if f, err := strconv.ParseFloat(ratingText, 64); err == nil {
			r := int(f)
			if r >= 1 && r <= 5 {
				review.Rating = &r
			}
		}

		review.ReviewDate = ExtractReviewDate(sel.Find("span[data-hook=review-date]").First().Text())

		if body := strings.TrimSpace(sel.Find("span[data-hook=review-body]").First().Text()); body != "" {
			review.ReviewText = &body
		}

		// A block with none of the fields is markup noise, not a review.
		if review.ReviewerName == nil && review.Rating == nil &&
			review.ReviewDate == nil && review.ReviewText == nil {
			return
		}
		reviews = append(reviews, review)
	})

	return reviews
}

// ExtractReviewDate pulls the human-readable "Month D, YYYY" substring out of
// a review date line and parses it. Returns nil when no date is present.
func ExtractReviewDate(text string) *time.Time {
	m := reviewDateRegexp.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	t, err := time.Parse("January 2, 2006", m[1])
	if err != nil {
		return nil
	}
	return &t
}

func extractSpecifications(doc *goquery.Document) map[string]string {
	specs := make(map[string]string)

	doc.Find("table#technicalSpecifications_section_1 tr").Each(func(_ int, row *goquery.Selection) {
		key := strings.TrimSpace(row.Find("th").First().Text())
		value := normalizeWhitespace(row.Find("td").First().Text())
		if key != "" && value != "" {
			specs[key] = value
		}
	})

	return specs
}

func extractImageURLs(doc *goquery.Document) []string {
	var urls []string
	doc.Find("#altImages img").Each(func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr("src"); ok {
			urls = append(urls, src)
		}
	})
	return CleanImageURLs(FilterImageURLs(urls))
}

// FilterImageURLs keeps only URLs on the canonical image host.
func FilterImageURLs(urls []string) []string {
	var filtered []string
	for _, u := range urls {
		if imageHostRegexp.MatchString(u) {
			filtered = append(filtered, u)
		}
	}
	return filtered
}

// CleanImageURLs strips embedded thumbnail-size suffixes to recover the
// full-resolution URLs.
func CleanImageURLs(urls []string) []string {
	cleaned := make([]string, len(urls))
	for i, u := range urls {
		cleaned[i] = thumbSuffixRegexp.ReplaceAllString(u, ".jpg")
	}
	return cleaned
}

func specValue(specs map[string]string, key string) *string {
	if v, ok := specs[key]; ok && v != "" {
		return &v
	}
	return nil
}

// normalizeWhitespace collapses runs of whitespace into single spaces.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
