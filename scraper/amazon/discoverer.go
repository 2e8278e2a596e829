package amazon

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"amazon-scraper/logger"
	"amazon-scraper/utils"
)

const baseURL = "https://www.amazon.com"

// Discoverer paginates keyword search results and collects candidate product
// detail URLs. Discovery is sequential: each page's outcome decides whether
// to continue, and a page with zero matching items terminates pagination.
type Discoverer struct {
	fetcher PageFetcher
	log     *logger.Logger

	// delay produces the randomized inter-page pause. Injectable for tests.
	delay func() time.Duration
}

// NewDiscoverer creates a Discoverer over the given fetcher.
func NewDiscoverer(fetcher PageFetcher, log *logger.Logger) *Discoverer {
	return &Discoverer{
		fetcher: fetcher,
		log:     log.WithComponent("discoverer"),
		delay: func() time.Duration {
			return time.Second + time.Duration(rand.Int63n(int64(2*time.Second)))
		},
	}
}

// Discover returns the deduplicated set of product URLs found for the
// keyword across at most maxPages result pages. Ordering is not guaranteed.
// On a fetch failure the URLs collected so far are returned alongside the
// error.
func (d *Discoverer) Discover(ctx context.Context, keyword string, maxPages int) ([]string, error) {
	if err := d.fetcher.Open(); err != nil {
		return nil, err
	}
	defer d.fetcher.Close()

	searchURL := fmt.Sprintf("%s/s?k=%s", baseURL, strings.ReplaceAll(keyword, " ", "+"))
	seen := utils.NewURLSet()

	for page := 1; page <= maxPages; page++ {
		pageURL := fmt.Sprintf("%s&page=%d", searchURL, page)

		doc, err := d.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			d.log.Error().Int("page", page).Err(err).Msg("Search page fetch failed")
			return seen.Values(), err
		}

		found := d.collectItemLinks(doc, seen)
		if found == 0 {
			d.log.Info().Int("page", page).Msg("No products found, stopping pagination")
			break
		}

		d.log.Debug().
			Int("page", page).
			Int("items", found).
			Int("total", seen.Size()).
			Msg("Search page processed")

		if page < maxPages {
			select {
			case <-time.After(d.delay()):
			case <-ctx.Done():
				return seen.Values(), ctx.Err()
			}
		}
	}

	d.log.Info().Str("keyword", keyword).Int("urls", seen.Size()).Msg("Discovery complete")
	return seen.Values(), nil
}

// collectItemLinks extracts product links from a result page and adds them to
// the set. Returns the number of result blocks on the page, before any link
// filtering: a page full of sponsored redirects or already-seen products
// must not terminate pagination.
func (d *Discoverer) collectItemLinks(doc *goquery.Document, seen *utils.URLSet) int {
	items := doc.Find("div[data-cy=title-recipe]")

	items.Each(func(_ int, item *goquery.Selection) {
		href, ok := item.Find("a").First().Attr("href")
		if !ok {
			return
		}

		// Drop the tracking suffix before matching the identifier.
		if idx := strings.Index(href, "/ref="); idx >= 0 {
			href = href[:idx]
		}
		if ExtractASIN(href) == "" {
			return
		}

		resolved, err := resolveURL(href)
		if err != nil {
			d.log.Debug().Str("href", href).Err(err).Msg("Skipping unresolvable link")
			return
		}

		seen.Add(resolved)
	})

	return items.Length()
}

func resolveURL(href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}
