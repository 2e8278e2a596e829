package amazon

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"

	"amazon-scraper/config"
	"amazon-scraper/logger"
)

// userAgents is the rotation pool for outgoing page loads.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/69.0.3497.100 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.1 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
}

// PageFetcher renders a URL in a headless browser and returns the parsed
// document. Implementations own the browser session lifecycle.
type PageFetcher interface {
	Open() error
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
	Close()
}

// Fetcher drives a headless Chrome session via chromedp. One Fetcher holds
// one browser session; Open must be called before Fetch and Close released
// on every path.
type Fetcher struct {
	cfg     *config.Config
	log     *logger.Logger
	limiter *rate.Limiter

	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
	browserCtx    context.Context
}

// NewFetcher creates an unopened Fetcher. The limiter is shared across
// fetchers to bound the aggregate page-load rate; pass nil to disable.
func NewFetcher(cfg *config.Config, log *logger.Logger, limiter *rate.Limiter) *Fetcher {
	return &Fetcher{
		cfg:     cfg,
		log:     log.WithComponent("fetcher"),
		limiter: limiter,
	}
}

// Open acquires the browser session.
func (f *Fetcher) Open() error {
	ua := userAgents[0]
	if f.cfg.RotateUA {
		ua = userAgents[rand.Intn(len(userAgents))]
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent(ua),
	)
	if bin := findChromeBinary(); bin != "" {
		opts = append(opts, chromedp.ExecPath(bin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))

	// Materialize the browser process now so a broken Chrome install fails
	// at Open rather than on the first Fetch.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return &FetchError{URL: "", Err: err}
	}

	f.cancelAlloc = cancelAlloc
	f.cancelBrowser = cancelBrowser
	f.browserCtx = browserCtx
	return nil
}

// Fetch navigates to the URL, waits for client-side rendering to settle, and
// returns the rendered document. Navigation and settle-wait are bounded by
// the configured timeout; exceeding it is a FetchError, not a hang.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	if f.browserCtx == nil {
		return nil, &FetchError{URL: url, Err: errors.New("fetcher not opened")}
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, &FetchError{URL: url, Err: err}
		}
	}

	tabCtx, cancelTab := chromedp.NewContext(f.browserCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, f.cfg.NavTimeout())
	defer cancelTimeout()

	start := time.Now()
	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(f.cfg.SettleWait()),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	f.log.Debug().
		Str("url", url).
		Dur("elapsed", time.Since(start)).
		Int("bytes", len(html)).
		Msg("Page rendered")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	return doc, nil
}

// Close releases the browser session. Safe to call on an unopened Fetcher.
func (f *Fetcher) Close() {
	if f.cancelBrowser != nil {
		f.cancelBrowser()
		f.cancelBrowser = nil
	}
	if f.cancelAlloc != nil {
		f.cancelAlloc()
		f.cancelAlloc = nil
	}
	f.browserCtx = nil
}

// findChromeBinary locates a Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
