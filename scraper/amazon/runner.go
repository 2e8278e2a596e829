package amazon

import (
	"context"

	"golang.org/x/time/rate"

	"amazon-scraper/config"
	"amazon-scraper/logger"
)

// Runner executes one full discover-then-ingest cycle. It is the unit of
// work the scheduler triggers.
type Runner struct {
	cfg   *config.Config
	log   *logger.Logger
	saver ProductSaver
}

// NewRunner creates a Runner persisting through the given saver.
func NewRunner(cfg *config.Config, log *logger.Logger, saver ProductSaver) *Runner {
	return &Runner{cfg: cfg, log: log.WithComponent("runner"), saver: saver}
}

// RunOnce discovers product URLs for the configured keyword and ingests
// them. A discovery failure still ingests whatever URLs were collected.
func (r *Runner) RunOnce(ctx context.Context) (Result, error) {
	// One limiter across discovery and all ingestion units bounds the
	// aggregate page-load rate against the site.
	limiter := rate.NewLimiter(rate.Limit(r.cfg.FetchRatePerSec), 1)
	newFetcher := func() PageFetcher {
		return NewFetcher(r.cfg, r.log, limiter)
	}

	discoverer := NewDiscoverer(newFetcher(), r.log)
	urls, err := discoverer.Discover(ctx, r.cfg.SearchKeyword, r.cfg.MaxSearchPages)
	if err != nil {
		r.log.Error().Err(err).Int("urls", len(urls)).Msg("Discovery ended with error")
	}
	if len(urls) == 0 {
		return Result{}, err
	}

	pipeline := NewPipeline(r.cfg, r.log, r.saver, newFetcher)
	return pipeline.Run(ctx, urls), nil
}
