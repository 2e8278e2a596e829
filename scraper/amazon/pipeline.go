package amazon

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"amazon-scraper/config"
	"amazon-scraper/logger"
	"amazon-scraper/models"
	"amazon-scraper/utils"
)

// ProductSaver persists one extracted product with its reviews atomically.
type ProductSaver interface {
	Save(ctx context.Context, product *models.Product) error
}

// Result is the aggregate outcome of a pipeline run. Only these counts
// propagate to the caller; per-unit failures are contained and logged.
type Result struct {
	Succeeded int
	Failed    int
}

// Pipeline fans fetch+extract+load units out over a bounded worker pool.
// Each unit owns its browser session and its failure never cancels or blocks
// sibling units.
type Pipeline struct {
	cfg        *config.Config
	log        *logger.Logger
	saver      ProductSaver
	extractor  *Extractor
	newFetcher func() PageFetcher
}

// NewPipeline creates a Pipeline. newFetcher is called once per unit so each
// unit gets its own session.
func NewPipeline(cfg *config.Config, log *logger.Logger, saver ProductSaver, newFetcher func() PageFetcher) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		log:        log.WithComponent("pipeline"),
		saver:      saver,
		extractor:  NewExtractor(log),
		newFetcher: newFetcher,
	}
}

// Run processes the URL batch and returns after every unit has reached a
// terminal state.
func (p *Pipeline) Run(ctx context.Context, urls []string) Result {
	runID := uuid.NewString()
	log := p.log.WithField("run_id", runID)

	log.Info().Int("urls", len(urls)).Int("concurrency", p.cfg.MaxConcurrency).Msg("Ingestion run starting")
	start := time.Now()

	var succeeded, failed int64
	pool := utils.NewWorkerPool(p.cfg.MaxConcurrency)

	for _, u := range urls {
		url := u
		pool.Submit(func() {
			if err := p.processURL(ctx, log, url); err != nil {
				log.Error().Str("url", url).Err(err).Msg("Unit failed")
				atomic.AddInt64(&failed, 1)
				return
			}
			atomic.AddInt64(&succeeded, 1)
		})
	}
	pool.Wait()

	result := Result{
		Succeeded: int(atomic.LoadInt64(&succeeded)),
		Failed:    int(atomic.LoadInt64(&failed)),
	}

	log.Info().
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Dur("elapsed", time.Since(start)).
		Msg("Ingestion run complete")

	return result
}

// processURL is one fully independent unit: session open, fetch with retry,
// extract, persist. The session is released on every exit path.
func (p *Pipeline) processURL(ctx context.Context, log *logger.Logger, url string) error {
	fetcher := p.newFetcher()
	if err := fetcher.Open(); err != nil {
		return err
	}
	defer fetcher.Close()

	retry := &utils.RetryConfig{
		MaxAttempts: p.cfg.MaxRetries,
		BaseDelay:   p.cfg.RetryDelay(),
		Logger:      log,
	}

	var doc *goquery.Document
	err := retry.Do(ctx, "fetch-product-page", func() error {
		var fetchErr error
		doc, fetchErr = fetcher.Fetch(ctx, url)
		return fetchErr
	})
	if err != nil {
		return err
	}

	product := p.extractor.Extract(doc, url)
	if product.ASIN == "" {
		return ErrNoIdentifier
	}

	if err := p.saver.Save(ctx, product); err != nil {
		return err
	}

	log.Info().
		Str("asin", product.ASIN).
		Int("reviews", len(product.Reviews)).
		Msg("Product stored")
	return nil
}
