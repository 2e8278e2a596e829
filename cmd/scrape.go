package cmd

import (
	"github.com/spf13/cobra"

	"amazon-scraper/config"
	"amazon-scraper/logger"
	"amazon-scraper/scraper/amazon"
	"amazon-scraper/storage"
)

var scrapeDryRun bool

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run one discover+ingest cycle and exit",
	RunE:  runScrape,
}

func init() {
	scrapeCmd.Flags().BoolVar(&scrapeDryRun, "dry-run", false,
		"scrape into an in-memory store instead of PostgreSQL")
}

func runScrape(cmd *cobra.Command, _ []string) error {
	log := logger.New()
	cfg := config.Load()

	var repo storage.ProductRepository
	if scrapeDryRun {
		repo = storage.NewMemoryRepository()
		log.Info().Msg("Dry run: results will not be persisted")
	} else {
		var err error
		repo, err = storage.NewPostgresRepository(cfg.DSN())
		if err != nil {
			log.Error().Err(err).Msg("Failed to connect to PostgreSQL")
			return err
		}
	}
	defer repo.Close()

	runner := amazon.NewRunner(cfg, log, repo)
	result, err := runner.RunOnce(cmd.Context())
	if err != nil {
		log.Error().Err(err).Msg("Scrape run had errors")
	}

	log.Info().
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Msg("Scrape run finished")
	return nil
}
