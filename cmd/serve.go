package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"amazon-scraper/api"
	"amazon-scraper/config"
	"amazon-scraper/logger"
	"amazon-scraper/rag"
	"amazon-scraper/scheduler"
	"amazon-scraper/scraper/amazon"
	"amazon-scraper/storage"
)

const scrapeJobID = "product_scraping_job"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server with the recurring scraping job",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	log := logger.New()
	cfg := config.Load()

	log.Info().
		Str("keyword", cfg.SearchKeyword).
		Int("max_pages", cfg.MaxSearchPages).
		Int("concurrency", cfg.MaxConcurrency).
		Int("interval_days", cfg.ScrapeIntervalDays).
		Msg("Starting amazon-scraper")

	repo, err := storage.NewPostgresRepository(cfg.DSN())
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to PostgreSQL")
		return err
	}
	defer repo.Close()

	jobStore, err := storage.NewPostgresJobStore(repo.DB())
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize job store")
		return err
	}

	runner := amazon.NewRunner(cfg, log, repo)
	sched := scheduler.New(jobStore, log)

	err = sched.AddJob(cmd.Context(), scrapeJobID, cfg.ScrapeInterval(), cfg.MisfireGrace(), true,
		func(ctx context.Context) {
			result, err := runner.RunOnce(ctx)
			if err != nil {
				log.Error().Err(err).Msg("Scrape run had errors")
			}
			log.Info().
				Int("succeeded", result.Succeeded).
				Int("failed", result.Failed).
				Msg("Scheduled scrape run finished")
		})
	if err != nil {
		log.Error().Err(err).Msg("Failed to register scraping job")
		return err
	}

	// A scheduler that silently failed to start would leave the data stale
	// with no signal, so this is fatal.
	if err := sched.Start(); err != nil {
		log.Error().Err(err).Msg("Failed to start scheduler")
		return err
	}

	var ragSvc *rag.Service
	if cfg.OpenAIAPIKey != "" {
		embedder, err := rag.NewEmbeddingClient(rag.EmbeddingConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.EmbeddingModel,
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to create embedding client")
			return err
		}
		chatbot, err := rag.NewChatbot(rag.ChatConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.ChatModel,
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to create chatbot")
			return err
		}
		ragSvc = rag.NewService(repo, rag.NewIndex(embedder, log), chatbot, log)
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set, RAG endpoints disabled")
	}

	server := api.NewServer(cfg.HTTPListenAddr, repo, sched, ragSvc, log)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("HTTP server failed")
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Scheduler drain timed out")
		return err
	}

	log.Info().Msg("Shut down gracefully")
	return nil
}
