package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "amazon-scraper",
	Short: "Amazon product scraping, analytics API and question answering",
	Long: `amazon-scraper periodically scrapes product listings and reviews,
stores them in PostgreSQL, serves a filterable query API over the data, and
answers free-text questions through a semantic index.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(jobsCmd)
}
