package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"amazon-scraper/config"
	"amazon-scraper/storage"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List persisted scheduler jobs",
	RunE:  runJobs,
}

func runJobs(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()

	repo, err := storage.NewPostgresRepository(cfg.DSN())
	if err != nil {
		return fmt.Errorf("connect to PostgreSQL: %w", err)
	}
	defer repo.Close()

	jobStore, err := storage.NewPostgresJobStore(repo.DB())
	if err != nil {
		return err
	}

	states, err := jobStore.ListJobs(cmd.Context())
	if err != nil {
		return err
	}
	if len(states) == 0 {
		fmt.Println("No scheduled jobs")
		return nil
	}

	for _, state := range states {
		status := "scheduled"
		if state.Paused {
			status = "paused"
		}
		lastRun := "never"
		if state.LastRun != nil {
			lastRun = state.LastRun.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%s  interval=%s  next_run=%s  last_run=%s  status=%s\n",
			state.ID, state.Interval,
			state.NextRun.Format("2006-01-02 15:04:05"), lastRun, status)
	}
	return nil
}
