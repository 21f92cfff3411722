package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one alert pass and print its summary",
	}
	cmd.AddCommand(runSavedSearchesCmd())
	cmd.AddCommand(runDeadlinesCmd())
	return cmd
}

func runSavedSearchesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "saved-searches",
		Short: "Check every notifiable saved search once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd.Context(), func(ctx context.Context, a *app) (any, error) {
				return a.orchestrator.ProcessAll(ctx)
			})
		},
	}
}

func runDeadlinesCmd() *cobra.Command {
	var daysBefore int
	cmd := &cobra.Command{
		Use:   "deadlines",
		Short: "Send application-deadline alerts once",
		Long: `Send deadline alerts to users who bookmarked programmes whose
application deadline falls within the next --days-before days.

Examples:
  # Use DEADLINE_DAYS_BEFORE
  alertsd run deadlines

  # Only programmes closing within three days
  alertsd run deadlines --days-before 3`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd.Context(), func(ctx context.Context, a *app) (any, error) {
				days := a.cfg.DeadlineDaysBefore
				if cmd.Flags().Changed("days-before") {
					days = daysBefore
				}
				return a.cascade.SendDeadlineAlerts(ctx, days)
			})
		},
	}
	cmd.Flags().IntVar(&daysBefore, "days-before", 7, "Deadline window in days (1-30)")
	return cmd
}

// runOnce wires the app, runs fn under RUN_TIMEOUT and prints the summary as JSON.
func runOnce(parent context.Context, fn func(context.Context, *app) (any, error)) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(ctx, a.cfg.RunTimeout)
	defer cancel()

	summary, err := fn(ctx, a)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
