// alerts-service
//
// Background alert engine for the higher-education directory:
//   - saved-search delta notifications (cron, every CHECK_INTERVAL_HOURS)
//   - application-deadline cascade to bookmark owners (cron, DEADLINE_CRON)
//   - admin endpoints to trigger either run on demand
//
// Usage:
//
//	alertsd serve
//	alertsd run saved-searches
//	alertsd run deadlines --days-before 3
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "alertsd",
		Short:         "Saved-search and deadline alert service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(runCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
