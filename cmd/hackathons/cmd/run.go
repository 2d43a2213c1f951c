package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/pubhub-IN/pubhub-sub000/internal/config"
	"github.com/pubhub-IN/pubhub-sub000/internal/metrics"
	"github.com/pubhub-IN/pubhub-sub000/internal/pipeline"
)

var runSchedule string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the whole aggregation pipeline",
	Long: `Scrape the listing page, enrich every listing from its detail page,
walk the search API, then merge and write the deduplicated listings.

The command exits non-zero only when every connector failed.

Examples:
  # One run with the configured sources
  hackathons run

  # Keep running every six hours
  hackathons run --schedule "@every 6h"

  # Static fetcher instead of headless Chrome
  HACKATHONS_BROWSER_DRIVER=static hackathons run`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runSchedule, "schedule", "", "cron expression; keep running on this schedule (overrides schedule.cron)")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	schedule := cfg.Schedule.Cron
	if runSchedule != "" {
		schedule = runSchedule
	}
	m := metrics.New()
	if schedule == "" {
		return runOnce(ctx, cfg, m)
	}
	return runScheduled(ctx, cfg, m, schedule)
}

func runOnce(ctx context.Context, cfg config.Config, m *metrics.Metrics) error {
	deps, closeDeps := buildDeps(ctx, cfg, m)
	defer closeDeps()

	res, err := pipeline.Run(ctx, cfg, deps)
	if res != nil {
		printResult(res)
	}
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}
	fmt.Printf("\nWrote %d listings to %s\n", len(res.Listings), cfg.Output.Path)
	return nil
}

// runScheduled runs the pipeline on schedule until ctx is cancelled. A failed
// run is logged and the schedule continues.
func runScheduled(ctx context.Context, cfg config.Config, m *metrics.Metrics, schedule string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(schedule, func() {
		if err := runOnce(ctx, cfg, m); err != nil {
			slog.Error("scheduled run failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	c.Start()
	slog.Info("scheduler started", "schedule", schedule)

	<-ctx.Done()
	slog.Info("scheduler stopping")
	<-c.Stop().Done()
	return nil
}
