package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pubhub-IN/pubhub-sub000/internal/metrics"
	"github.com/pubhub-IN/pubhub-sub000/internal/pipeline"
	"github.com/pubhub-IN/pubhub-sub000/internal/scraper"
)

var aggregateTiles string

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Enrich saved tiles, query the search API, merge and emit",
	Long: `Read the tiles file written by 'hackathons tiles', visit each tile's
detail page, walk the search API, then merge and write the listings.

A missing or empty tiles file only disables the browser side; the API
listings are still written.

Examples:
  hackathons aggregate
  hackathons aggregate --tiles /tmp/tiles.json`,
	RunE: runAggregate,
}

func init() {
	rootCmd.AddCommand(aggregateCmd)

	aggregateCmd.Flags().StringVar(&aggregateTiles, "tiles", "", "tiles file (default from listing.tiles_file)")
}

func runAggregate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	if aggregateTiles != "" {
		cfg.Listing.TilesFile = aggregateTiles
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	tiles, err := scraper.LoadTiles(cfg.Listing.TilesFile)
	if err != nil {
		slog.Warn("tiles unavailable, continuing with the search API only", "path", cfg.Listing.TilesFile, "error", err)
	}

	deps, closeDeps := buildDeps(ctx, cfg, metrics.New())
	defer closeDeps()

	res, err := pipeline.Aggregate(ctx, cfg, deps, tiles)
	if res != nil {
		printResult(res)
	}
	if err != nil {
		return fmt.Errorf("aggregation failed: %w", err)
	}
	fmt.Printf("\nWrote %d listings to %s\n", len(res.Listings), cfg.Output.Path)
	return nil
}
