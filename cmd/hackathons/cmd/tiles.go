package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pubhub-IN/pubhub-sub000/internal/pipeline"
)

var tilesOutput string

var tilesCmd = &cobra.Command{
	Use:   "tiles",
	Short: "Scrape the listing page and save the tiles file",
	Long: `Load the listing page, scroll until the tile count settles, and save
one summary record per tile. The file feeds a later 'hackathons aggregate'.

Examples:
  hackathons tiles
  hackathons tiles --output /tmp/tiles.json`,
	RunE: runTiles,
}

func init() {
	rootCmd.AddCommand(tilesCmd)

	tilesCmd.Flags().StringVarP(&tilesOutput, "output", "o", "", "tiles file (default from listing.tiles_file)")
}

func runTiles(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	if tilesOutput != "" {
		cfg.Listing.TilesFile = tilesOutput
	}
	if cfg.Listing.TilesFile == "" {
		return fmt.Errorf("no tiles file configured - set listing.tiles_file or --output")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	slog.Debug("tiles command starting", "url", cfg.Listing.URL, "output", cfg.Listing.TilesFile)

	var deps pipeline.Deps
	if cfg.Storage.Enabled {
		client, err := newStorage(cfg)
		if err != nil {
			return err
		}
		deps.Storage = client
	}

	tiles, err := pipeline.CollectTiles(ctx, cfg, deps)
	if err != nil {
		return fmt.Errorf("failed to collect tiles: %w", err)
	}

	fmt.Printf("Saved %d tiles to %s\n", len(tiles), cfg.Listing.TilesFile)
	fmt.Println("Run 'hackathons aggregate' to enrich and merge them")
	return nil
}
