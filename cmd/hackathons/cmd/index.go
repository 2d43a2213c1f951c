package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pubhub-IN/pubhub-sub000/internal/emitter"
	"github.com/pubhub-IN/pubhub-sub000/internal/storage"
	"github.com/pubhub-IN/pubhub-sub000/pkg/models"
)

var indexPrefix string

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index a stored run's listings into Elasticsearch",
	Long: `Re-index the listings of a run kept in object storage.

Use this command to backfill an index, or to index runs made while the
Elasticsearch sink was disabled.

Examples:
  hackathons index --prefix runs/2025-05-01T06-00-00-abcd1234`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().StringVar(&indexPrefix, "prefix", "", "object storage prefix of the run (required)")
	indexCmd.MarkFlagRequired("prefix")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	slog.Debug("index command starting", "prefix", indexPrefix)

	if cfg.Storage.Endpoint == "" {
		return fmt.Errorf("storage not configured - check config file")
	}

	storageClient, err := newStorage(cfg)
	if err != nil {
		return err
	}
	esClient, err := newElasticsearch(ctx, cfg)
	if err != nil {
		return err
	}

	names, err := storageClient.ListObjects(ctx, indexPrefix)
	if err != nil {
		return err
	}
	if !slices.Contains(names, storage.ListingsObject) {
		return fmt.Errorf("no %s under %s/%s", storage.ListingsObject, storageClient.Bucket(), indexPrefix)
	}

	runID := ""
	meta, err := storageClient.GetMetadata(ctx, indexPrefix)
	if err != nil {
		slog.Warn("run manifest unavailable", "prefix", indexPrefix, "error", err)
	} else {
		runID = meta.RunID
	}

	var listings []models.Listing
	if err := storageClient.GetJSON(ctx, indexPrefix, storage.ListingsObject, &listings); err != nil {
		return fmt.Errorf("failed to read listings: %w", err)
	}

	fmt.Printf("Indexing: %s (%d listings)\n", indexPrefix, len(listings))

	if err := emitter.Emit(ctx, listings, emitter.NewIndexSink(esClient, runID)); err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Printf("Indexed %d listings into %s\n", len(listings), esClient.Index())
	return nil
}
