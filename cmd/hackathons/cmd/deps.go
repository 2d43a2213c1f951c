package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pubhub-IN/pubhub-sub000/internal/config"
	"github.com/pubhub-IN/pubhub-sub000/internal/elasticsearch"
	"github.com/pubhub-IN/pubhub-sub000/internal/emitter"
	"github.com/pubhub-IN/pubhub-sub000/internal/metrics"
	"github.com/pubhub-IN/pubhub-sub000/internal/pipeline"
	"github.com/pubhub-IN/pubhub-sub000/internal/storage"
)

func newStorage(cfg config.Config) (*storage.Client, error) {
	client, err := storage.New(storage.Config{
		Endpoint:        cfg.Storage.Endpoint,
		Bucket:          cfg.Storage.Bucket,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		UseSSL:          cfg.Storage.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return client, nil
}

func newElasticsearch(ctx context.Context, cfg config.Config) (*elasticsearch.Client, error) {
	client, err := elasticsearch.New(elasticsearch.Config{
		Addresses: cfg.Elasticsearch.Addresses,
		Index:     cfg.Elasticsearch.Index,
		Username:  cfg.Elasticsearch.Username,
		Password:  cfg.Elasticsearch.Password,
	})
	if err != nil {
		return nil, err
	}
	if !client.Ping(ctx) {
		return nil, fmt.Errorf("elasticsearch not reachable at %v", cfg.Elasticsearch.Addresses)
	}
	if err := client.CreateIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}
	return client, nil
}

// buildDeps wires the optional sinks enabled in cfg. A sink that cannot be
// set up is skipped with a warning; the output file is always written.
func buildDeps(ctx context.Context, cfg config.Config, m *metrics.Metrics) (pipeline.Deps, func()) {
	deps := pipeline.Deps{RunID: uuid.NewString(), Metrics: m}
	var closers []func() error

	if cfg.Storage.Enabled {
		client, err := newStorage(cfg)
		if err != nil {
			slog.Warn("object storage disabled", "error", err)
		} else {
			deps.Storage = client
		}
	}

	if cfg.Elasticsearch.Enabled {
		client, err := newElasticsearch(ctx, cfg)
		if err != nil {
			slog.Warn("elasticsearch sink disabled", "error", err)
		} else {
			deps.Sinks = append(deps.Sinks, emitter.NewIndexSink(client, deps.RunID))
		}
	}

	if cfg.Kafka.Enabled {
		sink := emitter.NewKafkaSink(emitter.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), cfg.Kafka.Topic, deps.RunID)
		deps.Sinks = append(deps.Sinks, sink)
		closers = append(closers, sink.Close)
	}

	return deps, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				slog.Warn("failed to close sink", "error", err)
			}
		}
	}
}

func printResult(res *pipeline.Result) {
	fmt.Printf("Run %s\n", res.RunID)
	for _, o := range res.Outputs {
		status := "ok"
		if o.Err != nil {
			status = "failed: " + o.Err.Error()
		}
		fmt.Printf("  %-8s records: %d, failures: %d, %v (%s)\n", o.Connector, o.Records, o.Failures, o.Duration.Round(time.Millisecond), status)
	}
	fmt.Printf("  Listings: %d (duplicates merged: %d, conflicts: %d)\n",
		len(res.Listings), res.Merge.Duplicates, res.Merge.Conflicts)
	if res.Prefix != "" {
		fmt.Printf("  Stored under: %s\n", res.Prefix)
	}
	if len(res.Errors) > 0 {
		fmt.Printf("  Warnings: %d\n", len(res.Errors))
		for _, e := range res.Errors {
			fmt.Printf("    - %v\n", e)
		}
	}
}
