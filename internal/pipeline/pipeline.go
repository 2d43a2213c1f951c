package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pubhub-IN/pubhub-sub000/internal/browser"
	"github.com/pubhub-IN/pubhub-sub000/internal/config"
	"github.com/pubhub-IN/pubhub-sub000/internal/emitter"
	"github.com/pubhub-IN/pubhub-sub000/internal/events"
	"github.com/pubhub-IN/pubhub-sub000/internal/merge"
	"github.com/pubhub-IN/pubhub-sub000/internal/metrics"
	"github.com/pubhub-IN/pubhub-sub000/internal/normalizer"
	"github.com/pubhub-IN/pubhub-sub000/internal/scraper"
	"github.com/pubhub-IN/pubhub-sub000/internal/storage"
	"github.com/pubhub-IN/pubhub-sub000/pkg/models"
)

// ErrAllConnectorsFailed is returned when no connector produced any record.
var ErrAllConnectorsFailed = errors.New("all connectors failed")

// Deps are the collaborators of a run. Every field is optional.
type Deps struct {
	// RunID identifies the run; a new UUID is used when empty. Pass it when
	// sinks built outside the pipeline need to tag what they write.
	RunID string
	// Browser is used for the listing page and detail pages. When nil, a
	// session is started from config and closed when the run ends.
	Browser browser.Browser
	// Storage receives the tiles artifact, the listings object and the run manifest.
	Storage *storage.Client
	// Sinks are extra destinations besides the output file.
	Sinks   []emitter.Sink
	Metrics *metrics.Metrics
}

// ConnectorOutput is what one connector chain handed to the merge stage.
type ConnectorOutput struct {
	Connector string
	Records   int
	Failures  int
	Err       error
	Duration  time.Duration
}

// Result is the state of one pipeline run.
type Result struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Prefix    string // object storage prefix, when storage is enabled

	Tiles   int
	Outputs []ConnectorOutput
	Merge   merge.Stats
	Errors  []error

	Listings []models.Listing
}

// Run executes the whole pipeline: listing page, detail enrichment and the
// search API, then normalization, merge and emission. Item-level failures
// are collected in Result.Errors; Run fails only when every connector
// failed or the output file could not be written.
func Run(ctx context.Context, cfg config.Config, deps Deps) (*Result, error) {
	return execute(ctx, cfg, deps, collectTiles)
}

// Aggregate runs everything after the listing page scrape, starting from
// tiles saved by an earlier CollectTiles.
func Aggregate(ctx context.Context, cfg config.Config, deps Deps, tiles []models.RawTile) (*Result, error) {
	return execute(ctx, cfg, deps, func(ctx context.Context, s *session) ([]models.RawTile, error) {
		if len(tiles) == 0 {
			return nil, scraper.ErrNoTiles
		}
		s.run.Tiles = len(tiles)
		return tiles, nil
	})
}

// CollectTiles runs only the listing page scrape and writes the tiles file.
func CollectTiles(ctx context.Context, cfg config.Config, deps Deps) ([]models.RawTile, error) {
	s, release := open(ctx, cfg, deps)
	defer release()
	if s.browser == nil {
		return nil, s.browserErr
	}
	return collectTiles(ctx, s)
}

// session is the per-run state shared by the connector chains.
type session struct {
	cfg     config.Config
	run     *Result
	metrics *metrics.Metrics
	storage *storage.Client
	sinks   []emitter.Sink

	browser    browser.Browser
	browserErr error

	mu sync.Mutex // guards run.Errors while connectors run
}

func (s *session) warn(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run.Errors = append(s.run.Errors, err)
}

type tileSource func(ctx context.Context, s *session) ([]models.RawTile, error)

// open prepares a session. Storage that cannot be reached is dropped with
// a logged error; a browser that cannot start leaves only the API connector.
func open(ctx context.Context, cfg config.Config, deps Deps) (*session, func()) {
	s := &session{
		cfg:     cfg,
		run:     &Result{RunID: deps.RunID, StartedAt: time.Now()},
		metrics: deps.Metrics,
		storage: deps.Storage,
		sinks:   deps.Sinks,
	}
	if s.run.RunID == "" {
		s.run.RunID = uuid.NewString()
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}

	if s.storage != nil {
		if err := s.storage.EnsureBucket(ctx); err != nil {
			slog.Warn("object storage unavailable", "error", err)
			s.warn(err)
			s.storage = nil
		} else {
			s.run.Prefix = storage.RunPrefix(s.run.RunID, s.run.StartedAt)
		}
	}

	release := func() {}
	switch {
	case deps.Browser != nil:
		s.browser = deps.Browser
	default:
		b, err := browser.New(ctx, BrowserConfig(cfg))
		if err != nil {
			slog.Error("browser unavailable", "error", err)
			s.browserErr = fmt.Errorf("failed to start browser: %w", err)
			break
		}
		s.browser = b
		release = func() {
			if err := b.Close(); err != nil {
				slog.Warn("failed to close browser", "error", err)
			}
		}
	}
	return s, release
}

func execute(ctx context.Context, cfg config.Config, deps Deps, tiles tileSource) (*Result, error) {
	s, release := open(ctx, cfg, deps)
	defer release()

	run, m := s.run, s.metrics
	slog.Info("pipeline run started", "run_id", run.RunID)

	done := make(chan events.ConnectorCompleteEvent, 2)
	go func() {
		done <- browserChain(ctx, s, tiles)
	}()
	go func() {
		done <- apiConnector(ctx, s)
	}()

	var records []models.SourceRecord
	failed := 0
	for range 2 {
		ev := <-done
		run.Outputs = append(run.Outputs, ConnectorOutput{
			Connector: ev.Connector,
			Records:   len(ev.Records),
			Failures:  len(ev.Failures),
			Err:       ev.Err,
			Duration:  ev.Duration,
		})
		for _, f := range ev.Failures {
			s.warn(fmt.Errorf("%s: %s", ev.Connector, f))
		}
		if ev.Failed() {
			failed++
			m.ItemFailures.WithLabelValues("connector").Inc()
			s.warn(fmt.Errorf("%s connector: %w", ev.Connector, ev.Err))
		}
		records = append(records, ev.Records...)
		slog.Info("connector complete",
			"connector", ev.Connector,
			"records", len(ev.Records),
			"failures", len(ev.Failures),
			"duration", ev.Duration,
			"error", ev.Err)
	}

	if failed == 2 {
		run.Duration = time.Since(run.StartedAt)
		m.RecordRun(run.Duration, ErrAllConnectorsFailed)
		writeMetrics(cfg, m)
		return run, fmt.Errorf("%w: %w", ErrAllConnectorsFailed, errors.Join(run.Errors...))
	}

	run.Listings, run.Merge = mergeBySource(normalizer.NormalizeAll(records))
	m.ListingsEmitted.Set(float64(len(run.Listings)))

	err := emit(ctx, s)
	run.Duration = time.Since(run.StartedAt)
	m.RecordRun(run.Duration, err)
	writeMetrics(cfg, m)
	if err != nil {
		return run, err
	}

	slog.Info("pipeline run complete",
		"run_id", run.RunID,
		"listings", len(run.Listings),
		"duplicates", run.Merge.Duplicates,
		"errors", len(run.Errors),
		"duration", run.Duration)
	return run, nil
}

// mergeBySource orders listings by precedence (detail pages, then tiles,
// then the API) before deduplicating on link.
func mergeBySource(listings []models.Listing) ([]models.Listing, merge.Stats) {
	bySource := make(map[models.SourceID][]models.Listing)
	for _, l := range listings {
		bySource[l.Source] = append(bySource[l.Source], l)
	}
	return merge.MergeWithStats(
		bySource[models.SourceBrowserDetail],
		bySource[models.SourceBrowserTile],
		bySource[models.SourceAPI],
	)
}

func emit(ctx context.Context, s *session) error {
	run := s.run
	file := emitter.NewFileSink(s.cfg.Output.Path, s.cfg.Output.Indent)
	if err := emitter.Emit(ctx, run.Listings, file); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	sinks := append([]emitter.Sink(nil), s.sinks...)
	if s.storage != nil {
		sinks = append(sinks, emitter.NewObjectSink(s.storage, run.Prefix))
	}
	if err := emitter.Emit(ctx, run.Listings, sinks...); err != nil {
		slog.Warn("optional sink failed", "error", err)
		s.warn(err)
	}

	if s.storage != nil {
		if err := s.storage.PutMetadata(ctx, run.Prefix, manifest(s.cfg, run)); err != nil {
			slog.Warn("failed to write run manifest", "prefix", run.Prefix, "error", err)
			s.warn(err)
		}
	}
	return nil
}

func manifest(cfg config.Config, run *Result) storage.RunMetadata {
	sources := make(map[string]int)
	for _, l := range run.Listings {
		sources[string(l.Source)]++
	}
	objects := []string{storage.ListingsObject}
	if run.Tiles > 0 {
		objects = append([]string{storage.TilesObject}, objects...)
	}
	return storage.RunMetadata{
		RunID:       run.RunID,
		StartedAt:   run.StartedAt.UTC(),
		CompletedAt: time.Now().UTC(),
		SourceURL:   cfg.Listing.URL,
		Tiles:       run.Tiles,
		Listings:    len(run.Listings),
		Failures:    len(run.Errors),
		Sources:     sources,
		Objects:     objects,
	}
}

func writeMetrics(cfg config.Config, m *metrics.Metrics) {
	if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		slog.Warn("failed to export metrics", "error", err)
	}
}
