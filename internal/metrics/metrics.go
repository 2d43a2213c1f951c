// Package metrics records per-run pipeline metrics in a Prometheus registry
// and exports them in the node_exporter textfile format.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors for one process. Each instance owns its
// registry, so tests and repeated runs never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	// ConnectorRecords counts records produced, by source (browser-tile, browser-detail, api).
	ConnectorRecords *prometheus.CounterVec
	// ItemFailures counts item-level failures, by stage (detail, api_page, connector).
	ItemFailures *prometheus.CounterVec
	// ScrollMeasurements observes tile-count measurements per scroll loop.
	ScrollMeasurements prometheus.Histogram
	// APIRequests counts search API HTTP requests, retries included.
	APIRequests prometheus.Counter
	// ListingsEmitted is the size of the last emitted collection.
	ListingsEmitted prometheus.Gauge
	// RunDuration observes end-to-end run time, by outcome (success, failure).
	RunDuration *prometheus.HistogramVec
	// LastSuccess is the Unix time of the last successful run.
	LastSuccess prometheus.Gauge
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ConnectorRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hackathons_connector_records_total",
			Help: "Records produced by each connector",
		}, []string{"source"}),
		ItemFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hackathons_item_failures_total",
			Help: "Item-level failures by pipeline stage",
		}, []string{"stage"}),
		ScrollMeasurements: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "hackathons_scroll_measurements",
			Help:    "Tile-count measurements taken before the listing page settled",
			Buckets: []float64{1, 2, 3, 4, 6, 8, 12, 16},
		}),
		APIRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "hackathons_api_requests_total",
			Help: "Search API requests issued, retries included",
		}),
		ListingsEmitted: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hackathons_listings_emitted",
			Help: "Listings in the last emitted collection",
		}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hackathons_run_duration_seconds",
			Help:    "Duration of pipeline runs",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 1800},
		}, []string{"outcome"}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hackathons_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run",
		}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRun observes a finished run.
func (m *Metrics) RecordRun(d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.RunDuration.WithLabelValues(outcome).Observe(d.Seconds())
	if err == nil {
		m.LastSuccess.SetToCurrentTime()
	}
}

// WriteTextfile writes every collector to path for the node_exporter
// textfile collector. The write is atomic.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
