package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.ConnectorRecords.WithLabelValues("api").Add(112)
	m.ItemFailures.WithLabelValues("detail").Inc()
	m.APIRequests.Add(4)
	m.ListingsEmitted.Set(4)
	m.ScrollMeasurements.Observe(4)
	m.RecordRun(3*time.Second, nil)
	m.RecordRun(time.Second, errors.New("boom"))

	if got := testutil.ToFloat64(m.ConnectorRecords.WithLabelValues("api")); got != 112 {
		t.Errorf("connector records = %v, want 112", got)
	}
	if got := testutil.ToFloat64(m.ItemFailures.WithLabelValues("detail")); got != 1 {
		t.Errorf("item failures = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.RunDuration); got != 2 {
		t.Errorf("run duration series = %d, want 2 (success and failure)", got)
	}
	if testutil.ToFloat64(m.LastSuccess) == 0 {
		t.Error("last success timestamp should be set")
	}
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.APIRequests.Inc()
	if testutil.ToFloat64(b.APIRequests) != 0 {
		t.Error("instances should not share collectors")
	}
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.ListingsEmitted.Set(7)

	path := filepath.Join(t.TempDir(), "textfile", "hackathons.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "hackathons_listings_emitted 7") {
		t.Errorf("textfile missing gauge:\n%s", data)
	}

	if err := m.WriteTextfile(""); err != nil {
		t.Errorf("WriteTextfile(\"\") should be a no-op, got %v", err)
	}
}
