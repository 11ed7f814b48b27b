package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/siteharvest/internal/crawler"
	"github.com/nao1215/siteharvest/internal/model"
)

func writeAndRead(t *testing.T, m *Metrics) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "siteharvest.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path) //nolint:gosec // test file in TempDir
	if err != nil {
		t.Fatalf("failed to read metrics: %v", err)
	}
	return string(data)
}

// TestMetricsObserver tests crawl observation.
func TestMetricsObserver(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveVisit("https://example.com/", crawler.StateVisitedSuccess, "", 120*time.Millisecond)
	m.ObserveVisit("https://example.com/a/", crawler.StateVisitedSuccess, "", 80*time.Millisecond)
	m.ObserveVisit("https://example.com/gone/", crawler.StateVisitedFailed, crawler.ReasonHTTPStatus, 10*time.Millisecond)
	m.ObserveDiscovery(4, 7)

	out := writeAndRead(t, m)
	for _, want := range []string{
		`siteharvest_crawl_visits_total{state="visited_success"} 2`,
		`siteharvest_crawl_visits_total{state="visited_failed"} 1`,
		`siteharvest_crawl_failures_total{reason="http_status"} 1`,
		`siteharvest_fetch_duration_seconds_count 3`,
		`siteharvest_crawl_links_discovered_total 4`,
		`siteharvest_crawl_assets_discovered_total 7`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}
}

// TestMetricsReport tests report gauges and step durations.
func TestMetricsReport(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveStep("crawl", 1500*time.Millisecond)
	m.ObserveReport(&model.Report{
		HARFiles:         []string{"a.har", "b.har"},
		HARMissingBodies: 3,
		LivePagesCrawled: 9,
	}, time.Unix(1714564800, 0))
	m.ObserveReport(nil, time.Now())

	out := writeAndRead(t, m)
	for _, want := range []string{
		`siteharvest_report_count{field="har_files"} 2`,
		`siteharvest_report_count{field="har_missing_bodies"} 3`,
		`siteharvest_report_count{field="live_pages_crawled"} 9`,
		`siteharvest_step_duration_seconds{step="crawl"} 1.5`,
		`siteharvest_last_run_timestamp_seconds 1.7145648e+09`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}
}

// TestMetricsIsolated tests that separate runs do not share series.
func TestMetricsIsolated(t *testing.T) {
	t.Parallel()

	a, b := New(), New()
	a.ObserveDiscovery(5, 0)

	if strings.Contains(writeAndRead(t, b), "siteharvest_crawl_links_discovered_total 5") {
		t.Error("expected a fresh registry per Metrics value")
	}
	if a.Registry() == b.Registry() {
		t.Error("expected distinct registries")
	}
}

// TestWriteTextfileError tests that unwritable paths are reported.
func TestWriteTextfileError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing", "dir", "x.prom")
	if err := New().WriteTextfile(path); err == nil {
		t.Error("expected error for missing directory")
	}
}
