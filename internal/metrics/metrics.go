package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nao1215/siteharvest/internal/crawler"
	"github.com/nao1215/siteharvest/internal/model"
)

const namespace = "siteharvest"

// Metrics holds all Prometheus metrics of a run.
type Metrics struct {
	registry *prometheus.Registry

	VisitsTotal      *prometheus.CounterVec
	FailuresTotal    *prometheus.CounterVec
	FetchDuration    prometheus.Histogram
	RoutesDiscovered prometheus.Counter
	AssetsDiscovered prometheus.Counter

	// ReportCounts mirrors the scalar fields of the run report.
	ReportCounts *prometheus.GaugeVec

	StepDuration *prometheus.GaugeVec
	LastRun      prometheus.Gauge
}

var _ crawler.Observer = (*Metrics)(nil)

// New creates a Metrics value with a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		VisitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crawl_visits_total",
			Help:      "URLs dequeued by the live crawl, by terminal state.",
		}, []string{"state"}),
		FailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crawl_failures_total",
			Help:      "Failed fetches of the live crawl, by reason.",
		}, []string{"reason"}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of live crawl fetches.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		}),
		RoutesDiscovered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crawl_links_discovered_total",
			Help:      "In-scope links found on crawled pages, duplicates included.",
		}),
		AssetsDiscovered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crawl_assets_discovered_total",
			Help:      "Asset references found on crawled pages, duplicates included.",
		}),
		ReportCounts: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "report_count",
			Help:      "Counts from the run report.",
		}, []string{"field"}),
		StepDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Wall time of each pipeline step.",
		}, []string{"step"}),
		LastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the run finished.",
		}),
	}
}

// Registry returns the registry holding the run metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveVisit implements crawler.Observer.
func (m *Metrics) ObserveVisit(_ string, state crawler.VisitState, reason crawler.FailureReason, elapsed time.Duration) {
	m.VisitsTotal.WithLabelValues(state.String()).Inc()
	if reason != "" {
		m.FailuresTotal.WithLabelValues(string(reason)).Inc()
	}
	m.FetchDuration.Observe(elapsed.Seconds())
}

// ObserveDiscovery implements crawler.Observer.
func (m *Metrics) ObserveDiscovery(routes, assets int) {
	m.RoutesDiscovered.Add(float64(routes))
	m.AssetsDiscovered.Add(float64(assets))
}

// ObserveStep records how long a pipeline step took.
func (m *Metrics) ObserveStep(name string, elapsed time.Duration) {
	m.StepDuration.WithLabelValues(name).Set(elapsed.Seconds())
}

// ObserveReport copies the report counts into gauges and stamps the run
// completion time.
func (m *Metrics) ObserveReport(report *model.Report, finished time.Time) {
	if report == nil {
		return
	}
	for field, value := range map[string]int{
		"har_files":                        len(report.HARFiles),
		"har_entries_total":                report.HAREntriesTotal,
		"har_pages_total":                  report.HARPagesTotal,
		"har_urls_total":                   report.HARURLsTotal,
		"har_saved_body_records":           report.HARSavedBodyRecords,
		"har_saved_body_files_unique":      report.HARSavedBodyFilesUnique,
		"har_missing_bodies":               report.HARMissingBodies,
		"live_pages_crawled":               report.LivePagesCrawled,
		"live_routes_found":                report.LiveRoutesFound,
		"live_route_paths_found":           report.LiveRoutePathsFound,
		"live_assets_discovered_same_host": report.LiveAssetsDiscoveredSameHost,
		"live_assets_skipped":              report.LiveAssetsSkipped,
		"crawl_failures":                   report.CrawlFailures,
	} {
		m.ReportCounts.WithLabelValues(field).Set(float64(value))
	}
	m.LastRun.Set(float64(finished.Unix()))
}

// WriteTextfile writes all metrics to path in the Prometheus text format.
// The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
