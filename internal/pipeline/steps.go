package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/siteharvest/internal/config"
	"github.com/nao1215/siteharvest/internal/crawler"
	"github.com/nao1215/siteharvest/internal/database"
	"github.com/nao1215/siteharvest/internal/export"
	"github.com/nao1215/siteharvest/internal/manifest"
	"github.com/nao1215/siteharvest/internal/metrics"
	"github.com/nao1215/siteharvest/internal/model"
	"github.com/nao1215/siteharvest/internal/socks"
)

// LoadCapturesStep decodes the capture files of a run.
type LoadCapturesStep struct {
	loader *CaptureLoader
}

// NewLoadCapturesStep creates a step that decodes captures with loader.
func NewLoadCapturesStep(loader *CaptureLoader) *LoadCapturesStep {
	return &LoadCapturesStep{loader: loader}
}

// Name returns the step name.
func (s *LoadCapturesStep) Name() string {
	return "load_captures"
}

// Do executes the load step.
func (s *LoadCapturesStep) Do(ctx context.Context, run *Run) error {
	files, err := s.loader.LoadAll(ctx, run.CapturePaths)
	if err != nil {
		return fmt.Errorf("failed to load captures: %w", err)
	}
	run.Files = files
	return nil
}

// CaptureStep derives the capture records, seeds and primary hosts.
// It is the hard stop of a run without a defined crawl scope.
type CaptureStep struct {
	logger *slog.Logger
}

// NewCaptureStep creates a new capture decoding step.
func NewCaptureStep(logger *slog.Logger) *CaptureStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &CaptureStep{logger: logger}
}

// Name returns the step name.
func (s *CaptureStep) Name() string {
	return "capture"
}

// Do executes the capture step.
func (s *CaptureStep) Do(_ context.Context, run *Run) error {
	res, err := DecodeCaptures(run.Files)
	run.Capture = res
	if err != nil {
		return err
	}

	s.logger.Info("captures decoded",
		"bodies", len(res.Bodies),
		"missing", len(res.Missing),
		"seeds", len(res.Seeds),
		"primary_hosts", res.PrimaryHosts,
	)
	return nil
}

// CrawlStep runs the bounded live crawl seeded from the captures.
type CrawlStep struct {
	cfg *config.Config

	// fetcher overrides the HTTP fetcher built from cfg.
	fetcher crawler.Fetcher

	observer crawler.Observer
	logger   *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlFetcher sets the fetcher used instead of one built from the
// configuration.
func WithCrawlFetcher(f crawler.Fetcher) CrawlStepOption {
	return func(s *CrawlStep) {
		s.fetcher = f
	}
}

// WithCrawlObserver sets the observer notified about each visit.
func WithCrawlObserver(o crawler.Observer) CrawlStepOption {
	return func(s *CrawlStep) {
		s.observer = o
	}
}

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a new crawling step configured by cfg.
func NewCrawlStep(cfg *config.Config, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		cfg:    cfg,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do executes the crawl step.
func (s *CrawlStep) Do(ctx context.Context, run *Run) error {
	if run.Capture == nil {
		return errors.New("crawl requires decoded captures")
	}

	if s.cfg.NoCrawl {
		s.logger.Debug("skipping live crawl")
		run.Crawl = emptyCrawlResult()
		return nil
	}

	hc := config.HostConfig{
		IgnorePatterns: s.cfg.IgnorePatterns,
		FollowPatterns: s.cfg.FollowPatterns,
	}
	if len(run.Capture.PrimaryHosts) > 0 {
		hc = s.cfg.ForHost(run.Capture.PrimaryHosts[0])
	}

	fetcher := s.fetcher
	if fetcher == nil {
		hf, err := NewFetcher(s.cfg, hc, s.logger)
		if err != nil {
			return err
		}
		fetcher = hf
	}

	spiderOpts := []crawler.SpiderOption{
		crawler.WithMaxPages(s.cfg.MaxPages),
		crawler.WithPrimaryHosts(run.Capture.PrimaryHosts),
		crawler.WithLogger(s.logger),
	}
	if len(hc.IgnorePatterns) > 0 {
		spiderOpts = append(spiderOpts, crawler.WithIgnorePatterns(hc.IgnorePatterns))
	}
	if len(hc.FollowPatterns) > 0 {
		spiderOpts = append(spiderOpts, crawler.WithFollowPatterns(hc.FollowPatterns))
	}
	if s.observer != nil {
		spiderOpts = append(spiderOpts, crawler.WithObserver(s.observer))
	}

	spider := crawler.NewSpider(fetcher, spiderOpts...)
	result, err := spider.Crawl(ctx, run.Capture.Seeds)
	run.Crawl = result
	if err != nil {
		return fmt.Errorf("crawl interrupted: %w", err)
	}

	failedSeeds := make([]string, 0)
	for _, seed := range run.Capture.Seeds {
		if spider.State(seed) == crawler.StateVisitedFailed {
			failedSeeds = append(failedSeeds, seed)
		}
	}
	if len(failedSeeds) > 0 {
		s.logger.Warn("seed pages could not be fetched", "seeds", failedSeeds)
	}

	stats := spider.Stats()
	s.logger.Info("crawl completed",
		"primary_hosts", spider.PrimaryHosts(),
		"pages_visited", stats.PagesVisited,
		"urls_queued", stats.URLsQueued,
		"failures", len(result.Failures),
	)

	return nil
}

// NewFetcher builds the HTTP fetcher for a crawl from cfg and the
// settings of the host being crawled. When cfg.Proxy is set, requests are
// dialed through that SOCKS5 proxy.
func NewFetcher(cfg *config.Config, hc config.HostConfig, logger *slog.Logger) (*crawler.HTTPFetcher, error) {
	headers := make(map[string]string, len(hc.Headers)+1)
	for k, v := range hc.Headers {
		headers[k] = v
	}
	if hc.Cookie != "" {
		headers["Cookie"] = hc.Cookie
	}

	opts := []crawler.FetcherOption{
		crawler.WithFetchTimeout(cfg.Timeout),
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
		crawler.WithDelay(cfg.CrawlDelay),
		crawler.WithRespectRobots(cfg.RespectRobots),
	}
	if len(headers) > 0 {
		opts = append(opts, crawler.WithHeaders(headers))
	}
	if logger != nil {
		opts = append(opts, crawler.WithFetcherLogger(logger))
	}
	if cfg.Proxy != "" {
		client, err := socks.NewClient(cfg.Proxy)
		if err != nil {
			return nil, err
		}
		opts = append(opts, crawler.WithHTTPClient(client.HTTPClient(cfg.Timeout)))
	}
	return crawler.NewHTTPFetcher(opts...), nil
}

func emptyCrawlResult() *crawler.CrawlResult {
	return &crawler.CrawlResult{
		Pages:     make([]*model.Page, 0),
		Failures:  make([]model.CrawlFailure, 0),
		Routes:    make([]string, 0),
		Assets:    make([]string, 0),
		Abandoned: make([]string, 0),
	}
}

// AggregateStep reduces the capture records and crawl result into the
// run manifest.
type AggregateStep struct{}

// NewAggregateStep creates a new aggregation step.
func NewAggregateStep() *AggregateStep {
	return &AggregateStep{}
}

// Name returns the step name.
func (s *AggregateStep) Name() string {
	return "aggregate"
}

// Do executes the aggregation step.
func (s *AggregateStep) Do(_ context.Context, run *Run) error {
	if run.Capture == nil || run.Crawl == nil {
		return errors.New("aggregate requires capture and crawl results")
	}

	c := run.Capture
	run.Manifest = manifest.Build(manifest.Input{
		Captures:     c.Summaries,
		Observations: c.Observations,
		Bodies:       c.Bodies,
		Missing:      c.Missing,
		CaptureTexts: c.Texts,
		Pages:        run.Crawl.Pages,
		Failures:     run.Crawl.Failures,
		PrimaryHosts: c.PrimaryHosts,
		Seeds:        c.Seeds,
		Routes:       run.Crawl.Routes,
		Assets:       run.Crawl.Assets,
	})
	return nil
}

// ExportStep writes the manifest to the output directory.
type ExportStep struct {
	writer *export.Writer
}

// NewExportStep creates a step that writes with w.
func NewExportStep(w *export.Writer) *ExportStep {
	return &ExportStep{writer: w}
}

// Name returns the step name.
func (s *ExportStep) Name() string {
	return "export"
}

// Do executes the export step.
func (s *ExportStep) Do(ctx context.Context, run *Run) error {
	if run.Manifest == nil {
		return errors.New("export requires an aggregated manifest")
	}
	if err := s.writer.Write(ctx, run.Manifest); err != nil {
		return fmt.Errorf("failed to write export to %s: %w", s.writer.Root(), err)
	}
	return nil
}

// PersistStep records the run in the run history database.
// A database failure is logged and does not fail the run.
type PersistStep struct {
	db        *database.RunDB
	outputDir string
	now       func() time.Time
	logger    *slog.Logger
}

// NewPersistStep creates a step that saves runs into db.
func NewPersistStep(db *database.RunDB, outputDir string, logger *slog.Logger) *PersistStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersistStep{
		db:        db,
		outputDir: outputDir,
		now:       time.Now,
		logger:    logger,
	}
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do executes the persist step.
func (s *PersistStep) Do(ctx context.Context, run *Run) error {
	if run.Manifest == nil || run.Crawl == nil {
		return errors.New("persist requires an aggregated manifest")
	}

	run.FinishedAt = s.now()
	id, err := s.db.SaveRun(ctx, &database.Run{
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		OutputDir:  s.outputDir,
		Report:     &run.Manifest.Report,
		Routes:     &run.Manifest.Routes,
	}, run.Crawl.Pages, run.Crawl.Failures)
	if err != nil {
		s.logger.Warn("failed to save run history", "error", err)
		return nil
	}

	run.RunID = id
	s.logger.Debug("run saved", "run_id", id, "db", s.db.Path())
	return nil
}

// MetricsStep writes run metrics as a Prometheus textfile.
type MetricsStep struct {
	metrics *metrics.Metrics
	path    string
	now     func() time.Time
}

// NewMetricsStep creates a step that writes m to path.
func NewMetricsStep(m *metrics.Metrics, path string) *MetricsStep {
	return &MetricsStep{metrics: m, path: path, now: time.Now}
}

// Name returns the step name.
func (s *MetricsStep) Name() string {
	return "metrics"
}

// Do executes the metrics step.
func (s *MetricsStep) Do(_ context.Context, run *Run) error {
	s.metrics.ObserveReport(run.Report(), s.now())
	return s.metrics.WriteTextfile(s.path)
}

// DefaultPipelineConfig holds the collaborators of the default pipeline.
type DefaultPipelineConfig struct {
	metrics *metrics.Metrics
	db      *database.RunDB
	fetcher crawler.Fetcher
	now     func() time.Time
	logger  *slog.Logger
}

// DefaultPipelineOption configures the default pipeline.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithMetrics records crawl and step metrics into m. The textfile is only
// written when the configuration names a metrics file.
func WithMetrics(m *metrics.Metrics) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.metrics = m
	}
}

// WithRunDB stores every successful run in db.
func WithRunDB(db *database.RunDB) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.db = db
	}
}

// WithFetcher sets the fetcher of the crawl step.
func WithFetcher(f crawler.Fetcher) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.fetcher = f
	}
}

// WithClock sets the time source of the export and persist steps.
func WithClock(now func() time.Time) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.now = now
	}
}

// WithStepLogger sets the logger passed to every step.
func WithStepLogger(logger *slog.Logger) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.logger = logger
	}
}

// DefaultPipeline creates the extraction pipeline for cfg:
// load_captures, capture, crawl, aggregate, export and, when configured,
// persist and metrics.
func DefaultPipeline(cfg *config.Config, pipelineOpts []Option, opts ...DefaultPipelineOption) *Pipeline {
	dc := &DefaultPipelineConfig{
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(dc)
	}

	if dc.metrics != nil {
		pipelineOpts = append(pipelineOpts, WithStepObserver(dc.metrics.ObserveStep))
	}
	p := New(pipelineOpts...)

	loader := NewCaptureLoader(
		WithLoaderLogger(dc.logger),
		WithConcurrency(cfg.Concurrency),
	)

	crawlOpts := []CrawlStepOption{WithCrawlLogger(dc.logger)}
	if dc.fetcher != nil {
		crawlOpts = append(crawlOpts, WithCrawlFetcher(dc.fetcher))
	}
	if dc.metrics != nil {
		crawlOpts = append(crawlOpts, WithCrawlObserver(dc.metrics))
	}

	p.AddSteps(
		NewLoadCapturesStep(loader),
		NewCaptureStep(dc.logger),
		NewCrawlStep(cfg, crawlOpts...),
		NewAggregateStep(),
		NewExportStep(export.NewWriter(cfg.OutputDir,
			export.WithClock(dc.now),
			export.WithLogger(dc.logger),
		)),
	)

	if dc.db != nil {
		persist := NewPersistStep(dc.db, cfg.OutputDir, dc.logger)
		persist.now = dc.now
		p.AddStep(persist)
	}

	if dc.metrics != nil && cfg.MetricsFile != "" {
		m := NewMetricsStep(dc.metrics, cfg.MetricsFile)
		m.now = dc.now
		p.AddStep(m)
	}

	return p
}
