package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/siteharvest/internal/config"
	"github.com/nao1215/siteharvest/internal/database"
	"github.com/nao1215/siteharvest/internal/metrics"
	"github.com/nao1215/siteharvest/internal/model"
	"github.com/nao1215/siteharvest/internal/pipeline"
	"github.com/nao1215/siteharvest/internal/report"
	"github.com/nao1215/siteharvest/internal/socks"
)

// NewExtractCmd creates the extract command.
func NewExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [capture.har ...]",
		Short: "Extract captures and crawl the captured site",
		Long: `Extract decodes HAR captures and writes an offline snapshot of the site.

It recovers every recorded response body, derives the seed routes and
primary hosts from the captures, crawls those hosts breadth-first within the
page budget and writes routes, page text and manifests to the output
directory. Existing files in the output directory are overwritten.

When no capture file is given, every *.har file in the current directory is
used.

Examples:
  # Extract all captures in the current directory into raw/
  siteharvest extract

  # Extract specific captures into a custom directory
  siteharvest extract -o snapshot home.har shop.har

  # Raise the page budget for a large site
  siteharvest extract -p 500 site.har

  # Only recover captured bodies, skip the live crawl
  siteharvest extract --no-crawl site.har

  # Print report.json instead of the summary
  siteharvest extract --json site.har

Configuration file (.siteharvest) example:
  crawl:
    maxPages: 200
    delay: 500ms
  hosts:
    example.com:
      cookie: "session=abc123"
      ignorePatterns:
        - "/logout*"`,
		Args: cobra.ArbitraryArgs,
		RunE: runExtractCmd,
	}

	// Output flags
	cmd.Flags().StringP("output", "o", config.DefaultOutputDir,
		"Export directory (existing files are overwritten)")

	// Crawl behavior flags
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of URLs the live crawl visits")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay,
		"Delay between crawl requests")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header for crawl requests")
	cmd.Flags().StringArrayP("header", "H", nil,
		`Extra request header, "Name: value" (repeatable)`)
	cmd.Flags().StringSlice("ignore", nil,
		"Route path patterns that are never crawled")
	cmd.Flags().StringSlice("follow", nil,
		"Only crawl route paths matching these patterns")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address (host:port) for crawl requests")
	cmd.Flags().Bool("respect-robots", false,
		"Check robots.txt before each fetch")
	cmd.Flags().Bool("no-crawl", false,
		"Skip the live crawl and only export capture data")
	cmd.Flags().Int("concurrency", config.DefaultConcurrency,
		"Number of capture files decoded in parallel")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .siteharvest in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Print report.json (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Print the summary as Markdown (mutually exclusive with --json)")
	cmd.Flags().StringP("report-file", "r", "",
		"Write the summary to this file instead of stdout")
	cmd.Flags().Bool("tee", false,
		"With --report-file, also print the summary to stdout")

	// History and metrics flags
	cmd.Flags().Bool("no-db", false,
		"Do not record the run in the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")
	cmd.Flags().String("metrics-file", "",
		"Write run metrics to this Prometheus textfile")

	return cmd
}

// runExtractCmd executes the extract command.
func runExtractCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd, cfg.Verbose)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runExtract(ctx, cfg, logger, cmd.OutOrStdout())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags and the
// configuration file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.OutputDir, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.CrawlDelay, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	headers, err := flags.GetStringArray("header")
	if err != nil {
		return nil, err
	}
	if cfg.Headers, err = parseHeaders(headers); err != nil {
		return nil, err
	}
	if cfg.IgnorePatterns, err = flags.GetStringSlice("ignore"); err != nil {
		return nil, err
	}
	if cfg.FollowPatterns, err = flags.GetStringSlice("follow"); err != nil {
		return nil, err
	}
	if cfg.RespectRobots, err = flags.GetBool("respect-robots"); err != nil {
		return nil, err
	}
	if cfg.Proxy, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.NoCrawl, err = flags.GetBool("no-crawl"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("report-file"); err != nil {
		return nil, err
	}
	if cfg.TeeReport, err = flags.GetBool("tee"); err != nil {
		return nil, err
	}
	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if cfg.MetricsFile, err = flags.GetString("metrics-file"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	if err := applyConfigFile(cmd, cfg); err != nil {
		return nil, err
	}

	cfg.Captures, err = capturePaths(args)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyConfigFile merges the configuration file into cfg. Flags set on the
// command line win over the file.
func applyConfigFile(cmd *cobra.Command, cfg *config.Config) error {
	// If the user explicitly specified a config file path, error if not found.
	// Otherwise silently continue without one.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath == "" {
		if explicitConfigPath {
			return fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
		}
		return nil
	}

	file, err := config.LoadConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	explicit := make(map[string]bool)
	for _, name := range []string{"max-pages", "timeout", "delay", "user-agent", "respect-robots", "proxy", "output"} {
		explicit[name] = cmd.Flags().Changed(name)
	}
	cfg.Apply(file, explicit)
	return nil
}

// capturePaths returns args, or the capture files of the working directory
// when args is empty.
func capturePaths(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	matches, err := filepath.Glob(config.DefaultCaptureGlob)
	if err != nil {
		return nil, fmt.Errorf("failed to list capture files: %w", err)
	}
	return matches, nil
}

// parseHeaders parses "Name: value" header flags.
func parseHeaders(values []string) (map[string]string, error) {
	headers := make(map[string]string, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q: expected \"Name: value\"", v)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// runExtract executes the extraction pipeline and prints the summary.
func runExtract(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	logger.Info("starting extract",
		"captures", cfg.Captures,
		"output", cfg.OutputDir,
		"maxPages", cfg.MaxPages,
		"saveToDB", cfg.SaveToDB,
	)

	if cfg.Proxy != "" && !cfg.NoCrawl {
		if err := checkProxy(ctx, cfg.Proxy, logger); err != nil {
			return err
		}
	}

	opts := []pipeline.DefaultPipelineOption{
		pipeline.WithStepLogger(logger),
	}

	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			logger.Warn("run history disabled", "dir", cfg.DBDir, "error", err)
		} else {
			defer db.Close()
			opts = append(opts, pipeline.WithRunDB(db))
		}
	}

	if cfg.MetricsFile != "" {
		opts = append(opts, pipeline.WithMetrics(metrics.New()))
	}

	p := pipeline.DefaultPipeline(cfg, []pipeline.Option{pipeline.WithLogger(logger)}, opts...)
	run := pipeline.NewRun(cfg.Captures, time.Now())

	if err := p.Execute(ctx, run); err != nil {
		return fmt.Errorf("extract failed: %w", err)
	}

	if err := outputReport(cfg, run.Report(), out); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if run.RunID != 0 {
		logger.Info("run recorded", "run_id", run.RunID)
	}
	return nil
}

// checkProxy verifies that the SOCKS5 proxy at address is usable before
// the crawl starts.
func checkProxy(ctx context.Context, address string, logger *slog.Logger) error {
	client, err := socks.NewClient(address)
	if err != nil {
		return err
	}
	logger.Debug("checking proxy", "address", address)
	if status := client.CheckConnection(ctx); status != socks.StatusOK {
		return fmt.Errorf("proxy %s: %w", address, status.Err())
	}
	return nil
}

// outputReport writes the run report in the requested format to the
// report file, or to out when no file is configured. With TeeReport the
// report goes to both.
func outputReport(cfg *config.Config, r *model.Report, out io.Writer) error {
	if cfg.ReportFile == "" {
		w, err := newReportWriter(cfg, out, true)
		if err != nil {
			return err
		}
		_, err = w.Write(r)
		return err
	}

	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	w, err := newReportWriter(cfg, f, false)
	if err != nil {
		return err
	}
	if cfg.TeeReport {
		stdout, err := newReportWriter(cfg, out, true)
		if err != nil {
			return err
		}
		w = report.NewMultiWriter(w, stdout)
	}

	_, err = w.Write(r)
	return err
}

// newReportWriter returns the writer for the configured format. Color is
// only used for the text summary on a terminal stream.
func newReportWriter(cfg *config.Config, out io.Writer, terminal bool) (report.Writer, error) {
	if format := cfg.ReportFormat(); format != report.FormatText {
		return report.NewWriter(format, out)
	}
	opts := []report.SimpleWriterOption{report.WithOutputDir(cfg.OutputDir)}
	if !terminal {
		opts = append(opts, report.WithColor(false))
	}
	return report.NewSimpleWriter(out, opts...), nil
}
