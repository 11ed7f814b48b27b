package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/siteharvest/internal/assets"
	"github.com/nao1215/siteharvest/internal/config"
	"github.com/nao1215/siteharvest/internal/crawler"
	"github.com/nao1215/siteharvest/internal/export"
	"github.com/nao1215/siteharvest/internal/pipeline"
)

// NewAssetsCmd creates the assets command.
func NewAssetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "Download live asset candidates of an export",
		Long: `Assets downloads the same-host assets listed in manifests/live_assets.json
into assets/live/ of an existing export.

Assets already present under har_bodies/ or assets/live/ are skipped. A
response other than 200 or an empty body counts as a failure. Downloads are
sequential unless --concurrency is raised.

Examples:
  # Download up to 120 assets of the export in raw/
  siteharvest assets

  # Download more assets from another export
  siteharvest assets -o snapshot --limit 500`,
		Args: cobra.NoArgs,
		RunE: runAssetsCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultOutputDir,
		"Export directory to read candidates from and write assets to")
	cmd.Flags().Int("limit", config.DefaultAssetLimit,
		"Maximum number of candidates to consider")
	cmd.Flags().Int("concurrency", config.DefaultAssetConcurrency,
		"Number of downloads in flight")
	cmd.Flags().Bool("all-hosts", false,
		"Do not restrict candidates to the primary hosts of the export")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay,
		"Delay between requests")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header for requests")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address (host:port) for downloads")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .siteharvest in current or home directory)")
	cmd.Flags().BoolP("json", "j", false,
		"Print the result as JSON")

	return cmd
}

// assetsOptions holds the flags of the assets command.
type assetsOptions struct {
	limit       int
	concurrency int
	allHosts    bool
	jsonOutput  bool
}

// runAssetsCmd executes the assets command.
func runAssetsCmd(cmd *cobra.Command, _ []string) error {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var (
		opts assetsOptions
		err  error
	)
	if cfg.OutputDir, err = flags.GetString("output"); err != nil {
		return err
	}
	if opts.limit, err = flags.GetInt("limit"); err != nil {
		return err
	}
	if opts.concurrency, err = flags.GetInt("concurrency"); err != nil {
		return err
	}
	if opts.allHosts, err = flags.GetBool("all-hosts"); err != nil {
		return err
	}
	if opts.jsonOutput, err = flags.GetBool("json"); err != nil {
		return err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return err
	}
	if cfg.CrawlDelay, err = flags.GetDuration("delay"); err != nil {
		return err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return err
	}
	if cfg.Proxy, err = flags.GetString("proxy"); err != nil {
		return err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	if err := applyConfigFile(cmd, cfg); err != nil {
		return err
	}
	if opts.limit <= 0 {
		return errors.New("invalid limit: must be positive")
	}
	if opts.concurrency <= 0 {
		return config.ErrInvalidConcurrency
	}

	logger := newLogger(cmd, cfg.Verbose)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runAssets(ctx, cfg, opts, nil, logger, cmd.OutOrStdout())
}

// runAssets downloads the asset candidates of the export in cfg.OutputDir.
// A nil fetcher is replaced by an HTTP fetcher built from cfg.
func runAssets(ctx context.Context, cfg *config.Config, opts assetsOptions, fetcher crawler.Fetcher, logger *slog.Logger, out io.Writer) error {
	candidates, err := export.LoadAssets(cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to read asset candidates (run 'siteharvest extract' first): %w", err)
	}
	rep, err := export.LoadReport(cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to read report: %w", err)
	}

	hc := config.HostConfig{}
	if len(rep.PrimaryHosts) > 0 {
		hc = cfg.ForHost(rep.PrimaryHosts[0])
	}
	if fetcher == nil {
		hf, err := pipeline.NewFetcher(cfg, hc, logger)
		if err != nil {
			return err
		}
		fetcher = hf
	}

	dlOpts := []assets.Option{
		assets.WithLimit(opts.limit),
		assets.WithConcurrency(opts.concurrency),
		assets.WithLogger(logger),
	}
	if !opts.allHosts {
		dlOpts = append(dlOpts, assets.WithHosts(rep.PrimaryHosts))
	}

	res, err := assets.NewDownloader(fetcher, cfg.OutputDir, dlOpts...).Download(ctx, candidates)
	if err != nil {
		return fmt.Errorf("asset download interrupted: %w", err)
	}

	if opts.jsonOutput {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(res)
	}

	fmt.Fprintf(out, "Candidates:     %d\n", res.Candidates)
	fmt.Fprintf(out, "Downloaded:     %d\n", res.Downloaded)
	fmt.Fprintf(out, "Skipped exists: %d\n", res.SkippedExists)
	fmt.Fprintf(out, "Failed:         %d\n", res.Failed)
	fmt.Fprintf(out, "Output:         %s\n", res.OutRoot)
	return nil
}
