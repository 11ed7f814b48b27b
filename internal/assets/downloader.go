package assets

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/siteharvest/internal/canon"
	"github.com/nao1215/siteharvest/internal/crawler"
	"github.com/nao1215/siteharvest/internal/export"
	"github.com/nao1215/siteharvest/internal/manifest"
	"github.com/nao1215/siteharvest/internal/model"
)

// Default downloader settings.
const (
	DefaultLimit       = 120
	DefaultConcurrency = 1
)

// Result summarizes a download run.
type Result struct {
	Candidates    int    `json:"candidates"`
	Downloaded    int    `json:"downloaded"`
	SkippedExists int    `json:"skipped_exists"`
	Failed        int    `json:"failed"`
	OutRoot       string `json:"out_root"`
}

// Downloader fetches asset candidates into an export directory.
//
// An asset is skipped when a file with its storage path already exists
// under har_bodies/ or assets/live/. A fetch error, a status other than
// 200 or an empty body counts as a failure and never stops the run.
type Downloader struct {
	fetcher     crawler.Fetcher
	root        string
	limit       int
	concurrency int

	// hosts restricts candidates to these hosts. Empty means no filter.
	hosts map[string]bool

	logger *slog.Logger
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithLimit caps the number of candidates considered.
func WithLimit(n int) Option {
	return func(d *Downloader) {
		if n > 0 {
			d.limit = n
		}
	}
}

// WithConcurrency sets the number of downloads in flight.
func WithConcurrency(n int) Option {
	return func(d *Downloader) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithHosts restricts candidates to the given hosts.
func WithHosts(hosts []string) Option {
	return func(d *Downloader) {
		d.hosts = make(map[string]bool, len(hosts))
		for _, h := range hosts {
			d.hosts[h] = true
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Downloader) {
		d.logger = logger
	}
}

// NewDownloader creates a Downloader writing below the export root.
func NewDownloader(fetcher crawler.Fetcher, root string, opts ...Option) *Downloader {
	d := &Downloader{
		fetcher:     fetcher,
		root:        root,
		limit:       DefaultLimit,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Candidates returns the canonical asset URLs to download, in input order,
// without duplicates and at most limit of them.
func (d *Downloader) Candidates(list []model.Asset) []string {
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, min(len(list), d.limit))
	for _, a := range list {
		normalized, err := canon.NormalizeAssetString(a.URL)
		if err != nil {
			continue
		}
		if len(d.hosts) > 0 && !d.hosts[canon.Host(normalized)] {
			continue
		}
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		out = append(out, normalized)
		if len(out) >= d.limit {
			break
		}
	}
	return out
}

// Download fetches the candidates of list. It returns an error only when
// ctx is canceled.
func (d *Downloader) Download(ctx context.Context, list []model.Asset) (*Result, error) {
	urls := d.Candidates(list)

	var downloaded, skipped, failed atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for _, u := range urls {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			switch d.fetchOne(ctx, u) {
			case outcomeDownloaded:
				downloaded.Add(1)
			case outcomeSkipped:
				skipped.Add(1)
			default:
				failed.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{
		Candidates:    len(urls),
		Downloaded:    int(downloaded.Load()),
		SkippedExists: int(skipped.Load()),
		Failed:        int(failed.Load()),
		OutRoot:       filepath.Join(d.root, filepath.FromSlash(manifest.LiveAssetsDir)),
	}
	d.logger.Info("asset download finished",
		"candidates", res.Candidates,
		"downloaded", res.Downloaded,
		"skipped_exists", res.SkippedExists,
		"failed", res.Failed,
	)
	return res, nil
}

type outcome int

const (
	outcomeFailed outcome = iota
	outcomeDownloaded
	outcomeSkipped
)

func (d *Downloader) fetchOne(ctx context.Context, rawURL string) outcome {
	u, err := canon.Parse(rawURL)
	if err != nil {
		return outcomeFailed
	}
	rel := canon.StoragePath(u, "")

	liveFile, err := export.Resolve(d.root, path.Join(manifest.LiveAssetsDir, rel))
	if err != nil {
		return outcomeFailed
	}
	harFile, err := export.Resolve(d.root, path.Join(manifest.HARBodiesDir, rel))
	if err != nil {
		return outcomeFailed
	}
	if exists(harFile) || exists(liveFile) {
		return outcomeSkipped
	}

	res, err := d.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		d.logger.Debug("asset fetch failed", "url", rawURL, "error", err)
		return outcomeFailed
	}
	if res.StatusCode != http.StatusOK || len(res.Body) == 0 {
		d.logger.Debug("asset rejected", "url", rawURL, "status", res.StatusCode, "size", len(res.Body))
		return outcomeFailed
	}

	if err := writeFile(liveFile, res.Body); err != nil {
		d.logger.Warn("failed to store asset", "url", rawURL, "error", err)
		return outcomeFailed
	}
	return outcomeDownloaded
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func writeFile(target string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return os.WriteFile(target, data, 0o600)
}
