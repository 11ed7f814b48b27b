package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/siteharvest/internal/capture"
)

// DefaultLoadConcurrency is the number of capture files decoded at once.
const DefaultLoadConcurrency = 4

// CaptureLoader decodes capture files concurrently.
//
// Results are stored by input index, so the returned slice has the same
// order as the paths no matter which goroutine finishes first.
type CaptureLoader struct {
	// load decodes one file. It is capture.LoadFile unless replaced in tests.
	load func(path string) (*capture.File, error)

	concurrency int
	logger      *slog.Logger
}

// LoaderOption configures a CaptureLoader.
type LoaderOption func(*CaptureLoader)

// WithLoaderLogger sets a custom logger for capture loading.
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *CaptureLoader) {
		l.logger = logger
	}
}

// WithConcurrency sets the maximum number of files decoded at once.
func WithConcurrency(n int) LoaderOption {
	return func(l *CaptureLoader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// NewCaptureLoader creates a new CaptureLoader.
func NewCaptureLoader(opts ...LoaderOption) *CaptureLoader {
	l := &CaptureLoader{
		load:        capture.LoadFile,
		concurrency: DefaultLoadConcurrency,
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.logger == nil {
		l.logger = slog.Default()
	}

	return l
}

// LoadAll decodes every path. A file that cannot be read or is not a JSON
// document aborts the load; malformed entries inside a file do not.
func (l *CaptureLoader) LoadAll(ctx context.Context, paths []string) ([]*capture.File, error) {
	l.logger.Info("loading captures",
		"files", len(paths),
		"concurrency", l.concurrency,
	)

	startTime := time.Now()
	files := make([]*capture.File, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			f, err := l.load(path)
			if err != nil {
				return fmt.Errorf("capture %s: %w", path, err)
			}
			if f.Skipped() > 0 {
				l.logger.Warn("skipped malformed capture entries",
					"har_file", f.Name,
					"skipped", f.Skipped(),
				)
			}

			// Each goroutine owns its own index.
			files[i] = f
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	l.logger.Debug("captures loaded",
		"files", len(paths),
		"elapsed", time.Since(startTime),
	)

	return files, nil
}
