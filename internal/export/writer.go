package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/siteharvest/internal/manifest"
	"github.com/nao1215/siteharvest/internal/model"
)

// Manifest file names inside manifest.ManifestsDir.
const (
	HARSummaryFile     = "har_summary.json"
	HARBodiesFile      = "har_bodies.json"
	MissingBodiesFile  = "missing_har_bodies.json"
	HARPageTextFile    = "har_page_text.json"
	LivePagesFile      = "live_pages.json"
	LiveAssetsFile     = "live_assets.json"
	LiveAssetSkipsFile = "live_asset_skips.json"
	CrawlFailuresFile  = "crawl_failures.json"
	ReportFile         = "report.json"

	RoutesJSONFile   = "routes.json"
	RoutesTextFile   = "routes.txt"
	CombinedTextFile = "content/all_live_page_text.md"
	ReadmeFile       = "README.md"
)

// ErrUnsafePath is returned when a manifest file reference would resolve
// outside the output directory.
var ErrUnsafePath = errors.New("file reference escapes the output directory")

// Writer writes manifests and content files under a root directory.
type Writer struct {
	root   string
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithClock sets the clock used for the README timestamp.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		w.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Writer) {
		w.logger = logger
	}
}

// NewWriter creates a Writer rooted at dir.
func NewWriter(dir string, opts ...Option) *Writer {
	w := &Writer{
		root:   dir,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Root returns the output directory.
func (w *Writer) Root() string {
	return w.root
}

// Write writes m to the output directory. Existing files with the same
// names are overwritten; other files are left alone.
func (w *Writer) Write(ctx context.Context, m *manifest.Manifest) error {
	if err := w.ensureLayout(); err != nil {
		return err
	}

	for _, b := range m.Bodies {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.writeFile(b.File, b.Payload); err != nil {
			return err
		}
	}
	for _, t := range m.CaptureTexts {
		if err := w.writeFile(t.TextFile, []byte(t.Text)); err != nil {
			return err
		}
	}
	for _, p := range m.LivePages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.writeFile(p.HTMLFile, p.HTML); err != nil {
			return err
		}
		if err := w.writeFile(p.TextFile, []byte(p.Text)); err != nil {
			return err
		}
	}

	if err := w.writeRoutes(m.Routes); err != nil {
		return err
	}
	if err := w.writeFile(CombinedTextFile, []byte(CombinedText(m.LivePages))); err != nil {
		return err
	}
	if err := w.writeManifests(m); err != nil {
		return err
	}

	var readme bytes.Buffer
	if err := WriteReadme(&readme, &m.Report, w.now()); err != nil {
		return fmt.Errorf("failed to render README: %w", err)
	}
	if err := w.writeFile(ReadmeFile, readme.Bytes()); err != nil {
		return err
	}

	w.logger.Info("export written",
		"dir", w.root,
		"bodies", len(m.Bodies),
		"live_pages", len(m.LivePages),
		"routes", len(m.Routes.AllRoutes),
	)
	return nil
}

func (w *Writer) ensureLayout() error {
	dirs := []string{
		manifest.HARBodiesDir,
		manifest.ManifestsDir,
		manifest.RoutesDir,
		manifest.HARPagesDir,
		manifest.LivePagesDir,
		manifest.LiveAssetsDir,
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(w.root, filepath.FromSlash(d)), 0o750); err != nil {
			return fmt.Errorf("failed to create %s: %w", d, err)
		}
	}
	return nil
}

func (w *Writer) writeRoutes(routes model.Routes) error {
	if err := w.writeJSON(path.Join(manifest.RoutesDir, RoutesJSONFile), routes); err != nil {
		return err
	}
	text := strings.Join(routes.AllRoutePaths, "\n") + "\n"
	return w.writeFile(path.Join(manifest.RoutesDir, RoutesTextFile), []byte(text))
}

func (w *Writer) writeManifests(m *manifest.Manifest) error {
	files := []struct {
		name string
		v    any
	}{
		{HARSummaryFile, m.Captures},
		{HARBodiesFile, m.Bodies},
		{MissingBodiesFile, m.Missing},
		{HARPageTextFile, m.CaptureTexts},
		{LivePagesFile, m.LivePages},
		{LiveAssetsFile, m.Assets},
		{LiveAssetSkipsFile, m.AssetSkips},
		{CrawlFailuresFile, m.Failures},
		{ReportFile, m.Report},
	}
	for _, f := range files {
		if err := w.writeJSON(path.Join(manifest.ManifestsDir, f.name), f.v); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeJSON(rel string, v any) error {
	data, err := MarshalJSON(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", rel, err)
	}
	return w.writeFile(rel, data)
}

// writeFile writes data to a slash-separated path relative to the root.
func (w *Writer) writeFile(rel string, data []byte) error {
	target, err := Resolve(w.root, rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", rel, err)
	}
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", rel, err)
	}
	return nil
}

// Resolve joins a slash-separated manifest reference to root and checks
// that the result stays inside root.
func Resolve(root, rel string) (string, error) {
	cleaned := path.Clean("/" + rel)
	if cleaned == "/" {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, rel)
	}
	target := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(cleaned, "/")))

	within, err := filepath.Rel(root, target)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, rel)
	}
	return target, nil
}

// MarshalJSON encodes v with two-space indentation and without HTML
// escaping, followed by a newline.
func MarshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CombinedText renders the text of every crawled page, ordered by URL,
// as one markdown document.
func CombinedText(pages []model.LivePage) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		parts = append(parts, "# "+p.URL+"\n\n"+p.Text+"\n")
	}
	return strings.Join(parts, "\n")
}
