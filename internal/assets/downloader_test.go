package assets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/nao1215/siteharvest/internal/crawler"
	"github.com/nao1215/siteharvest/internal/model"
)

// stubFetcher serves canned bodies keyed by URL.
type stubFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	status map[string]int
	calls  []string
}

func (f *stubFetcher) Fetch(_ context.Context, rawURL string) (*crawler.FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, rawURL)
	body, ok := f.bodies[rawURL]
	if !ok {
		return nil, &crawler.FetchError{URL: rawURL, Reason: crawler.ReasonHTTPStatus, StatusCode: 404}
	}
	status := 200
	if s, ok := f.status[rawURL]; ok {
		status = s
	}
	return &crawler.FetchResult{URL: rawURL, FinalURL: rawURL, StatusCode: status, Body: []byte(body)}, nil
}

func assetList(urls ...string) []model.Asset {
	out := make([]model.Asset, 0, len(urls))
	for _, u := range urls {
		out = append(out, model.Asset{URL: u})
	}
	return out
}

// TestCandidates tests candidate selection.
func TestCandidates(t *testing.T) {
	t.Parallel()

	list := assetList(
		"https://example.com/a.png",
		"http://EXAMPLE.com/a.png",
		"https://cdn.example.net/b.js",
		"https://example.com/c.css",
		"https://example.com/d.woff2",
	)

	tests := []struct {
		name string
		opts []Option
		want []string
	}{
		{
			name: "deduplicates canonical URLs",
			want: []string{
				"https://example.com/a.png",
				"https://cdn.example.net/b.js",
				"https://example.com/c.css",
				"https://example.com/d.woff2",
			},
		},
		{
			name: "filters hosts",
			opts: []Option{WithHosts([]string{"example.com"})},
			want: []string{
				"https://example.com/a.png",
				"https://example.com/c.css",
				"https://example.com/d.woff2",
			},
		},
		{
			name: "applies limit after filtering",
			opts: []Option{WithHosts([]string{"example.com"}), WithLimit(2)},
			want: []string{
				"https://example.com/a.png",
				"https://example.com/c.css",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := NewDownloader(&stubFetcher{}, t.TempDir(), tt.opts...).Candidates(list)
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

// TestDownload tests fetching, skipping and failure accounting.
func TestDownload(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	existing := filepath.Join(root, "har_bodies", "example.com", "have.png")
	if err := os.MkdirAll(filepath.Dir(existing), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(existing, []byte("png"), 0o600); err != nil {
		t.Fatal(err)
	}

	fetcher := &stubFetcher{
		bodies: map[string]string{
			"https://example.com/new.png":   "image",
			"https://example.com/empty.png": "",
			"https://example.com/moved.png": "redirect page",
		},
		status: map[string]int{"https://example.com/moved.png": 203},
	}

	d := NewDownloader(fetcher, root, WithConcurrency(2))
	res, err := d.Download(context.Background(), assetList(
		"https://example.com/new.png",
		"https://example.com/have.png",
		"https://example.com/empty.png",
		"https://example.com/moved.png",
		"https://example.com/missing.png",
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Result{
		Candidates:    5,
		Downloaded:    1,
		SkippedExists: 1,
		Failed:        3,
		OutRoot:       filepath.Join(root, "assets", "live"),
	}
	if *res != want {
		t.Errorf("got %+v, want %+v", *res, want)
	}

	data, err := os.ReadFile(filepath.Join(root, "assets", "live", "example.com", "new.png"))
	if err != nil {
		t.Fatalf("expected downloaded file: %v", err)
	}
	if string(data) != "image" {
		t.Errorf("unexpected content %q", data)
	}
	if slices.Contains(fetcher.calls, "https://example.com/have.png") {
		t.Error("expected existing asset not to be fetched")
	}

	t.Run("second run skips downloaded files", func(t *testing.T) {
		res, err := d.Download(context.Background(), assetList("https://example.com/new.png"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.SkippedExists != 1 || res.Downloaded != 0 {
			t.Errorf("unexpected result %+v", res)
		}
	})
}

// TestDownloadExtensionlessAsset tests that asset URLs without an
// extension are requested exactly as discovered.
func TestDownloadExtensionlessAsset(t *testing.T) {
	t.Parallel()

	const assetURL = "https://example.com/media/image?id=5"
	fetcher := &stubFetcher{bodies: map[string]string{assetURL: "jpeg"}}

	d := NewDownloader(fetcher, t.TempDir())
	if got := d.Candidates(assetList("http://Example.com/media/image?id=5#top")); !slices.Equal(got, []string{assetURL}) {
		t.Errorf("Candidates() = %v, want [%s]", got, assetURL)
	}

	res, err := d.Download(context.Background(), assetList(assetURL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Downloaded != 1 || res.Failed != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	if !slices.Equal(fetcher.calls, []string{assetURL}) {
		t.Errorf("fetched %v, want [%s]", fetcher.calls, assetURL)
	}
}

// TestDownloadCanceled tests context cancellation.
func TestDownloadCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDownloader(&stubFetcher{}, t.TempDir())
	if _, err := d.Download(ctx, assetList("https://example.com/a.png")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
