package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeFetcher serves canned responses keyed by URL.
type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]*FetchResult
	failures  map[string]FailureReason
	calls     []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		responses: make(map[string]*FetchResult),
		failures:  make(map[string]FailureReason),
	}
}

func (f *fakeFetcher) html(u, body string) {
	f.responses[u] = &FetchResult{URL: u, FinalURL: u, StatusCode: 200, ContentType: "text/html; charset=utf-8", Body: []byte(body)}
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (*FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, rawURL)
	if reason, ok := f.failures[rawURL]; ok {
		return nil, &FetchError{URL: rawURL, Reason: reason}
	}
	if r, ok := f.responses[rawURL]; ok {
		return r, nil
	}
	return nil, &FetchError{URL: rawURL, Reason: ReasonHTTPStatus, StatusCode: 404}
}

// recordingObserver records visits.
type recordingObserver struct {
	mu     sync.Mutex
	states map[string]VisitState
	routes int
}

func (o *recordingObserver) ObserveVisit(rawURL string, state VisitState, _ FailureReason, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states[rawURL] = state
}

func (o *recordingObserver) ObserveDiscovery(routes, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.routes += routes
}

// TestSpiderCrawl tests the crawl loop against a fake fetcher.
func TestSpiderCrawl(t *testing.T) {
	t.Parallel()

	t.Run("crawls breadth first within primary hosts", func(t *testing.T) {
		t.Parallel()

		f := newFakeFetcher()
		f.html("https://example.com/", `<a href="/a">A</a><a href="/b">B</a><a href="https://other.com/x">X</a><img src="/logo.png">`)
		f.html("https://example.com/a/", `<p>page a</p><a href="/c">C</a><a href="/">home</a>`)
		f.html("https://example.com/b/", `<p>page b</p><a href="/style.css">css</a>`)
		f.html("https://example.com/c/", `<p>page c</p><script src="https://cdn.net/x.js"></script>`)

		spider := NewSpider(f, WithPrimaryHosts([]string{"Example.com"}))
		result, err := spider.Crawl(context.Background(), []string{"http://EXAMPLE.com/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		wantCalls := []string{
			"https://example.com/",
			"https://example.com/a/",
			"https://example.com/b/",
			"https://example.com/c/",
		}
		if !slices.Equal(f.calls, wantCalls) {
			t.Errorf("expected calls %v, got %v", wantCalls, f.calls)
		}

		if len(result.Pages) != 4 {
			t.Fatalf("expected 4 pages, got %d", len(result.Pages))
		}
		if result.Pages[1].Text != "page a\nC\nhome" {
			t.Errorf("unexpected text %q", result.Pages[1].Text)
		}
		if result.Pages[0].Hash == "" {
			t.Error("expected page hash to be computed")
		}

		if !slices.Equal(result.Routes, wantCalls) {
			t.Errorf("expected routes %v, got %v", wantCalls, result.Routes)
		}

		wantAssets := []string{"https://cdn.net/x.js", "https://example.com/logo.png"}
		if !slices.Equal(result.Assets, wantAssets) {
			t.Errorf("expected assets %v, got %v", wantAssets, result.Assets)
		}
		if spider.State("https://example.com/c/") != StateVisitedSuccess {
			t.Errorf("unexpected state %v", spider.State("https://example.com/c/"))
		}
	})

	t.Run("honors page budget", func(t *testing.T) {
		t.Parallel()

		f := newFakeFetcher()
		var links strings.Builder
		for i := range 10 {
			fmt.Fprintf(&links, `<a href="/p%d">p</a>`, i)
		}
		f.html("https://example.com/", links.String())
		for i := range 10 {
			f.html(fmt.Sprintf("https://example.com/p%d/", i), links.String())
		}

		spider := NewSpider(f, WithMaxPages(3))
		result, err := spider.Crawl(context.Background(), []string{"https://example.com/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if result.Visited != 3 || len(f.calls) != 3 {
			t.Errorf("expected 3 visits, got %d (%d calls)", result.Visited, len(f.calls))
		}
		if len(result.Abandoned) != 0 {
			t.Errorf("expected no abandoned URLs, got %v", result.Abandoned)
		}
		// Every discovered in-scope link is a route even if never fetched.
		if len(result.Routes) != 11 {
			t.Errorf("expected 11 routes, got %d", len(result.Routes))
		}
	})

	t.Run("never revisits a URL", func(t *testing.T) {
		t.Parallel()

		f := newFakeFetcher()
		f.html("https://example.com/", `<a href="/a">A</a><a href="/a/">A again</a><a href="/a#x">A frag</a>`)
		f.html("https://example.com/a/", `<a href="/">home</a><a href="/a">self</a>`)

		spider := NewSpider(f)
		if _, err := spider.Crawl(context.Background(), []string{"https://example.com/", "https://example.com/"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		seen := make(map[string]int)
		for _, c := range f.calls {
			seen[c]++
		}
		for u, n := range seen {
			if n != 1 {
				t.Errorf("expected %q to be fetched once, got %d", u, n)
			}
		}
	})

	t.Run("records failures and continues", func(t *testing.T) {
		t.Parallel()

		f := newFakeFetcher()
		f.html("https://example.com/", `<a href="/down">down</a><a href="/slow">slow</a><a href="/ok">ok</a>`)
		f.failures["https://example.com/down/"] = ReasonFetchFailed
		f.failures["https://example.com/slow/"] = ReasonTimeout
		f.html("https://example.com/ok/", `<p>ok</p>`)

		obs := &recordingObserver{states: make(map[string]VisitState)}
		spider := NewSpider(f, WithObserver(obs))
		result, err := spider.Crawl(context.Background(), []string{"https://example.com/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(result.Pages) != 2 {
			t.Errorf("expected 2 pages, got %d", len(result.Pages))
		}
		if len(result.Failures) != 2 {
			t.Fatalf("expected 2 failures, got %d", len(result.Failures))
		}
		if result.Failures[0].Reason != "fetch_failed" || result.Failures[1].Reason != "timeout" {
			t.Errorf("unexpected failures %+v", result.Failures)
		}
		if obs.states["https://example.com/down/"] != StateVisitedFailed {
			t.Errorf("expected failed state, got %v", obs.states["https://example.com/down/"])
		}
		if obs.routes != 3 {
			t.Errorf("expected 3 in-scope routes observed, got %d", obs.routes)
		}
	})

	t.Run("non-HTML responses are visited but not parsed", func(t *testing.T) {
		t.Parallel()

		f := newFakeFetcher()
		f.html("https://example.com/", `<a href="/feed">feed</a>`)
		f.responses["https://example.com/feed/"] = &FetchResult{
			FinalURL:    "https://example.com/feed/",
			StatusCode:  200,
			ContentType: "application/rss+xml",
			Body:        []byte(`<rss><a href="/hidden">x</a></rss>`),
		}

		spider := NewSpider(f)
		result, err := spider.Crawl(context.Background(), []string{"https://example.com/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Pages) != 1 {
			t.Errorf("expected 1 page, got %d", len(result.Pages))
		}
		if spider.State("https://example.com/feed/") != StateVisitedNonHTML {
			t.Errorf("expected non-HTML state, got %v", spider.State("https://example.com/feed/"))
		}
		if slices.Contains(result.Routes, "https://example.com/hidden/") {
			t.Error("expected links of non-HTML response to be ignored")
		}
	})

	t.Run("redirects are recorded under the final URL once", func(t *testing.T) {
		t.Parallel()

		f := newFakeFetcher()
		f.html("https://example.com/", `<a href="/old">old</a><a href="/new">new</a>`)
		f.responses["https://example.com/old/"] = &FetchResult{
			FinalURL:    "http://EXAMPLE.com/new",
			StatusCode:  200,
			ContentType: "text/html",
			Body:        []byte(`<p>new</p>`),
		}
		f.html("https://example.com/new/", `<p>new</p>`)

		spider := NewSpider(f)
		result, err := spider.Crawl(context.Background(), []string{"https://example.com/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Pages) != 2 {
			t.Fatalf("expected 2 pages, got %d", len(result.Pages))
		}
		if result.Pages[1].URL != "https://example.com/new/" || result.Pages[1].RequestedURL != "https://example.com/old/" {
			t.Errorf("unexpected redirected page %+v", result.Pages[1])
		}
	})

	t.Run("applies ignore and follow patterns", func(t *testing.T) {
		t.Parallel()

		f := newFakeFetcher()
		f.html("https://example.com/", `<a href="/admin/users">admin</a><a href="/docs/a">docs</a><a href="/blog/b">blog</a>`)
		f.html("https://example.com/docs/a/", `<p>docs</p>`)

		spider := NewSpider(f,
			WithIgnorePatterns([]string{"/admin/*"}),
			WithFollowPatterns([]string{"/", "/docs/*"}),
		)
		result, err := spider.Crawl(context.Background(), []string{"https://example.com/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"https://example.com/", "https://example.com/docs/a/"}
		if !slices.Equal(result.Routes, want) {
			t.Errorf("expected routes %v, got %v", want, result.Routes)
		}
	})

	t.Run("derives primary host from first seed", func(t *testing.T) {
		t.Parallel()

		f := newFakeFetcher()
		f.html("https://example.com/", `<a href="https://other.com/">other</a>`)

		spider := NewSpider(f)
		if _, err := spider.Crawl(context.Background(), []string{"https://example.com/", "not a url"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(spider.PrimaryHosts(), []string{"example.com"}) {
			t.Errorf("unexpected hosts %v", spider.PrimaryHosts())
		}
		if len(f.calls) != 1 {
			t.Errorf("expected only the seed to be fetched, got %v", f.calls)
		}
	})

	t.Run("keeps large bodies whole", func(t *testing.T) {
		t.Parallel()

		body := "<html><body><p>" + strings.Repeat("a", 11<<20) + "</p></body></html>"
		f := newFakeFetcher()
		f.html("https://example.com/", body)

		result, err := NewSpider(f).Crawl(context.Background(), []string{"https://example.com/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Pages) != 1 {
			t.Fatalf("expected 1 page, got %d", len(result.Pages))
		}
		page := result.Pages[0]
		if len(page.Raw) != len(body) {
			t.Errorf("expected %d raw bytes, got %d", len(body), len(page.Raw))
		}
		if page.TextChars() != 11<<20 {
			t.Errorf("expected %d text chars, got %d", 11<<20, page.TextChars())
		}
	})

	t.Run("empty seeds terminate immediately", func(t *testing.T) {
		t.Parallel()

		spider := NewSpider(newFakeFetcher())
		result, err := spider.Crawl(context.Background(), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Visited != 0 || len(result.Routes) != 0 {
			t.Errorf("expected empty result, got %+v", result)
		}
	})

	t.Run("returns partial result on cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		spider := NewSpider(newFakeFetcher())
		result, err := spider.Crawl(ctx, []string{"https://example.com/"})
		if err == nil {
			t.Fatal("expected context error")
		}
		if result == nil || result.Visited != 0 {
			t.Errorf("expected empty partial result, got %+v", result)
		}
		if stats := spider.Stats(); stats.URLsQueued != 1 {
			t.Errorf("expected seed to remain queued, got %+v", stats)
		}
	})
}

// TestSpiderWithHTTPServer crawls a local test server end to end.
func TestSpiderWithHTTPServer(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><a href="/about">About</a><a href="/missing">Missing</a></body></html>`)
	})
	mux.HandleFunc("/about/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><h1>About us</h1></body></html>`)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("failed to parse server URL: %v", err)
	}

	// Canonical URLs use https; rewrite them back to the plain HTTP test server.
	fetcher := NewHTTPFetcher(WithHTTPClient(&http.Client{Transport: schemeRewriter{}}))
	spider := NewSpider(fetcher, WithPrimaryHosts([]string{u.Host}))

	result, err := spider.Crawl(context.Background(), []string{server.URL + "/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(result.Pages))
	}
	if result.Pages[1].Text != "About us" {
		t.Errorf("unexpected text %q", result.Pages[1].Text)
	}
	if len(result.Failures) != 1 || result.Failures[0].Reason != string(ReasonHTTPStatus) {
		t.Errorf("unexpected failures %+v", result.Failures)
	}
}

// schemeRewriter sends https requests over plain http.
type schemeRewriter struct{}

func (schemeRewriter) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.URL.Scheme = "http"
	return http.DefaultTransport.RoundTrip(clone)
}

// TestMatchPattern tests glob matching of route paths.
func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/admin/*", "/admin/", true},
		{"/admin/*", "/admin/users/", true},
		{"/admin/*", "/administrator/", false},
		{"*.pdf", "/docs/file.pdf", true},
		{"/api/v?", "/api/v1/", true},
		{"/", "/", true},
		{"/logout*", "/logout-now/", true},
		{"/blog/*", "/docs/", false},
	}

	for _, tt := range tests {
		if got := matchPattern(tt.pattern, tt.path); got != tt.want {
			t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
		}
	}
}
