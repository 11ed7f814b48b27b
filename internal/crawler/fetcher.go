package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/nao1215/siteharvest/internal/canon"
)

// FailureReason is the reason code recorded for a failed fetch.
type FailureReason string

const (
	// ReasonFetchFailed covers connection errors and any other transport failure.
	ReasonFetchFailed FailureReason = "fetch_failed"

	// ReasonTimeout means the per-request timeout elapsed.
	ReasonTimeout FailureReason = "timeout"

	// ReasonHTTPStatus means the server answered with a 4xx or 5xx status.
	ReasonHTTPStatus FailureReason = "http_status"

	// ReasonRobotsDisallowed means robots.txt forbids the URL.
	ReasonRobotsDisallowed FailureReason = "robots_disallowed"

	// ReasonBodyTooLarge means the response exceeded the body size limit.
	ReasonBodyTooLarge FailureReason = "body_too_large"
)

// Default fetcher settings.
const (
	DefaultFetchTimeout = 25 * time.Second
	DefaultUserAgent    = "Mozilla/5.0 (compatible; siteharvest/1.0)"
	DefaultMaxBodySize  = 10 * 1024 * 1024
)

// FetchResult is a successful fetch.
type FetchResult struct {
	// URL is the requested URL.
	URL string

	// FinalURL is the URL after redirects.
	FinalURL string

	// StatusCode is the HTTP response status code.
	StatusCode int

	// ContentType is the Content-Type response header.
	ContentType string

	// Body is the response body. HTML bodies are converted to UTF-8.
	Body []byte

	// Elapsed is the time the request took.
	Elapsed time.Duration
}

// FetchError describes a failed fetch. Fetchers return it instead of
// panicking or leaking transport-specific errors into the crawl loop.
type FetchError struct {
	URL        string
	Reason     FailureReason
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s (status %d)", e.URL, e.Reason, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// ReasonOf returns the failure reason carried by err, or ReasonFetchFailed
// when err is not a *FetchError.
func ReasonOf(err error) FailureReason {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return ReasonFetchFailed
}

// Fetcher retrieves a single URL. Implementations must return a
// *FetchError for every failure.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*FetchResult, error)
}

// HTTPFetcher is the net/http implementation of Fetcher.
type HTTPFetcher struct {
	// client performs the requests. Redirects are followed.
	client *http.Client

	// timeout bounds each request, including reading the body.
	timeout time.Duration

	// userAgent is the User-Agent header to use.
	userAgent string

	// headers are extra request headers.
	headers map[string]string

	// maxBodySize limits the size of response bodies to read.
	maxBodySize int64

	// limiter spaces out requests. Nil means no delay.
	limiter *rate.Limiter

	// respectRobots enables robots.txt checks.
	respectRobots bool

	// robots caches parsed robots.txt files per scheme and host.
	robots map[string]*robotstxt.RobotsData

	// robotsMutex protects robots.
	robotsMutex sync.Mutex

	logger *slog.Logger
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *HTTPFetcher) {
		f.client = client
	}
}

// WithFetchTimeout sets the per-request timeout.
func WithFetchTimeout(d time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		f.timeout = d
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) {
		f.userAgent = ua
	}
}

// WithHeaders sets extra request headers.
func WithHeaders(headers map[string]string) FetcherOption {
	return func(f *HTTPFetcher) {
		f.headers = headers
	}
}

// WithMaxBodySize sets the maximum response body size.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *HTTPFetcher) {
		f.maxBodySize = size
	}
}

// WithDelay sets the minimum delay between requests. Zero disables it.
func WithDelay(d time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		if d <= 0 {
			f.limiter = nil
			return
		}
		f.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithRespectRobots enables or disables robots.txt checks.
func WithRespectRobots(respect bool) FetcherOption {
	return func(f *HTTPFetcher) {
		f.respectRobots = respect
	}
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(f *HTTPFetcher) {
		f.logger = logger
	}
}

// NewHTTPFetcher creates an HTTPFetcher with default settings.
func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:      &http.Client{},
		timeout:     DefaultFetchTimeout,
		userAgent:   DefaultUserAgent,
		headers:     make(map[string]string),
		maxBodySize: DefaultMaxBodySize,
		robots:      make(map[string]*robotstxt.RobotsData),
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch retrieves rawURL. It never returns a nil result together with a
// nil error.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, &FetchError{URL: rawURL, Reason: ReasonFetchFailed, Err: err}
		}
	}

	if f.respectRobots && !f.allowedByRobots(ctx, rawURL) {
		return nil, &FetchError{URL: rawURL, Reason: ReasonRobotsDisallowed}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Reason: ReasonFetchFailed, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "*/*")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Reason: classifyError(ctx, err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &FetchError{URL: rawURL, Reason: ReasonHTTPStatus, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, &FetchError{URL: rawURL, Reason: classifyError(ctx, err), Err: err}
	}
	if int64(len(body)) > f.maxBodySize {
		return nil, &FetchError{URL: rawURL, Reason: ReasonBodyTooLarge}
	}

	contentType := resp.Header.Get("Content-Type")
	if canon.PrimaryMIME(contentType) == "text/html" {
		body = toUTF8(body, contentType)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	f.logger.Debug("fetched page",
		"url", rawURL,
		"final_url", finalURL,
		"status", resp.StatusCode,
		"bytes", len(body),
	)

	return &FetchResult{
		URL:         rawURL,
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        body,
		Elapsed:     time.Since(start),
	}, nil
}

// classifyError maps a transport error to a failure reason.
func classifyError(ctx context.Context, err error) FailureReason {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	return ReasonFetchFailed
}

// toUTF8 converts an HTML body to UTF-8 using the declared or sniffed
// charset. The body is returned unchanged if conversion fails.
func toUTF8(body []byte, contentType string) []byte {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return body
	}
	converted, err := io.ReadAll(r)
	if err != nil {
		return body
	}
	return converted
}

// allowedByRobots reports whether robots.txt permits fetching rawURL.
// Missing or unreadable robots.txt files allow everything.
func (f *HTTPFetcher) allowedByRobots(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}

	robots := f.robotsFor(ctx, u)
	if robots == nil {
		return true
	}
	return robots.TestAgent(u.EscapedPath(), f.userAgent)
}

// robotsFor returns the cached robots.txt of u's origin, fetching it on
// first use.
func (f *HTTPFetcher) robotsFor(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	origin := u.Scheme + "://" + u.Host

	f.robotsMutex.Lock()
	cached, ok := f.robots[origin]
	f.robotsMutex.Unlock()
	if ok {
		return cached
	}

	data := f.fetchRobots(ctx, origin)

	f.robotsMutex.Lock()
	f.robots[origin] = data
	f.robotsMutex.Unlock()
	return data
}

func (f *HTTPFetcher) fetchRobots(ctx context.Context, origin string) *robotstxt.RobotsData {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Debug("robots.txt unavailable", "origin", origin, "error", err)
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		f.logger.Debug("robots.txt unreadable", "origin", origin, "error", err)
		return nil
	}
	return data
}
