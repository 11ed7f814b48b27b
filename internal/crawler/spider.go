package crawler

import (
	"context"
	"log/slog"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/nao1215/siteharvest/internal/canon"
	"github.com/nao1215/siteharvest/internal/model"
)

// DefaultMaxPages is the default page budget of a crawl.
const DefaultMaxPages = 60

// Observer is notified about every dequeued URL. It is used for metrics.
type Observer interface {
	// ObserveVisit is called once per dequeued URL with its terminal state.
	// reason is empty unless state is StateVisitedFailed.
	ObserveVisit(rawURL string, state VisitState, reason FailureReason, elapsed time.Duration)

	// ObserveDiscovery is called with the number of in-scope links and
	// assets found on a page.
	ObserveDiscovery(routes, assets int)
}

// Spider performs a bounded breadth-first crawl of the primary hosts.
//
// The crawl visits at most maxPages URLs. Every URL is dequeued at most
// once; failures are recorded and never stop the crawl. All crawl state
// belongs to the Spider value, so separate Spiders never share anything.
type Spider struct {
	// fetcher retrieves pages.
	fetcher Fetcher

	// maxPages limits the total number of URLs dequeued.
	maxPages int

	// primaryHosts are the lowercased hosts that are in scope.
	primaryHosts map[string]bool

	// ignorePatterns are URL path patterns to skip during crawling.
	// Patterns use glob syntax (e.g., "/admin/*", "*.pdf").
	ignorePatterns []string

	// followPatterns are URL path patterns to follow during crawling.
	// If set, only URLs matching these patterns are crawled.
	// Empty means all URLs are allowed (subject to ignorePatterns).
	followPatterns []string

	observer Observer
	logger   *slog.Logger

	// frontier is the state of the current or last crawl.
	frontier *Frontier
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxPages sets the page budget.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = maxPages
	}
}

// WithPrimaryHosts sets the hosts that are in scope. Host comparison is
// case-insensitive.
func WithPrimaryHosts(hosts []string) SpiderOption {
	return func(s *Spider) {
		s.primaryHosts = make(map[string]bool, len(hosts))
		for _, h := range hosts {
			s.primaryHosts[strings.ToLower(h)] = true
		}
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns to follow during crawling.
// If set, only URLs matching at least one pattern are crawled.
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithObserver sets an observer notified about each visit.
func WithObserver(o Observer) SpiderOption {
	return func(s *Spider) {
		s.observer = o
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// NewSpider creates a new Spider that retrieves pages with fetcher.
func NewSpider(fetcher Fetcher, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:      fetcher,
		maxPages:     DefaultMaxPages,
		primaryHosts: make(map[string]bool),
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}
	s.frontier = NewFrontier(s.maxPages)

	return s
}

// CrawlResult is the outcome of a crawl.
type CrawlResult struct {
	// Pages are the emitted documents in visit order, one per canonical URL.
	Pages []*model.Page

	// Failures are the failed fetches in visit order.
	Failures []model.CrawlFailure

	// Routes are all canonical in-scope route URLs known to the crawl,
	// seeds included, sorted. URLs left in the queue when the budget ran
	// out are included.
	Routes []string

	// Assets are all asset URLs referenced by crawled pages, sorted.
	Assets []string

	// Abandoned are the URLs still pending when the crawl stopped.
	Abandoned []string

	// Visited is the number of dequeued URLs.
	Visited int
}

// Crawl visits the seeds and every in-scope route reachable from them,
// breadth first, until the queue is empty or the page budget is spent.
//
// Seeds are canonicalized; seeds that do not parse are dropped. If the
// Spider has no primary hosts, the host of the first seed is used.
//
// The returned error is non-nil only when ctx is canceled. The result is
// valid in that case too and holds everything crawled so far.
func (s *Spider) Crawl(ctx context.Context, seeds []string) (*CrawlResult, error) {
	s.Reset()

	routes := make(map[string]struct{})
	assets := make(map[string]struct{})
	emitted := make(map[string]bool)
	result := &CrawlResult{
		Pages:    make([]*model.Page, 0),
		Failures: make([]model.CrawlFailure, 0),
	}

	for _, seed := range seeds {
		normalized, err := canon.NormalizeString(seed)
		if err != nil {
			s.logger.Warn("skipping invalid seed", "url", seed, "error", err)
			continue
		}
		if len(s.primaryHosts) == 0 {
			s.primaryHosts[canon.Host(normalized)] = true
		}
		routes[normalized] = struct{}{}
		s.frontier.Offer(normalized)
	}

	var crawlErr error
	for {
		if err := ctx.Err(); err != nil {
			crawlErr = err
			break
		}

		current, ok := s.frontier.Next()
		if !ok {
			break
		}

		state, reason, elapsed := s.visit(ctx, current, result, routes, assets, emitted)
		s.frontier.Complete(current, state)
		if s.observer != nil {
			s.observer.ObserveVisit(current, state, reason, elapsed)
		}
	}

	result.Routes = sortedKeys(routes)
	result.Assets = sortedKeys(assets)
	result.Abandoned = s.frontier.Pending()
	result.Visited = s.frontier.Visited()

	s.logger.Info("crawl finished",
		"visited", result.Visited,
		"pages", len(result.Pages),
		"failures", len(result.Failures),
		"abandoned", len(result.Abandoned),
	)

	return result, crawlErr
}

// visit fetches and processes a single dequeued URL.
func (s *Spider) visit(
	ctx context.Context,
	current string,
	result *CrawlResult,
	routes, assets map[string]struct{},
	emitted map[string]bool,
) (VisitState, FailureReason, time.Duration) {
	start := time.Now()

	fetched, err := s.fetcher.Fetch(ctx, current)
	if err != nil || fetched == nil {
		reason := ReasonOf(err)
		result.Failures = append(result.Failures, model.CrawlFailure{URL: current, Reason: string(reason)})
		s.logger.Debug("fetch failed", "url", current, "reason", reason, "error", err)
		return StateVisitedFailed, reason, time.Since(start)
	}

	final := current
	if fetched.FinalURL != "" {
		if n, err := canon.NormalizeString(fetched.FinalURL); err == nil {
			final = n
		}
	}

	if canon.PrimaryMIME(fetched.ContentType) != "text/html" {
		s.logger.Debug("skipping non-HTML response", "url", current, "content_type", fetched.ContentType)
		return StateVisitedNonHTML, "", time.Since(start)
	}

	if emitted[final] {
		s.logger.Debug("document already crawled", "url", current, "final_url", final)
		return StateVisitedSuccess, "", time.Since(start)
	}
	emitted[final] = true

	parsed, err := Extract(final, fetched.Body)
	if err != nil {
		s.logger.Debug("partial extraction", "url", final, "error", err)
	}

	page := &model.Page{
		URL:         final,
		StatusCode:  fetched.StatusCode,
		ContentType: fetched.ContentType,
		Title:       parsed.Title,
		Text:        parsed.Text,
		Links:       parsed.Links,
		Assets:      parsed.Assets,
		Raw:         fetched.Body,
	}
	if final != current {
		page.RequestedURL = current
	}
	page.ComputeHash()
	result.Pages = append(result.Pages, page)

	inScope := 0
	for _, link := range parsed.Links {
		if !s.inScope(link) {
			continue
		}
		inScope++
		routes[link] = struct{}{}
		s.frontier.Offer(link)
	}
	for _, a := range parsed.Assets {
		assets[a] = struct{}{}
	}
	if s.observer != nil {
		s.observer.ObserveDiscovery(inScope, len(parsed.Assets))
	}

	return StateVisitedSuccess, "", time.Since(start)
}

// inScope reports whether a canonical link is a crawlable route: its host
// is primary, its extension is not a static asset extension and it passes
// the ignore/follow patterns.
func (s *Spider) inScope(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	if !s.primaryHosts[strings.ToLower(u.Host)] {
		return false
	}
	if canon.IsSkippedRouteExtension(u.Path) {
		return false
	}
	return s.shouldCrawl(u.Path)
}

// Reset clears the spider's state, allowing it to be reused.
func (s *Spider) Reset() {
	s.frontier = NewFrontier(s.maxPages)
}

// State returns the visit state of a canonical URL in the current crawl.
func (s *Spider) State(u string) VisitState {
	return s.frontier.State(u)
}

// PrimaryHosts returns the hosts in scope, sorted.
func (s *Spider) PrimaryHosts() []string {
	hosts := make([]string, 0, len(s.primaryHosts))
	for h := range s.primaryHosts {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts
}

// Stats returns current crawl statistics.
func (s *Spider) Stats() SpiderStats {
	return SpiderStats{
		PagesVisited: s.frontier.Visited(),
		URLsQueued:   s.frontier.Len(),
	}
}

// SpiderStats contains crawl statistics.
type SpiderStats struct {
	// PagesVisited is the number of URLs dequeued so far.
	PagesVisited int

	// URLsQueued is the number of URLs still pending.
	URLsQueued int
}

// shouldCrawl checks if a path should be crawled based on ignore/follow patterns.
//
// Logic:
//  1. If the path matches any ignorePattern, skip it (return false)
//  2. If followPatterns is set and the path matches none, skip it (return false)
//  3. Otherwise, crawl it (return true)
func (s *Spider) shouldCrawl(path string) bool {
	if path == "" {
		path = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(s.followPatterns) > 0 {
		for _, pattern := range s.followPatterns {
			if matchPattern(pattern, path) {
				return true
			}
		}
		return false
	}

	return true
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard", "/admin/users/"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		ext := strings.TrimPrefix(pattern, "*")
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	// Canonical route paths end in "/", so match the pattern against the
	// path with and without it.
	trimmed := strings.TrimSuffix(path, "/")
	for _, candidate := range []string{path, trimmed} {
		if matched, err := filepath.Match(pattern, candidate); err == nil && matched {
			return true
		}
	}

	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		filename := filepath.Base(trimmed)
		if matched, err := filepath.Match(pattern, filename); err == nil && matched {
			return true
		}
	}

	return false
}
