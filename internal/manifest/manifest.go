package manifest

import (
	"cmp"
	"net/url"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/nao1215/siteharvest/internal/canon"
	"github.com/nao1215/siteharvest/internal/model"
)

// Export directory names, relative to the output directory.
const (
	HARBodiesDir  = "har_bodies"
	HARPagesDir   = "content/har_pages"
	LivePagesDir  = "content/live_pages"
	LiveAssetsDir = "assets/live"
	RoutesDir     = "routes"
	ManifestsDir  = "manifests"
)

// UnknownMIME is the mime_counts key for entries without a mime type.
const UnknownMIME = "unknown"

// Input holds every record produced by the capture phase and the crawl.
type Input struct {
	Captures     []model.CaptureSummary
	Observations []model.Observation
	Bodies       []model.BodyRecord
	Missing      []model.MissingBody
	CaptureTexts []model.TextRecord

	Pages    []*model.Page
	Failures []model.CrawlFailure

	PrimaryHosts []string
	Seeds        []string

	// Routes are the in-scope route URLs discovered by the crawl.
	Routes []string

	// Assets are all asset URLs referenced by crawled pages.
	Assets []string
}

// Manifest is the reduced, sorted view of a run.
type Manifest struct {
	Report model.Report
	Routes model.Routes

	Captures     []model.CaptureSummary
	Bodies       []model.BodyRecord
	Missing      []model.MissingBody
	CaptureTexts []model.TextRecord
	LivePages    []model.LivePage
	Assets       []model.Asset
	AssetSkips   []model.AssetSkip
	Failures     []model.CrawlFailure
}

// Build reduces in into a Manifest. The input slices are not modified.
func Build(in Input) *Manifest {
	hosts := hostSet(in.PrimaryHosts)

	m := &Manifest{
		Captures:     sortedCaptures(in.Captures),
		Bodies:       sortedBodies(in.Bodies),
		Missing:      sortedMissing(in.Missing),
		CaptureTexts: sortedTexts(in.CaptureTexts),
		LivePages:    livePages(in.Pages),
		Failures:     sortedFailures(in.Failures),
	}
	m.Assets, m.AssetSkips = partitionAssets(in.Assets, hosts)
	m.Routes = buildRoutes(hosts, in.Seeds, in.Routes)
	m.Report = m.buildReport(in.Observations)

	return m
}

func (m *Manifest) buildReport(observations []model.Observation) model.Report {
	r := model.Report{
		HARFiles:     make([]string, 0, len(m.Captures)),
		PrimaryHosts: m.Routes.PrimaryHosts,
		MIMECounts:   make(map[string]int),
		StatusCounts: make(map[string]int),
	}

	for _, c := range m.Captures {
		r.HARFiles = append(r.HARFiles, c.HARFile)
		r.HAREntriesTotal += c.Entries
		r.HARPagesTotal += c.Pages
	}

	urls := make(map[string]struct{}, len(observations))
	for _, o := range observations {
		urls[o.URL] = struct{}{}
		mime := o.MIME
		if mime == "" {
			mime = UnknownMIME
		}
		r.MIMECounts[mime]++
		r.StatusCounts[strconv.Itoa(o.Status)]++
	}
	r.HARURLsTotal = len(urls)

	files := make(map[string]struct{}, len(m.Bodies))
	for _, b := range m.Bodies {
		files[b.File] = struct{}{}
	}
	r.HARSavedBodyRecords = len(m.Bodies)
	r.HARSavedBodyFilesUnique = len(files)
	r.HARMissingBodies = len(m.Missing)

	r.LivePagesCrawled = len(m.LivePages)
	r.LiveRoutesFound = len(m.Routes.AllRoutes)
	r.LiveRoutePathsFound = len(m.Routes.AllRoutePaths)
	r.LiveAssetsDiscoveredSameHost = len(m.Assets)
	r.LiveAssetsSkipped = len(m.AssetSkips)
	r.CrawlFailures = len(m.Failures)

	return r
}

// BuildTree turns route paths into a nested segment mapping.
func BuildTree(paths []string) model.RouteTree {
	tree := model.RouteTree{}
	for _, p := range paths {
		tree.Insert(p)
	}
	return tree
}

// LivePageFiles returns the export paths of the HTML and text files of a
// crawled page.
func LivePageFiles(pageURL string) (htmlFile, textFile string) {
	u, err := url.Parse(pageURL)
	if err != nil {
		u = &url.URL{Path: "/"}
	}
	rel := canon.StoragePath(u, ".html")
	htmlFile = path.Join(LivePagesDir, rel)
	textFile = path.Join(LivePagesDir, canon.ReplaceExtension(rel, ".txt"))
	return htmlFile, textFile
}

func buildRoutes(hosts map[string]bool, seeds, discovered []string) model.Routes {
	all := make(map[string]struct{}, len(seeds)+len(discovered))
	seedSet := make(map[string]struct{}, len(seeds))
	for _, s := range seeds {
		all[s] = struct{}{}
		seedSet[s] = struct{}{}
	}
	for _, r := range discovered {
		all[r] = struct{}{}
	}

	allRoutes := sortedKeys(all)
	paths := make(map[string]struct{}, len(allRoutes))
	for _, r := range allRoutes {
		p, err := canon.RoutePathString(r)
		if err != nil {
			continue
		}
		paths[p] = struct{}{}
	}
	allPaths := sortedKeys(paths)

	return model.Routes{
		PrimaryHosts:  sortedKeys(hosts),
		SeedRoutes:    sortedKeys(seedSet),
		AllRoutes:     allRoutes,
		AllRoutePaths: allPaths,
		RouteTree:     BuildTree(allPaths),
	}
}

func partitionAssets(assets []string, hosts map[string]bool) ([]model.Asset, []model.AssetSkip) {
	same := make([]model.Asset, 0)
	skipped := make([]model.AssetSkip, 0)

	unique := make(map[string]struct{}, len(assets))
	for _, a := range assets {
		unique[a] = struct{}{}
	}
	for _, a := range sortedKeys(unique) {
		if hosts[canon.Host(a)] {
			same = append(same, model.Asset{URL: a})
			continue
		}
		skipped = append(skipped, model.AssetSkip{URL: a, Reason: model.AssetSkipExternalHost})
	}
	return same, skipped
}

func livePages(pages []*model.Page) []model.LivePage {
	sorted := slices.Clone(pages)
	sorted = slices.DeleteFunc(sorted, func(p *model.Page) bool { return p == nil })
	slices.SortStableFunc(sorted, func(a, b *model.Page) int {
		return cmp.Or(strings.Compare(a.URL, b.URL), strings.Compare(a.Hash, b.Hash))
	})

	out := make([]model.LivePage, 0, len(sorted))
	seen := make(map[string]bool, len(sorted))
	for _, p := range sorted {
		if seen[p.URL] {
			continue
		}
		seen[p.URL] = true

		htmlFile, textFile := LivePageFiles(p.URL)
		out = append(out, model.LivePage{
			URL:       p.URL,
			HTMLFile:  htmlFile,
			TextFile:  textFile,
			TextChars: p.TextChars(),
			HTML:      p.Raw,
			Text:      p.Text,
		})
	}
	return out
}

func sortedCaptures(in []model.CaptureSummary) []model.CaptureSummary {
	out := slices.Clone(in)
	if out == nil {
		out = make([]model.CaptureSummary, 0)
	}
	for i := range out {
		urls := slices.Clone(out[i].PageURLs)
		if urls == nil {
			urls = make([]string, 0)
		}
		slices.Sort(urls)
		out[i].PageURLs = urls
	}
	slices.SortStableFunc(out, func(a, b model.CaptureSummary) int {
		return cmp.Or(
			strings.Compare(a.HARFile, b.HARFile),
			cmp.Compare(a.Entries, b.Entries),
			cmp.Compare(a.Pages, b.Pages),
		)
	})
	return out
}

func sortedBodies(in []model.BodyRecord) []model.BodyRecord {
	out := slices.Clone(in)
	if out == nil {
		out = make([]model.BodyRecord, 0)
	}
	slices.SortStableFunc(out, func(a, b model.BodyRecord) int {
		return cmp.Or(
			strings.Compare(a.URL, b.URL),
			strings.Compare(a.HARFile, b.HARFile),
			cmp.Compare(a.Status, b.Status),
			strings.Compare(a.MIME, b.MIME),
			cmp.Compare(a.SizeBytes, b.SizeBytes),
			strings.Compare(a.File, b.File),
		)
	})
	return out
}

func sortedMissing(in []model.MissingBody) []model.MissingBody {
	out := slices.Clone(in)
	if out == nil {
		out = make([]model.MissingBody, 0)
	}
	slices.SortStableFunc(out, func(a, b model.MissingBody) int {
		return cmp.Or(
			strings.Compare(a.URL, b.URL),
			strings.Compare(a.HARFile, b.HARFile),
			cmp.Compare(a.Status, b.Status),
			strings.Compare(a.MIME, b.MIME),
		)
	})
	return out
}

func sortedTexts(in []model.TextRecord) []model.TextRecord {
	out := slices.Clone(in)
	if out == nil {
		out = make([]model.TextRecord, 0)
	}
	slices.SortStableFunc(out, func(a, b model.TextRecord) int {
		return cmp.Or(
			strings.Compare(a.URL, b.URL),
			strings.Compare(a.TextFile, b.TextFile),
			cmp.Compare(a.TextChars, b.TextChars),
			strings.Compare(a.Text, b.Text),
		)
	})
	return out
}

func sortedFailures(in []model.CrawlFailure) []model.CrawlFailure {
	out := slices.Clone(in)
	if out == nil {
		out = make([]model.CrawlFailure, 0)
	}
	slices.SortStableFunc(out, func(a, b model.CrawlFailure) int {
		return cmp.Or(strings.Compare(a.URL, b.URL), strings.Compare(a.Reason, b.Reason))
	})
	return slices.Compact(out)
}

func hostSet(hosts []string) map[string]bool {
	set := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		if h != "" {
			set[strings.ToLower(h)] = true
		}
	}
	return set
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
