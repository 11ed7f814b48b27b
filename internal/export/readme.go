package export

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"

	"github.com/nao1215/siteharvest/internal/model"
)

// WriteReadme renders the README of an export directory.
func WriteReadme(w io.Writer, report *model.Report, generated time.Time) error {
	md := markdown.NewMarkdown(w)

	md.H1("Raw Site Extraction")
	md.PlainText("")
	md.PlainTextf("Generated: %s", generated.UTC().Format(time.RFC3339))
	md.PlainText("")

	files := make([]string, 0, len(report.HARFiles))
	for _, f := range report.HARFiles {
		files = append(files, "`"+f+"`")
	}
	md.PlainTextf(
		"This folder contains a structured extraction of site routes, content, and assets based on local HAR files (%s) "+
			"plus a live crawl seeded from the pages found in them.",
		strings.Join(files, ", "),
	)
	md.PlainText("")

	md.H2("What was extracted")
	md.PlainText("")
	md.BulletList(
		"HAR files analyzed: "+strconv.Itoa(len(report.HARFiles)),
		"HAR entries: "+strconv.Itoa(report.HAREntriesTotal),
		"HAR body records saved: "+strconv.Itoa(report.HARSavedBodyRecords),
		"Unique HAR body files written to disk: "+strconv.Itoa(report.HARSavedBodyFilesUnique),
		"HAR entries missing a body: "+strconv.Itoa(report.HARMissingBodies),
		"Live HTML pages crawled: "+strconv.Itoa(report.LivePagesCrawled),
		"Discovered routes (URL form): "+strconv.Itoa(report.LiveRoutesFound),
		"Discovered route paths (deduplicated): "+strconv.Itoa(report.LiveRoutePathsFound),
		"Live asset URLs on primary hosts: "+strconv.Itoa(report.LiveAssetsDiscoveredSameHost),
		"Live assets skipped: "+strconv.Itoa(report.LiveAssetsSkipped),
		"Crawl failures: "+strconv.Itoa(report.CrawlFailures),
	)
	md.PlainText("")

	md.H2("Directory layout")
	md.PlainText("")
	md.BulletList(
		"`routes/routes.json` and `routes/routes.txt`: canonical route list and tree (`routes.txt` holds paths only).",
		"`content/live_pages/`: fetched HTML pages and extracted plain text (`.txt`) per route.",
		"`content/har_pages/`: text extracted from HTML bodies already present in the HAR files.",
		"`content/all_live_page_text.md`: aggregated text of all crawled pages.",
		"`assets/live/`: target directory of `siteharvest assets`.",
		"`har_bodies/`: raw response bodies recovered from HAR payloads.",
		"`manifests/`: machine-readable manifests and the summary report.",
	)
	md.PlainText("")

	md.H2("Next steps")
	md.PlainText("")
	md.BulletList(
		"Use `routes/routes.txt` to scaffold route-level page files.",
		"Use `content/all_live_page_text.md` and `content/live_pages/**/*.txt` to migrate text.",
		"Use `har_bodies/` as the primary local asset source.",
		"Run `siteharvest assets` to fetch the candidates listed in `manifests/live_assets.json`.",
		"Review `manifests/missing_har_bodies.json` for requests recorded without a body.",
	)

	return md.Build()
}
