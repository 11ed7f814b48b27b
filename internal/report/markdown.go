package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/siteharvest/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.Report) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeCounts(md, report)
	w.writeHistogram(md, "MIME Types", "MIME type", report.MIMECounts)
	w.writeHistogram(md, "Status Codes", "Status", report.StatusCounts)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.Report) {
	md.H1("siteharvest Report")
	md.PlainText("")

	files := make([]string, 0, len(report.HARFiles))
	for _, f := range report.HARFiles {
		files = append(files, "`"+f+"`")
	}
	hosts := make([]string, 0, len(report.PrimaryHosts))
	for _, h := range report.PrimaryHosts {
		hosts = append(hosts, "`"+h+"`")
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Capture files", joinOrNone(files)},
			{"Primary hosts", joinOrNone(hosts)},
		},
	})
	md.PlainText("")

	switch {
	case report.HasFailures():
		md.Warningf("%d URL(s) could not be crawled. See `manifests/crawl_failures.json`.", report.CrawlFailures)
	case report.HARMissingBodies > 0:
		md.Note(strconv.Itoa(report.HARMissingBodies) + " capture entries were recorded without a body.")
	default:
		md.Tip("All captured bodies were recovered and every crawled URL was fetched.")
	}
	md.PlainText("")
}

// writeCounts writes the capture and crawl counts.
func (w *MarkdownWriter) writeCounts(md *markdown.Markdown, report *model.Report) {
	md.H2("Captures")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Entries", strconv.Itoa(report.HAREntriesTotal)},
			{"Pages", strconv.Itoa(report.HARPagesTotal)},
			{"Unique URLs", strconv.Itoa(report.HARURLsTotal)},
			{"Bodies saved", strconv.Itoa(report.HARSavedBodyRecords)},
			{"Unique body files", strconv.Itoa(report.HARSavedBodyFilesUnique)},
			{"Missing bodies", strconv.Itoa(report.HARMissingBodies)},
		},
	})
	md.PlainText("")

	md.H2("Live Crawl")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Pages crawled", strconv.Itoa(report.LivePagesCrawled)},
			{"Routes found", strconv.Itoa(report.LiveRoutesFound)},
			{"Route paths found", strconv.Itoa(report.LiveRoutePathsFound)},
			{"Same-host assets", strconv.Itoa(report.LiveAssetsDiscoveredSameHost)},
			{"Skipped assets", strconv.Itoa(report.LiveAssetsSkipped)},
			{"Crawl failures", strconv.Itoa(report.CrawlFailures)},
		},
	})
	md.PlainText("")
}

// writeHistogram writes a histogram table followed by a mermaid pie chart.
func (w *MarkdownWriter) writeHistogram(md *markdown.Markdown, title, column string, counts map[string]int) {
	md.H2(title)
	md.PlainText("")

	if len(counts) == 0 {
		md.PlainText("None recorded.")
		md.PlainText("")
		return
	}

	rows := histogramRows(counts)
	tableRows := make([][]string, 0, len(rows))
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle(title),
		piechart.WithShowData(true),
	)
	for _, row := range rows {
		tableRows = append(tableRows, []string{row[0], row[1]})
		chart.LabelAndIntValue(row[0], uint64(counts[row[0]])) //nolint:gosec // counts are never negative
	}

	md.Table(markdown.TableSet{
		Header: []string{column, "Count"},
		Rows:   tableRows,
	})
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}
