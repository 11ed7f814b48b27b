package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/nao1215/siteharvest/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with clear section
// formatting. Counts that need attention are colored unless color is
// disabled or the process output is not a terminal.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether empty histogram sections are shown.
	showEmpty bool

	// outputDir is printed in the footer when set.
	outputDir string

	good *color.Color
	warn *color.Color
	bad  *color.Color
	bold *color.Color
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithOutputDir sets the export directory shown in the footer.
func WithOutputDir(dir string) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.outputDir = dir
	}
}

// WithColor forces color on or off.
func WithColor(enabled bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		for _, c := range []*color.Color{w.good, w.warn, w.bad, w.bold} {
			if enabled {
				c.EnableColor()
			} else {
				c.DisableColor()
			}
		}
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		good:       color.New(color.FgGreen),
		warn:       color.New(color.FgYellow),
		bad:        color.New(color.FgRed),
		bold:       color.New(color.Bold),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.Report) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeCaptures(&sb, report)
	w.writeCrawl(&sb, report)
	w.writeHistogram(&sb, "MIME TYPES", report.MIMECounts)
	w.writeHistogram(&sb, "STATUS CODES", report.StatusCounts)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(w.bold.Sprint(title))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeHeader writes the report header.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.Report) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        SITEHARVEST REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Capture files:  %s\n", joinOrNone(report.HARFiles))
	fmt.Fprintf(sb, "Primary hosts:  %s\n", joinOrNone(report.PrimaryHosts))

	if report.HasFailures() {
		fmt.Fprintf(sb, "Status:         %s\n", w.warn.Sprintf("Complete with %d crawl failure(s)", report.CrawlFailures))
	} else {
		fmt.Fprintf(sb, "Status:         %s\n", w.good.Sprint("Complete"))
	}
	sb.WriteString("\n")
}

// writeCaptures writes the capture section.
func (w *SimpleWriter) writeCaptures(sb *strings.Builder, report *model.Report) {
	w.section(sb, "CAPTURES")

	fmt.Fprintf(sb, "  Entries:              %d\n", report.HAREntriesTotal)
	fmt.Fprintf(sb, "  Pages:                %d\n", report.HARPagesTotal)
	fmt.Fprintf(sb, "  Unique URLs:          %d\n", report.HARURLsTotal)
	fmt.Fprintf(sb, "  Bodies saved:         %d\n", report.HARSavedBodyRecords)
	fmt.Fprintf(sb, "  Unique body files:    %d\n", report.HARSavedBodyFilesUnique)

	missing := fmt.Sprint(report.HARMissingBodies)
	if report.HARMissingBodies > 0 {
		missing = w.warn.Sprint(missing)
	}
	fmt.Fprintf(sb, "  Missing bodies:       %s\n", missing)
	sb.WriteString("\n")
}

// writeCrawl writes the crawl section.
func (w *SimpleWriter) writeCrawl(sb *strings.Builder, report *model.Report) {
	w.section(sb, "LIVE CRAWL")

	fmt.Fprintf(sb, "  Pages crawled:        %d\n", report.LivePagesCrawled)
	fmt.Fprintf(sb, "  Routes found:         %d\n", report.LiveRoutesFound)
	fmt.Fprintf(sb, "  Route paths found:    %d\n", report.LiveRoutePathsFound)
	fmt.Fprintf(sb, "  Same-host assets:     %d\n", report.LiveAssetsDiscoveredSameHost)
	fmt.Fprintf(sb, "  Skipped assets:       %d\n", report.LiveAssetsSkipped)

	failures := fmt.Sprint(report.CrawlFailures)
	if report.HasFailures() {
		failures = w.bad.Sprint(failures)
	}
	fmt.Fprintf(sb, "  Crawl failures:       %s\n", failures)
	sb.WriteString("\n")
}

// writeHistogram writes a sorted key/count section.
func (w *SimpleWriter) writeHistogram(sb *strings.Builder, title string, counts map[string]int) {
	if len(counts) == 0 && !w.showEmpty {
		return
	}

	w.section(sb, title)
	if len(counts) == 0 {
		sb.WriteString("  None\n\n")
		return
	}
	for _, row := range histogramRows(counts) {
		fmt.Fprintf(sb, "  %-30s %s\n", row[0], row[1])
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	if w.outputDir != "" {
		fmt.Fprintf(sb, "Export written to: %s\n", w.outputDir)
	}
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
