package pipeline

import (
	"time"

	"github.com/nao1215/siteharvest/internal/capture"
	"github.com/nao1215/siteharvest/internal/crawler"
	"github.com/nao1215/siteharvest/internal/manifest"
	"github.com/nao1215/siteharvest/internal/model"
)

// Run accumulates the state of one extraction as it moves through the
// pipeline. Each step fills in its own fields and reads those of earlier
// steps.
type Run struct {
	// CapturePaths are the capture files to decode, in the order given.
	CapturePaths []string

	StartedAt  time.Time
	FinishedAt time.Time

	// Files are the decoded capture files, in CapturePaths order.
	Files []*capture.File

	// Capture holds the records derived from Files.
	Capture *CaptureResult

	// Crawl is the live crawl result. It is empty when crawling is disabled.
	Crawl *crawler.CrawlResult

	// Manifest is the reduced, sorted view of the run.
	Manifest *manifest.Manifest

	// RunID is the run history ID, or 0 when the run was not stored.
	RunID int64

	// PerformedSteps are the names of the steps executed so far.
	PerformedSteps []string

	// Error is the last step error.
	Error error

	// Canceled is set when the run context was canceled between steps.
	Canceled bool
}

// NewRun creates a Run for the given capture files.
func NewRun(paths []string, started time.Time) *Run {
	return &Run{
		CapturePaths:   paths,
		StartedAt:      started,
		PerformedSteps: make([]string, 0),
	}
}

// Report returns the run report, or nil before aggregation.
func (r *Run) Report() *model.Report {
	if r.Manifest == nil {
		return nil
	}
	return &r.Manifest.Report
}
