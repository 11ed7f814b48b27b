package model

// Report is the summary of a run. It is a pure reduction over the records
// produced by the capture phase and the crawl.
//
// The report carries no timestamp, so two runs over the same inputs and the
// same crawl responses serialize to identical bytes.
type Report struct {
	// HARFiles are the base names of the processed capture files, sorted.
	HARFiles []string `json:"har_files"`

	HAREntriesTotal int `json:"har_entries_total"`
	HARPagesTotal   int `json:"har_pages_total"`

	PrimaryHosts []string `json:"primary_hosts"`

	// HARURLsTotal is the number of distinct HTTP(S) URLs seen in captures.
	HARURLsTotal int `json:"har_urls_total"`

	HARSavedBodyRecords     int `json:"har_saved_body_records"`
	HARSavedBodyFilesUnique int `json:"har_saved_body_files_unique"`
	HARMissingBodies        int `json:"har_missing_bodies"`

	LivePagesCrawled             int `json:"live_pages_crawled"`
	LiveRoutesFound              int `json:"live_routes_found"`
	LiveRoutePathsFound          int `json:"live_route_paths_found"`
	LiveAssetsDiscoveredSameHost int `json:"live_assets_discovered_same_host"`
	LiveAssetsSkipped            int `json:"live_assets_skipped"`

	CrawlFailures int `json:"crawl_failures"`

	// MIMECounts counts capture entries by primary mime type. Entries
	// without a mime type are counted as "unknown".
	MIMECounts map[string]int `json:"mime_counts"`

	// StatusCounts counts capture entries by status code (decimal string).
	StatusCounts map[string]int `json:"status_counts"`
}

// HasFailures reports whether any crawl fetch failed.
func (r *Report) HasFailures() bool {
	return r.CrawlFailures > 0
}
