package model

// CaptureSummary describes one capture file.
type CaptureSummary struct {
	// HARFile is the base name of the capture file.
	HARFile string `json:"har_file"`

	// Entries is the number of recorded entries.
	Entries int `json:"entries"`

	// Pages is the number of recorded pages.
	Pages int `json:"pages"`

	// PageURLs are the page titles that are URLs, sorted.
	PageURLs []string `json:"page_urls"`
}

// Observation is a single HTTP(S) entry seen in a capture file.
// Observations feed the mime and status counts of the report.
type Observation struct {
	URL    string `json:"url"`
	Status int    `json:"status"`
	MIME   string `json:"mime"`
}

// BodyRecord describes a response body recovered from a capture file.
type BodyRecord struct {
	HARFile   string `json:"har_file"`
	URL       string `json:"url"`
	Status    int    `json:"status"`
	MIME      string `json:"mime"`
	SizeBytes int    `json:"size_bytes"`

	// File is the storage path relative to the output directory.
	File string `json:"file"`

	// Payload is the decoded body. It is written to File by the exporter.
	Payload []byte `json:"-"`
}

// MissingBody describes a capture entry whose body was not recorded or
// could not be decoded.
type MissingBody struct {
	HARFile string `json:"har_file"`
	URL     string `json:"url"`
	Status  int    `json:"status"`
	MIME    string `json:"mime"`
}

// TextRecord describes visible text extracted from an HTML body stored in
// a capture file.
type TextRecord struct {
	URL       string `json:"url"`
	TextFile  string `json:"text_file"`
	TextChars int    `json:"text_chars"`

	// Text is the extracted text. It is written to TextFile by the exporter.
	Text string `json:"-"`
}

// LivePage describes a crawled document in the export.
type LivePage struct {
	URL       string `json:"url"`
	HTMLFile  string `json:"html_file"`
	TextFile  string `json:"text_file"`
	TextChars int    `json:"text_chars"`

	// HTML and Text are written to HTMLFile and TextFile by the exporter.
	HTML []byte `json:"-"`
	Text string `json:"-"`
}

// CrawlFailure records a URL that could not be fetched.
type CrawlFailure struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// Asset is a same-host asset discovered during the crawl.
type Asset struct {
	URL string `json:"url"`
}

// AssetSkip is an asset excluded from the export, with the reason.
type AssetSkip struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// AssetSkipExternalHost is the reason recorded for assets on hosts outside
// the primary host set.
const AssetSkipExternalHost = "external_host"
