package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultMaxPages is the page budget of the live crawl. Sites with large
	// route inventories need this raised via --max-pages.
	DefaultMaxPages = 60

	// DefaultTimeout is the per-request timeout of the live crawl.
	DefaultTimeout = 25 * time.Second

	// DefaultCrawlDelay is the delay between requests during crawling.
	// Zero means requests are issued back to back.
	DefaultCrawlDelay = time.Duration(0)

	// DefaultUserAgent identifies siteharvest in HTTP requests.
	DefaultUserAgent = "Mozilla/5.0 (compatible; siteharvest/1.0)"

	// DefaultMaxBodySize limits the response body size read per request.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultOutputDir is the export directory relative to the working directory.
	DefaultOutputDir = "raw"

	// DefaultCaptureGlob selects capture files when none are given explicitly.
	DefaultCaptureGlob = "*.har"

	// DefaultConcurrency is the number of capture files decoded in parallel.
	DefaultConcurrency = 4

	// DefaultAssetLimit caps the number of asset candidates the assets
	// command considers.
	DefaultAssetLimit = 120

	// DefaultAssetConcurrency keeps asset downloads sequential.
	DefaultAssetConcurrency = 1

	// AppName is the application name used for XDG directory paths.
	AppName = "siteharvest"
)

// Config holds all configuration options for siteharvest.
// It is populated from CLI flags (and the optional config file) and passed
// through the application explicitly rather than kept in global state.
type Config struct {
	// Captures is the list of HAR capture files to decode.
	Captures []string

	// OutputDir is the export directory. Existing files are overwritten.
	OutputDir string

	// MaxPages is the page budget of the live crawl.
	MaxPages int

	// Timeout is the per-request timeout of the live crawl.
	Timeout time.Duration

	// CrawlDelay is the delay between HTTP requests during crawling.
	CrawlDelay time.Duration

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// Headers are extra HTTP headers sent with every crawl request.
	Headers map[string]string

	// MaxBodySize is the maximum response body size in bytes to read.
	// Set to 0 to use the default.
	MaxBodySize int64

	// IgnorePatterns are glob patterns of URL paths that are never crawled.
	IgnorePatterns []string

	// FollowPatterns, when set, restrict the crawl to matching URL paths.
	FollowPatterns []string

	// Proxy is the host:port of a SOCKS5 proxy all crawl and asset
	// requests go through. Empty means direct connections.
	Proxy string

	// RespectRobots enables robots.txt checks before each fetch.
	RespectRobots bool

	// NoCrawl skips the live crawl. The export then only holds capture data.
	NoCrawl bool

	// Concurrency is the number of capture files decoded in parallel.
	Concurrency int

	// Verbose enables detailed log output using slog.LevelDebug.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, FindConfigFile picks the first of ./.siteharvest,
	// ~/.siteharvest and the XDG config file.
	ConfigFilePath string

	// HostConfigs holds per-host settings loaded from the config file.
	HostConfigs *File

	// JSONReport prints report.json to stdout instead of the text summary.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport prints the summary as GitHub Flavored Markdown.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the summary.
	// When set, the summary is written to this file instead of stdout.
	ReportFile string

	// TeeReport also prints the summary to stdout when ReportFile is set.
	TeeReport bool

	// DBDir is the directory holding the run history database.
	// Defaults to the XDG data directory.
	DBDir string

	// SaveToDB indicates whether the run is recorded in the database.
	SaveToDB bool

	// MetricsFile is a Prometheus textfile written after the run.
	// Empty disables metrics output.
	MetricsFile string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		OutputDir:   DefaultOutputDir,
		MaxPages:    DefaultMaxPages,
		Timeout:     DefaultTimeout,
		CrawlDelay:  DefaultCrawlDelay,
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
		Concurrency: DefaultConcurrency,
		DBDir:       XDGDataDir(),
		SaveToDB:    true,
	}
}

// XDGDataDir returns the XDG data directory for siteharvest.
// On Linux: ~/.local/share/siteharvest
// On macOS: ~/Library/Application Support/siteharvest
// On Windows: %LOCALAPPDATA%\siteharvest
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for siteharvest.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as a sentinel error so callers can
// use errors.Is.
func (c *Config) Validate() error {
	if len(c.Captures) == 0 {
		return ErrNoCaptures
	}

	if c.OutputDir == "" {
		return ErrNoOutputDir
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.TeeReport && c.ReportFile == "" {
		return ErrTeeWithoutReportFile
	}

	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	return nil
}

// ReportFormat returns the report writer format selected by the flags.
func (c *Config) ReportFormat() string {
	switch {
	case c.JSONReport:
		return "json"
	case c.MarkdownReport:
		return "markdown"
	default:
		return "text"
	}
}

// Apply copies the crawl section of a config file into c. Fields whose
// names appear in explicit were set on the command line and are kept.
func (c *Config) Apply(file *File, explicit map[string]bool) {
	if file == nil {
		return
	}
	c.HostConfigs = file

	crawl := file.Crawl
	if crawl.MaxPages != 0 && !explicit["max-pages"] {
		c.MaxPages = crawl.MaxPages
	}
	if crawl.Timeout != 0 && !explicit["timeout"] {
		c.Timeout = crawl.Timeout
	}
	if crawl.Delay != 0 && !explicit["delay"] {
		c.CrawlDelay = crawl.Delay
	}
	if crawl.UserAgent != "" && !explicit["user-agent"] {
		c.UserAgent = crawl.UserAgent
	}
	if crawl.MaxBodySize != 0 {
		c.MaxBodySize = crawl.MaxBodySize
	}
	if crawl.RespectRobots != nil && !explicit["respect-robots"] {
		c.RespectRobots = *crawl.RespectRobots
	}
	if crawl.Proxy != "" && !explicit["proxy"] {
		c.Proxy = crawl.Proxy
	}
	if crawl.OutputDir != "" && !explicit["output"] {
		c.OutputDir = crawl.OutputDir
	}
}

// ForHost returns the crawl headers and patterns for host, merging
// per-host settings from the config file over the global ones.
func (c *Config) ForHost(host string) HostConfig {
	result := HostConfig{
		Headers:        make(map[string]string, len(c.Headers)),
		IgnorePatterns: c.IgnorePatterns,
		FollowPatterns: c.FollowPatterns,
	}
	for k, v := range c.Headers {
		result.Headers[k] = v
	}

	if c.HostConfigs == nil {
		return result
	}

	hc := c.HostConfigs.GetHostConfig(host)
	result.Cookie = hc.Cookie
	for k, v := range hc.Headers {
		result.Headers[k] = v
	}
	if len(hc.IgnorePatterns) > 0 {
		result.IgnorePatterns = append(append([]string(nil), result.IgnorePatterns...), hc.IgnorePatterns...)
	}
	if len(hc.FollowPatterns) > 0 {
		result.FollowPatterns = append(append([]string(nil), result.FollowPatterns...), hc.FollowPatterns...)
	}
	return result
}
