package config

import "time"

// CrawlSettings is the crawl section of the configuration file.
// Zero values mean "not set"; command-line flags always win.
type CrawlSettings struct {
	MaxPages    int           `yaml:"maxPages,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	Delay       time.Duration `yaml:"delay,omitempty"`
	UserAgent   string        `yaml:"userAgent,omitempty"`
	MaxBodySize int64         `yaml:"maxBodySize,omitempty"`
	OutputDir   string        `yaml:"outputDir,omitempty"`
	Proxy       string        `yaml:"proxy,omitempty"`

	// RespectRobots is a pointer so an explicit false can be told apart
	// from an absent key.
	RespectRobots *bool `yaml:"respectRobots,omitempty"`
}

// HostConfig holds request settings for a single host.
type HostConfig struct {
	// Cookie is an HTTP cookie to use when crawling this host.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this host.
	Headers map[string]string `yaml:"headers,omitempty"`

	// IgnorePatterns are URL path globs to skip during crawling.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns, if specified, restrict crawling to matching paths.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File represents the structure of the .siteharvest configuration file.
type File struct {
	// Crawl overrides the built-in crawl defaults.
	Crawl CrawlSettings `yaml:"crawl,omitempty"`

	// Hosts maps lowercase host names to host-specific settings.
	Hosts map[string]HostConfig `yaml:"hosts,omitempty"`

	// Defaults applies to every host unless overridden in Hosts.
	Defaults HostConfig `yaml:"defaults,omitempty"`
}

// GetHostConfig returns the configuration for host, merging the
// host-specific entry over the defaults.
func (cf *File) GetHostConfig(host string) HostConfig {
	result := cf.Defaults
	result.Headers = make(map[string]string, len(cf.Defaults.Headers))
	for k, v := range cf.Defaults.Headers {
		result.Headers[k] = v
	}

	if hostConfig, ok := cf.Hosts[host]; ok {
		if hostConfig.Cookie != "" {
			result.Cookie = hostConfig.Cookie
		}
		for k, v := range hostConfig.Headers {
			result.Headers[k] = v
		}
		if len(hostConfig.IgnorePatterns) > 0 {
			result.IgnorePatterns = hostConfig.IgnorePatterns
		}
		if len(hostConfig.FollowPatterns) > 0 {
			result.FollowPatterns = hostConfig.FollowPatterns
		}
	}

	return result
}
