package canon

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrUnsupportedScheme is returned when a URL is not http or https.
var ErrUnsupportedScheme = errors.New("unsupported URL scheme: only http and https are allowed")

// ErrMissingHost is returned when an absolute URL has no host.
var ErrMissingHost = errors.New("URL has no host")

// IsHTTP reports whether u is an absolute http(s) URL with a host.
func IsHTTP(u *url.URL) bool {
	if u == nil || u.Host == "" {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

// HasHTTPPrefix reports whether raw starts with "http://" or "https://".
// Capture files are filtered with this check before any parsing happens.
func HasHTTPPrefix(raw string) bool {
	return strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")
}

// Normalize returns the canonical form of u.
//
// The scheme is forced to https, the host is lowercased, the fragment is
// dropped and an empty path becomes "/". A path whose final segment has
// no "." and does not end in "/" gets a trailing slash. The query is
// kept verbatim. The input is not modified.
//
// Normalize is idempotent: Normalize(Normalize(u)) equals Normalize(u).
func Normalize(u *url.URL) *url.URL {
	n := *u
	n.Scheme = "https"
	n.Host = strings.ToLower(u.Host)
	n.Fragment = ""
	n.RawFragment = ""
	n.ForceQuery = false
	n.Opaque = ""

	// The trailing-slash rule looks at the decoded path. An explicit
	// encoding in RawPath is kept and gets the same slash.
	n.Path = directoryPath(u.Path)
	n.RawPath = u.RawPath
	if n.RawPath != "" && strings.HasSuffix(n.Path, "/") && !strings.HasSuffix(n.RawPath, "/") {
		n.RawPath += "/"
	}
	return &n
}

// NormalizeAsset returns the canonical form of an asset URL. It forces
// https, lowercases the host, drops the fragment and turns an empty path
// into "/". Unlike Normalize it never appends a trailing slash, since an
// asset path without an extension is still a file.
func NormalizeAsset(u *url.URL) *url.URL {
	n := *u
	n.Scheme = "https"
	n.Host = strings.ToLower(u.Host)
	n.Fragment = ""
	n.RawFragment = ""
	n.ForceQuery = false
	n.Opaque = ""
	if n.Path == "" {
		n.Path = "/"
		n.RawPath = ""
	}
	return &n
}

// NormalizeAssetString parses raw and returns its canonical asset form.
func NormalizeAssetString(raw string) (string, error) {
	u, err := Parse(raw)
	if err != nil {
		return "", err
	}
	return NormalizeAsset(u).String(), nil
}

// NormalizeString parses raw and returns its canonical string form.
func NormalizeString(raw string) (string, error) {
	u, err := Parse(raw)
	if err != nil {
		return "", err
	}
	return Normalize(u).String(), nil
}

// Parse parses raw as an absolute http(s) URL.
func Parse(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrMissingHost, raw)
	}
	return u, nil
}

// Host returns the lowercased host (including any port) of raw, or ""
// when raw does not parse.
func Host(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// RoutePath returns the canonical, query-independent path of u.
// It is the deduplication key for routes that differ only by query.
// It agrees with the path of Normalize(u).
func RoutePath(u *url.URL) string {
	return Normalize(u).EscapedPath()
}

// RoutePathString is RoutePath for a raw URL string.
func RoutePathString(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}
	return RoutePath(u), nil
}

// directoryPath applies the empty-path and trailing-slash rules.
func directoryPath(p string) string {
	if p == "" {
		return "/"
	}
	if strings.HasSuffix(p, "/") {
		return p
	}
	last := p[strings.LastIndex(p, "/")+1:]
	if !strings.Contains(last, ".") {
		return p + "/"
	}
	return p
}
