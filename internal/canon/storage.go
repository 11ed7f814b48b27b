package canon

import (
	"crypto/sha1" //nolint:gosec // Used for short, stable file name suffixes, not security.
	"encoding/hex"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// maxSegmentLength is the maximum length of a sanitized path segment.
const maxSegmentLength = 180

// queryHashLength is the number of hex characters of the query digest
// appended to storage names.
const queryHashLength = 8

var unsafeSegmentChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// skippedRouteExtensions lists extensions that identify static assets
// rather than navigable routes.
var skippedRouteExtensions = map[string]bool{
	".jpg":   true,
	".jpeg":  true,
	".png":   true,
	".gif":   true,
	".webp":  true,
	".svg":   true,
	".ico":   true,
	".css":   true,
	".js":    true,
	".mjs":   true,
	".woff":  true,
	".woff2": true,
	".ttf":   true,
	".eot":   true,
	".otf":   true,
	".pdf":   true,
	".mp4":   true,
	".mp3":   true,
	".webm":  true,
	".zip":   true,
	".gz":    true,
	".rar":   true,
	".7z":    true,
	".xml":   true,
	".json":  true,
	".txt":   true,
}

// SafeSegment sanitizes a single path segment. Runs of characters outside
// [A-Za-z0-9._-] become "_", the result is truncated to 180 characters and
// an empty result becomes "_".
func SafeSegment(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "_"
	}
	value = unsafeSegmentChars.ReplaceAllString(value, "_")
	if len(value) > maxSegmentLength {
		value = value[:maxSegmentLength]
	}
	if value == "" {
		return "_"
	}
	return value
}

// Extension returns the extension of a file name including the leading
// dot. Names that start with a dot, end with a dot or contain none have
// no extension.
func Extension(name string) string {
	i := strings.LastIndex(name, ".")
	if i <= 0 || i == len(name)-1 {
		return ""
	}
	return name[i:]
}

// ReplaceExtension swaps the extension of the last element of p for ext.
func ReplaceExtension(p, ext string) string {
	dir, name := path.Split(p)
	return dir + strings.TrimSuffix(name, Extension(name)) + ext
}

// IsSkippedRouteExtension reports whether the last segment of p carries a
// static asset extension. The comparison is case-insensitive.
func IsSkippedRouteExtension(p string) bool {
	name := p[strings.LastIndex(p, "/")+1:]
	return skippedRouteExtensions[strings.ToLower(Extension(name))]
}

// StoragePath maps u to a relative, slash-separated storage path of the
// form host/segments/name.
//
// A path ending in "/" stores as ".../index". defaultExt is appended when
// the final name has no extension. When u has a query, the final name
// becomes "<stem>__q_<hash><ext>" where hash is the first eight hex
// characters of the SHA-1 of the raw query, so query variants of one
// path never collide. Every segment is sanitized with SafeSegment and
// dot-only segments are replaced, so the result cannot escape the
// directory it is joined to.
func StoragePath(u *url.URL, defaultExt string) string {
	host := strings.ToLower(u.Host)
	if host == "" {
		host = "unknown_host"
	}

	p := u.EscapedPath()
	if p == "" || strings.HasSuffix(p, "/") {
		p += "index"
	}

	segments := make([]string, 0, strings.Count(p, "/")+1)
	for _, s := range strings.Split(p, "/") {
		if s == "" {
			continue
		}
		segments = append(segments, safePathSegment(s))
	}
	if len(segments) == 0 {
		segments = append(segments, "index")
	}

	name := segments[len(segments)-1]
	ext := Extension(name)
	if ext == "" && defaultExt != "" {
		name += defaultExt
		ext = defaultExt
	}
	if u.RawQuery != "" {
		stem := strings.TrimSuffix(name, ext)
		name = SafeSegment(stem) + "__q_" + QueryHash(u.RawQuery) + ext
	}
	segments[len(segments)-1] = name

	return path.Join(append([]string{safePathSegment(host)}, segments...)...)
}

// QueryHash returns the short digest used to distinguish query variants.
func QueryHash(rawQuery string) string {
	sum := sha1.Sum([]byte(rawQuery)) //nolint:gosec // Non-cryptographic use.
	return hex.EncodeToString(sum[:])[:queryHashLength]
}

// safePathSegment sanitizes s and rewrites "." and ".." so that the
// segment is always a plain name.
func safePathSegment(s string) string {
	s = SafeSegment(s)
	if strings.Trim(s, ".") == "" {
		return strings.Repeat("_", len(s))
	}
	return s
}
