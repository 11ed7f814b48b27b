package canon

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// knownExtensions maps common primary mime types to the extension used
// for stored bodies. Types not listed fall back to the mimetype registry.
var knownExtensions = map[string]string{
	"application/x-javascript":  ".js",
	"application/javascript":    ".js",
	"text/javascript":           ".js",
	"text/html":                 ".html",
	"text/css":                  ".css",
	"text/plain":                ".txt",
	"text/xml":                  ".xml",
	"application/xml":           ".xml",
	"application/json":          ".json",
	"application/json+protobuf": ".pb.json",
	"application/manifest+json": ".webmanifest",
	"application/pdf":           ".pdf",
	"image/webp":                ".webp",
	"image/png":                 ".png",
	"image/jpeg":                ".jpg",
	"image/gif":                 ".gif",
	"image/svg+xml":             ".svg",
	"image/x-icon":              ".ico",
	"image/vnd.microsoft.icon":  ".ico",
	"font/woff":                 ".woff",
	"font/woff2":                ".woff2",
	"font/ttf":                  ".ttf",
	"font/otf":                  ".otf",
}

// PrimaryMIME strips parameters from a Content-Type style value and
// lowercases it: "Text/HTML; charset=utf-8" becomes "text/html".
func PrimaryMIME(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}

// ExtensionForMIME returns the storage extension for a mime type, or ""
// when the type is empty or unknown.
func ExtensionForMIME(mime string) string {
	primary := PrimaryMIME(mime)
	if primary == "" {
		return ""
	}
	if ext, ok := knownExtensions[primary]; ok {
		return ext
	}
	m := mimetype.Lookup(primary)
	if m == nil {
		return ""
	}
	ext := m.Extension()
	if ext == ".jpe" {
		ext = ".jpg"
	}
	return ext
}

// SniffExtension detects the extension of body from its content. It is
// used for capture entries that carry a body but no usable mime type.
func SniffExtension(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	return mimetype.Detect(body).Extension()
}
