package capture

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nao1215/siteharvest/internal/canon"
)

// utf8BOM is stripped from the start of capture files. Some browsers
// write it when exporting.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// File is a decoded capture file.
type File struct {
	// Name is the base name of the capture file.
	Name string

	// pageCount is the number of recorded pages.
	pageCount int

	// pageURLs are the page titles that are HTTP(S) URLs, in file order.
	pageURLs []string

	// entryCount is the number of recorded entries, including malformed ones.
	entryCount int

	// entries are the well-formed entries.
	entries []rawEntry

	// skipped is the number of entries that could not be decoded.
	skipped int
}

// Content is the response content of a capture entry.
type Content struct {
	// MimeType is the recorded mime type, possibly with parameters.
	MimeType string `json:"mimeType"`

	// Text is the recorded body. Nil means no body was recorded.
	Text *string `json:"text"`

	// Encoding is "base64" for binary bodies, empty otherwise.
	Encoding string `json:"encoding"`
}

// Entry is a single decoded request/response pair.
type Entry struct {
	// URL is the request URL as recorded.
	URL string

	// Status is the response status code, or 0 if unknown.
	Status int

	// MIME is the recorded mime type with parameters stripped.
	MIME string

	// Body is the decoded response body. Only meaningful when HasBody is true.
	Body []byte

	// HasBody distinguishes an absent body from an empty one.
	HasBody bool
}

// Host returns the lowercased host of the entry URL.
func (e Entry) Host() string {
	return canon.Host(e.URL)
}

// IsHTML reports whether the entry is an HTML document.
func (e Entry) IsHTML() bool {
	return IsHTML(e.MIME)
}

// document mirrors the subset of the HAR format that is read.
type document struct {
	Log struct {
		Pages   []json.RawMessage `json:"pages"`
		Entries []json.RawMessage `json:"entries"`
	} `json:"log"`
}

type rawPage struct {
	Title string `json:"title"`
}

type rawEntry struct {
	Request struct {
		URL string `json:"url"`
	} `json:"request"`
	Response struct {
		Status  flexInt `json:"status"`
		Content Content `json:"content"`
	} `json:"response"`
}

// flexInt decodes a JSON number, numeric string or null as an int.
type flexInt int

// UnmarshalJSON implements json.Unmarshaler.
func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid status %q: %w", s, err)
	}
	*f = flexInt(v)
	return nil
}

// Load decodes a capture document from r. name identifies the file in
// records derived from it.
//
// Load fails only when r does not hold a JSON document. Malformed pages
// and entries inside a valid document are skipped.
func Load(r io.Reader, name string) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture %s: %w", name, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode capture %s: %w", name, err)
	}

	f := &File{
		Name:       name,
		pageCount:  len(doc.Log.Pages),
		entryCount: len(doc.Log.Entries),
		pageURLs:   make([]string, 0),
		entries:    make([]rawEntry, 0, len(doc.Log.Entries)),
	}

	for _, raw := range doc.Log.Pages {
		var p rawPage
		if err := json.Unmarshal(raw, &p); err != nil {
			continue
		}
		if canon.HasHTTPPrefix(p.Title) {
			f.pageURLs = append(f.pageURLs, p.Title)
		}
	}

	for _, raw := range doc.Log.Entries {
		var e rawEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			f.skipped++
			continue
		}
		f.entries = append(f.entries, e)
	}

	return f, nil
}

// LoadFile opens and decodes the capture file at path.
func LoadFile(path string) (*File, error) {
	fh, err := os.Open(path) //nolint:gosec // User-provided capture path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open capture: %w", err)
	}
	defer fh.Close()

	return Load(fh, filepath.Base(path))
}

// PageCount returns the number of recorded pages.
func (f *File) PageCount() int {
	return f.pageCount
}

// EntryCount returns the number of recorded entries, malformed ones included.
func (f *File) EntryCount() int {
	return f.entryCount
}

// Skipped returns the number of entries that could not be decoded.
func (f *File) Skipped() int {
	return f.skipped
}

// PageURLs returns the page titles that are HTTP(S) URLs.
func (f *File) PageURLs() []string {
	out := make([]string, len(f.pageURLs))
	copy(out, f.pageURLs)
	return out
}

// Entries yields the HTTP(S) entries of the file in recorded order.
// Bodies are decoded lazily as the sequence is consumed.
func (f *File) Entries() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, e := range f.entries {
			if !canon.HasHTTPPrefix(e.Request.URL) {
				continue
			}
			body, ok := DecodeBody(e.Response.Content)
			entry := Entry{
				URL:     e.Request.URL,
				Status:  int(e.Response.Status),
				MIME:    stripParams(e.Response.Content.MimeType),
				Body:    body,
				HasBody: ok,
			}
			if !yield(entry) {
				return
			}
		}
	}
}

// stripParams removes mime parameters but keeps the original case.
func stripParams(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.TrimSpace(mime)
}

// IsHTML reports whether mime denotes an HTML document.
func IsHTML(mime string) bool {
	return canon.PrimaryMIME(mime) == "text/html"
}
