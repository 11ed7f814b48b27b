package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

// Page represents a document fetched during the live crawl.
// A Page is created once per unique canonical URL and is not modified after
// the crawl engine emits it.
type Page struct {
	// URL is the canonical URL of the document after redirects.
	URL string `json:"url"`

	// RequestedURL is the canonical URL that was dequeued from the frontier.
	// It differs from URL when the server redirected.
	RequestedURL string `json:"requested_url,omitempty"`

	// StatusCode is the HTTP response status code.
	StatusCode int `json:"status_code"`

	// ContentType is the Content-Type header of the response.
	ContentType string `json:"content_type"`

	// Title is the text of the <title> element.
	Title string `json:"title,omitempty"`

	// Text is the visible text of the document. Whitespace runs are collapsed
	// and text fragments are joined with newlines.
	Text string `json:"-"`

	// Links are the canonical outbound navigation links, sorted and unique.
	Links []string `json:"links"`

	// Assets are the referenced asset URLs, sorted and unique.
	Assets []string `json:"assets"`

	// Raw is the response body as UTF-8 HTML.
	Raw []byte `json:"-"`

	// Hash is the SHA-256 hash of Raw.
	Hash string `json:"hash"`
}

// ComputeHash calculates and sets the SHA-256 hash of the page's raw content.
func (p *Page) ComputeHash() {
	if len(p.Raw) == 0 {
		p.Hash = ""
		return
	}

	hash := sha256.Sum256(p.Raw)
	p.Hash = hex.EncodeToString(hash[:])
}

// IsHTML returns true if the page content type is text/html.
func (p *Page) IsHTML() bool {
	ct := p.ContentType
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.EqualFold(strings.TrimSpace(ct), "text/html")
}

// TextChars returns the number of characters in the extracted text.
func (p *Page) TextChars() int {
	return utf8.RuneCountInString(p.Text)
}
