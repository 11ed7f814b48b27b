package crawler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"github.com/nao1215/siteharvest/internal/canon"
)

// skippedTextTags are elements whose content never contributes visible text.
var skippedTextTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// srcAssetTags are elements whose src attribute references an asset.
var srcAssetTags = map[string]bool{
	"img":    true,
	"script": true,
	"iframe": true,
	"source": true,
	"video":  true,
	"audio":  true,
}

// Parser extracts visible text, navigation links and asset references from
// HTML content.
//
// The document is read as a token stream rather than a tree, so extraction
// runs in one pass and degrades gracefully on malformed markup.
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving relative URLs.
	baseURL *url.URL
}

// ParseResult contains all information extracted from an HTML page.
type ParseResult struct {
	// Title is the page title from <title> tag.
	Title string

	// Text is the visible text. Whitespace runs are collapsed to a single
	// space and non-empty fragments are joined with "\n".
	Text string

	// Links are the canonical URLs of <a href> targets, sorted and unique.
	Links []string

	// Assets are the URLs referenced by src, link href and srcset
	// attributes, sorted and unique. The query is kept and the fragment
	// dropped.
	Assets []string
}

// extractState is the mutable state of a single Parse call.
type extractState struct {
	// skipDepth counts the currently open elements from skippedTextTags.
	// Text is collected only while it is zero.
	skipDepth int

	// inTitle is true between <title> and </title>.
	inTitle bool

	title  strings.Builder
	text   []string
	links  map[string]struct{}
	assets map[string]struct{}
}

// NewParser creates a new HTML parser with the given base URL.
// The base URL is used to resolve relative links.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Extract parses body as HTML relative to baseURL.
func Extract(baseURL string, body []byte) (*ParseResult, error) {
	p, err := NewParser(baseURL)
	if err != nil {
		return &ParseResult{Links: []string{}, Assets: []string{}}, err
	}
	return p.Parse(bytes.NewReader(body))
}

// Parse extracts text, links and assets from HTML content.
//
// Parse always returns a non-nil result. When reading the content fails
// part way, the result holds everything extracted up to that point and the
// error is returned alongside it. Invalid UTF-8 is replaced with U+FFFD.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	st := &extractState{
		text:   make([]string, 0),
		links:  make(map[string]struct{}),
		assets: make(map[string]struct{}),
	}

	z := html.NewTokenizer(transform.NewReader(content, runes.ReplaceIllFormed()))

	var parseErr error
loop:
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				parseErr = fmt.Errorf("failed to read HTML: %w", err)
			}
			break loop

		case html.StartTagToken:
			tok := z.Token()
			p.startTag(st, tok)
			if tok.Data == "noscript" {
				// Treat noscript content as markup so that its links and
				// images are still discovered.
				z.NextIsNotRawText()
			}

		case html.SelfClosingTagToken:
			// A self-closing element opens and closes at once, so it does
			// not change skipDepth and never starts raw text.
			tok := z.Token()
			p.collectURLs(st, tok)
			z.NextIsNotRawText()

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skippedTextTags[tag] && st.skipDepth > 0 {
				st.skipDepth--
			}
			if tag == "title" {
				st.inTitle = false
			}

		case html.TextToken:
			if st.skipDepth > 0 {
				continue
			}
			txt := collapseSpace(string(z.Text()))
			if txt == "" {
				continue
			}
			st.text = append(st.text, txt)
			if st.inTitle {
				if st.title.Len() > 0 {
					st.title.WriteByte(' ')
				}
				st.title.WriteString(txt)
			}
		}
	}

	return &ParseResult{
		Title:  st.title.String(),
		Text:   strings.Join(st.text, "\n"),
		Links:  sortedKeys(st.links),
		Assets: sortedKeys(st.assets),
	}, parseErr
}

// startTag handles an opening tag.
func (p *Parser) startTag(st *extractState, tok html.Token) {
	if skippedTextTags[tok.Data] {
		st.skipDepth++
	}
	if tok.Data == "title" {
		st.inTitle = true
	}
	p.collectURLs(st, tok)
}

// collectURLs records the link and asset references of a tag.
func (p *Parser) collectURLs(st *extractState, tok html.Token) {
	switch {
	case tok.Data == "a":
		if u := p.resolveURL(getAttr(tok, "href")); u != nil {
			st.links[canon.Normalize(u).String()] = struct{}{}
		}
	case tok.Data == "link":
		p.addAsset(st, getAttr(tok, "href"))
	case srcAssetTags[tok.Data]:
		p.addAsset(st, getAttr(tok, "src"))
	}

	if srcset := getAttr(tok, "srcset"); srcset != "" {
		for _, candidate := range parseSrcset(srcset) {
			p.addAsset(st, candidate)
		}
	}
}

// addAsset resolves raw and records it as an asset URL.
func (p *Parser) addAsset(st *extractState, raw string) {
	u := p.resolveURL(raw)
	if u == nil {
		return
	}
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	st.assets[u.String()] = struct{}{}
}

// resolveURL resolves a reference against the base URL. It returns nil
// for empty references and for results that are not http(s) URLs. The
// fragment is always dropped.
func (p *Parser) resolveURL(href string) *url.URL {
	href = strings.TrimSpace(href)
	if href == "" {
		return nil
	}

	ref, err := url.Parse(href)
	if err != nil {
		return nil
	}

	resolved := p.baseURL.ResolveReference(ref)
	if !canon.IsHTTP(resolved) {
		return nil
	}
	resolved.Fragment = ""
	resolved.RawFragment = ""
	return resolved
}

// parseSrcset returns the URL of every candidate in a srcset attribute.
// Each comma-separated candidate contributes the token before its first
// space.
func parseSrcset(srcset string) []string {
	out := make([]string, 0)
	for _, item := range strings.Split(srcset, ",") {
		// The URL is the token before the first whitespace of any kind.
		if fields := strings.Fields(item); len(fields) > 0 {
			out = append(out, fields[0])
		}
	}
	return out
}

// collapseSpace replaces whitespace runs with a single space and trims.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// getAttr retrieves an attribute value from a token.
func getAttr(tok html.Token, key string) string {
	for _, attr := range tok.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
