package capture

import (
	"encoding/base64"
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// DecodeBody returns the recorded body of c.
//
// The boolean is false when no body was recorded or when a base64 body
// cannot be decoded. An empty recorded body is returned as a non-nil,
// zero-length slice with true. Characters outside the base64 alphabet are
// ignored before decoding.
func DecodeBody(c Content) ([]byte, bool) {
	if c.Text == nil {
		return nil, false
	}

	if c.Encoding == "base64" {
		cleaned := strings.Map(func(r rune) rune {
			if isBase64Char(r) {
				return r
			}
			return -1
		}, *c.Text)
		body, err := base64.StdEncoding.DecodeString(cleaned)
		if err != nil {
			return nil, false
		}
		return body, true
	}

	return []byte(Text([]byte(*c.Text))), true
}

// Text decodes b as UTF-8, replacing ill-formed sequences with U+FFFD.
func Text(b []byte) string {
	s, _, err := transform.String(runes.ReplaceIllFormed(), string(b))
	if err != nil {
		return strings.ToValidUTF8(string(b), "\uFFFD")
	}
	return s
}

func isBase64Char(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r == '+', r == '/', r == '=':
		return true
	}
	return false
}
