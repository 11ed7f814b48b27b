package canon

import (
	"errors"
	"net/url"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse %q: %v", raw, err)
	}
	return u
}

// TestNormalize tests canonicalization of URLs.
func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "forces https", in: "http://example.com/", want: "https://example.com/"},
		{name: "lowercases host", in: "https://Example.COM/About", want: "https://example.com/About/"},
		{name: "empty path becomes root", in: "https://example.com", want: "https://example.com/"},
		{name: "appends trailing slash to directory-like path", in: "https://example.com/about", want: "https://example.com/about/"},
		{name: "keeps file-like path", in: "https://example.com/logo.png", want: "https://example.com/logo.png"},
		{name: "drops fragment", in: "https://example.com/docs#intro", want: "https://example.com/docs/"},
		{name: "keeps query", in: "https://example.com/search?q=go", want: "https://example.com/search/?q=go"},
		{name: "dotted version segment is treated as file", in: "https://example.com/v1.2", want: "https://example.com/v1.2"},
		{name: "encoded dot counts as a dot", in: "https://example.com/a%2Eb", want: "https://example.com/a%2Eb"},
		{name: "encoded slash keeps its encoding", in: "https://example.com/a%2Fb", want: "https://example.com/a%2Fb/"},
		{name: "keeps port", in: "http://LOCALHOST:8080/a", want: "https://localhost:8080/a/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Normalize(mustParse(t, tt.in)).String()
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestNormalizeIdempotent verifies that normalizing twice changes nothing.
func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"http://Example.com",
		"https://example.com/a/b",
		"https://example.com/a/b/?x=1&y=2",
		"https://example.com/file.tar.gz#frag",
		"https://example.com/with%20space",
	}

	for _, in := range inputs {
		once := Normalize(mustParse(t, in))
		twice := Normalize(once)
		if once.String() != twice.String() {
			t.Errorf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

// TestNormalizeDoesNotMutateInput ensures the argument is left unchanged.
func TestNormalizeDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	u := mustParse(t, "http://Example.com/about#x")
	_ = Normalize(u)
	if u.String() != "http://Example.com/about#x" {
		t.Errorf("input was modified: %q", u.String())
	}
}

// TestNormalizeEquivalence checks that scheme and host case do not affect identity.
func TestNormalizeEquivalence(t *testing.T) {
	t.Parallel()

	a, err := NormalizeString("http://EXAMPLE.com/about")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := NormalizeString("https://example.com/about")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Errorf("expected equal canonical URLs, got %q and %q", a, b)
	}
}

// TestNormalizeString tests parsing errors.
func TestNormalizeString(t *testing.T) {
	t.Parallel()

	t.Run("rejects non-http scheme", func(t *testing.T) {
		t.Parallel()

		_, err := NormalizeString("mailto:user@example.com")
		if !errors.Is(err, ErrUnsupportedScheme) {
			t.Errorf("expected ErrUnsupportedScheme, got %v", err)
		}
	})

	t.Run("rejects missing host", func(t *testing.T) {
		t.Parallel()

		_, err := NormalizeString("https:///path")
		if !errors.Is(err, ErrMissingHost) {
			t.Errorf("expected ErrMissingHost, got %v", err)
		}
	})

	t.Run("rejects unparseable input", func(t *testing.T) {
		t.Parallel()

		if _, err := NormalizeString("http://[::1"); err == nil {
			t.Error("expected error for malformed URL")
		}
	})
}

// TestRoutePath tests query-independent route paths.
func TestRoutePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "https://example.com", want: "/"},
		{in: "https://example.com/about", want: "/about/"},
		{in: "https://example.com/about/?page=2", want: "/about/"},
		{in: "https://example.com/a/b.html?x=1", want: "/a/b.html"},
		{in: "https://ex.com/a%2Eb", want: "/a%2Eb"},
		{in: "https://ex.com/a%2Eb/c", want: "/a%2Eb/c/"},
	}

	for _, tt := range tests {
		got, err := RoutePathString(tt.in)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tt.want {
			t.Errorf("RoutePathString(%q) = %q, want %q", tt.in, got, tt.want)
		}

		u := mustParse(t, tt.in)
		if normalized := Normalize(u).EscapedPath(); normalized != got {
			t.Errorf("RoutePath(%q) = %q disagrees with Normalize path %q", tt.in, got, normalized)
		}
		if again := RoutePath(Normalize(u)); again != got {
			t.Errorf("RoutePath not stable under Normalize for %q: %q then %q", tt.in, got, again)
		}
	}
}

// TestNormalizeAsset tests asset URL canonicalization.
func TestNormalizeAsset(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "extension-less path with query is kept", in: "http://Example.com/media/image?id=5", want: "https://example.com/media/image?id=5"},
		{name: "empty path becomes root", in: "https://EXAMPLE.com", want: "https://example.com/"},
		{name: "drops fragment", in: "https://example.com/app.js#x", want: "https://example.com/app.js"},
		{name: "keeps trailing slash as given", in: "https://example.com/img/", want: "https://example.com/img/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := NormalizeAssetString(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("NormalizeAssetString(%q) = %q, want %q", tt.in, got, tt.want)
			}
			again, err := NormalizeAssetString(got)
			if err != nil || again != got {
				t.Errorf("not idempotent: %q then %q (%v)", got, again, err)
			}
		})
	}

	if _, err := NormalizeAssetString("data:image/png;base64,AAAA"); err == nil {
		t.Error("expected error for non-http asset")
	}
}

// TestHost tests host extraction.
func TestHost(t *testing.T) {
	t.Parallel()

	if got := Host("https://Docs.Example.com/x"); got != "docs.example.com" {
		t.Errorf("expected docs.example.com, got %q", got)
	}
	if got := Host("http://[::1"); got != "" {
		t.Errorf("expected empty host for malformed URL, got %q", got)
	}
	if !HasHTTPPrefix("https://x") || HasHTTPPrefix("data:text/plain,hi") {
		t.Error("HasHTTPPrefix returned unexpected result")
	}
	if IsHTTP(mustParse(t, "ftp://example.com/")) {
		t.Error("expected ftp URL not to be HTTP")
	}
	if !IsHTTP(mustParse(t, "HTTPS://example.com/")) {
		t.Error("expected upper-case scheme to be HTTP")
	}
}
