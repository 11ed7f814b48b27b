// Package canon canonicalizes URLs for siteharvest.
//
// Every URL that enters a run (capture entries, page titles, links found in
// fetched documents, redirect targets) is passed through Normalize before it
// is compared, stored or enqueued. Two URLs that differ only by scheme, host
// case or fragment normalize to the same value.
//
// The package also maps URLs to filesystem-safe relative storage paths and
// classifies paths as routes or static assets by extension.
//
// # Trailing slash heuristic
//
// A path whose last segment contains no "." is treated as a directory-like
// route and receives a trailing slash. This means "/v1.2" is treated as a
// file and is left unchanged, while "/about" becomes "/about/".
//
// # Usage
//
//	u, _ := url.Parse("http://Example.com/about#team")
//	canon.Normalize(u).String() // "https://example.com/about/"
//	canon.StoragePath(u, ".html") // "example.com/about/index.html"
package canon
