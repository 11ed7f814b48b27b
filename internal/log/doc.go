// Package log provides secure logging built on top of the standard slog
// package.
//
// HAR captures routinely contain session cookies, bearer tokens and signed
// URLs. The SecureHandler masks attribute values whose keys look sensitive
// (Authorization, Cookie, token, password, ...), values that match secret
// patterns (JWTs, bearer and basic credentials, private key markers), and
// sensitive query parameters of URL-valued attributes:
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("fetch", "url", "https://example.com/cb?code=abc&page=2")
//	// url=https://example.com/cb?code=REDACTED&page=2
//
// Verbose mode logs at Debug level; otherwise only warnings and errors are
// written.
package log
