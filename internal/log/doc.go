// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// Scans can be configured with per-site cookies and headers so that pages
// behind a login can be checked. The SecureHandler keeps those out of the logs:
//   - HTTP headers (Authorization, Cookie, Set-Cookie, X-Api-Key)
//   - Secret values detected by pattern matching (bearer tokens, JWTs, keys)
//   - Passwords and token query parameters inside logged URLs
//
// Integrity digests logged under the expected/actual/integrity keys are left
// untouched: they are public and needed to debug a hash mismatch.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, true) // verbose=true
//
//	logger.Debug("request sent",
//	    "cookie", "session=abc123", // masked
//	    "url", "https://example.com/app.js?token=abc", // token value masked
//	)
//
//	slog.SetDefault(logger)
package log
