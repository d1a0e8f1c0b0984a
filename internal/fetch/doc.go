// Package fetch downloads pages and subresources over HTTP(S).
//
// A Client performs exactly one GET per call with an explicit per-request
// timeout, a body size cap, and optional per-site headers and cookies.
// Traffic can be routed through a SOCKS5 proxy (for example a local Tor
// daemon on 127.0.0.1:9050) using golang.org/x/net/proxy.
//
// Design decision: Failures are returned as typed errors (*Error for
// transport problems, *StatusError for non-2xx responses, ErrBodyTooLarge)
// rather than being logged here. The caller decides how a failure is
// reported; the verifier turns all of them into a fetch_failed outcome.
package fetch
