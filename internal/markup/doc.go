// Package markup extracts subresource references from HTML pages.
//
// Design decision: We use golang.org/x/net/html for parsing rather than
// regex because it correctly handles the malformed HTML common on the web
// and produces the same tree a browser would build for most documents.
//
// Only two element kinds are collected:
//   - <script> elements carrying a src attribute
//   - <link> elements carrying an href attribute whose rel tokens include "stylesheet"
//
// References are returned scripts first, then stylesheets, each group in
// document order. Relative URLs are resolved against the page URL, or the
// document's <base href> when present, while the raw attribute value is kept
// for reporting.
package markup
