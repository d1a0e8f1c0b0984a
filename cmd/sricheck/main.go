// Package main provides the entry point for the sricheck CLI.
//
// sricheck verifies the Subresource Integrity (SRI) hashes of the scripts and
// stylesheets referenced by web pages. It downloads every referenced
// resource, recomputes its digest and reports references that are missing a
// hash or whose hash does not match the served content.
//
// Usage:
//
//	sricheck scan <url> [url...]
//	sricheck history --list-pages
//
// See --help for all available options.
package main

// main is the entry point for sricheck.
func main() {
	Execute()
}
