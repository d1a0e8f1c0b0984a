// Package pipeline runs the per-page scan: fetch the page, extract its
// script and stylesheet references, and verify each one.
//
// Each stage is implemented as a Step that receives the current
// model.PageReport and can modify it. A Scanner creates a fresh Pipeline for
// every page URL and processes the URLs one after another.
//
// Design decision: We use a pipeline pattern instead of direct function calls
// because:
// 1. It allows easy addition/removal of steps without modifying core logic
// 2. It provides consistent error handling and logging across steps
// 3. It supports cancellation via context for long-running scans
//
// A page-level failure is recorded in the page's report and never stops
// the scan of the remaining pages.
package pipeline
