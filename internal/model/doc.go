// Package model defines the core data structures used throughout sricheck.
//
// This package contains the following main types:
//   - Reference: One script or stylesheet element extracted from a page
//   - Outcome: The verdict of verifying one Reference
//   - PageReport: All outcomes for one scanned page
//   - ScanReport: The page reports of one invocation
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The markup, sri, pipeline, report and database packages all
// use these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
