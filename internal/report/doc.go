// Package report renders scan results.
//
// This package contains writers for different output formats:
//   - SimpleWriter: the line-oriented text report, one line per finding
//   - JSONWriter: structured JSON output for tool integration
//   - MarkdownWriter: a Markdown document with severity tables and a chart
//   - SARIFWriter: SARIF 2.1.0 for code scanning dashboards
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
