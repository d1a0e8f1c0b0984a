package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/sricheck/internal/model"
)

// SimpleWriter outputs the line-oriented text report, one line per finding:
//
//	<script> - Missing SRI hash: https://cdn.example.com/app.js
//
// The resource URL is the raw attribute value as written in the page.
//
// Design decision: Only findings go to the output. Progress messages and
// page-level errors are logged, so the output can be piped into grep or
// diffed between runs.
type SimpleWriter struct {
	baseWriter

	// showValid also prints a line for each reference that passed.
	showValid bool

	// summary appends a severity summary after all pages.
	summary bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowValid configures the writer to print Valid outcomes as well.
func WithShowValid(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showValid = show
	}
}

// WithSummary appends a severity summary block to Write output.
func WithSummary(summary bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.summary = summary
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		showValid:  false,
		summary:    false,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the findings of every page in input order.
func (w *SimpleWriter) Write(scan *model.ScanReport) (int, error) {
	var sb strings.Builder

	for _, page := range scan.Pages {
		w.writeLines(&sb, page)
	}

	if w.summary {
		w.writeSummary(&sb, scan)
	}

	return w.output.Write([]byte(sb.String()))
}

// WritePage outputs the findings of a single page.
func (w *SimpleWriter) WritePage(page *model.PageReport) (int, error) {
	var sb strings.Builder
	w.writeLines(&sb, page)
	if sb.Len() == 0 {
		return 0, nil
	}
	return w.output.Write([]byte(sb.String()))
}

// WriteSummary outputs only the severity summary block.
// It is used after pages were streamed with WritePage.
func (w *SimpleWriter) WriteSummary(scan *model.ScanReport) (int, error) {
	var sb strings.Builder
	w.writeSummary(&sb, scan)
	return w.output.Write([]byte(sb.String()))
}

// writeLines writes one line per outcome to report.
func (w *SimpleWriter) writeLines(sb *strings.Builder, page *model.PageReport) {
	for _, o := range page.Outcomes {
		if !o.Status.IsFinding() && !w.showValid {
			continue
		}
		sb.WriteString(FormatLine(o))
		sb.WriteString("\n")
	}
}

// FormatLine renders an outcome as "<tag> - <detail>: <resource-url>".
func FormatLine(o model.Outcome) string {
	return fmt.Sprintf("%s - %s: %s", o.Kind.Tag(), o.Detail, o.ResourceURL)
}

// writeSummary writes the severity summary section.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, scan *model.ScanReport) {
	s := NewSummary(scan)

	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("SEVERITY SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "  CRITICAL: %d\n", s.BySeverity[model.SeverityCritical.String()])
	fmt.Fprintf(sb, "  HIGH:     %d\n", s.BySeverity[model.SeverityHigh.String()])
	fmt.Fprintf(sb, "  MEDIUM:   %d\n", s.BySeverity[model.SeverityMedium.String()])
	fmt.Fprintf(sb, "  LOW:      %d\n", s.BySeverity[model.SeverityLow.String()])
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  PAGES:    %d (%d failed)\n", s.Pages, s.FailedPages)
	fmt.Fprintf(sb, "  CHECKED:  %d references\n", s.References)
	fmt.Fprintf(sb, "  TOTAL:    %d findings\n", s.Findings)
}
