package report

import (
	"io"

	"github.com/nao1215/sricheck/internal/model"
)

// Writer defines the interface for report output.
// Implementations write scan results in various formats.
//
// Design decision: Write renders a whole invocation while WritePage renders
// a single page. The text writer is driven page by page while the scan is
// still running; the structured formats need the complete ScanReport.
type Writer interface {
	// Write outputs the report of every scanned page.
	// Returns the number of bytes written and any error encountered.
	Write(scan *model.ScanReport) (int, error)

	// WritePage outputs the report of a single page.
	WritePage(page *model.PageReport) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(scan *model.ScanReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(scan)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WritePage outputs a page report to all configured Writers.
func (m *MultiWriter) WritePage(page *model.PageReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WritePage(page)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// singlePage wraps one page report into a scan report.
func singlePage(page *model.PageReport) *model.ScanReport {
	scan := model.NewScanReport()
	scan.Add(page)
	return scan
}
