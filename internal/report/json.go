package report

import (
	"io"

	"github.com/goccy/go-json"
	"github.com/nao1215/sricheck/internal/model"
)

// JSONWriter outputs reports in JSON format.
// This format is designed for tool integration and programmatic processing.
//
// Design decision: goccy/go-json is a drop-in replacement for encoding/json,
// so the struct tags on the model types apply unchanged.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// version is the sricheck version recorded in the document.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion records the tool version in the output document.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter:   newBaseWriter(output),
		indent:       false,
		indentPrefix: "",
		indentString: "",
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the full scan wrapped with version and summary.
func (w *JSONWriter) Write(scan *model.ScanReport) (int, error) {
	return w.writeJSON(NewJSONReport(scan, w.version))
}

// WritePage outputs a single page report without the wrapper.
func (w *JSONWriter) WritePage(page *model.PageReport) (int, error) {
	return w.writeJSON(page)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}

// JSONReport is a wrapper for the scan report with additional metadata.
type JSONReport struct {
	// Version is the sricheck version that generated this report.
	Version string `json:"version,omitempty"`

	// Summary holds aggregate counts for quick access.
	Summary *Summary `json:"summary"`

	// Pages are the per-page reports in input order.
	Pages []*model.PageReport `json:"pages"`
}

// NewJSONReport creates a JSONReport wrapper with version information.
func NewJSONReport(scan *model.ScanReport, version string) *JSONReport {
	pages := make([]*model.PageReport, 0)
	if scan != nil {
		pages = scan.Pages
	}
	return &JSONReport{
		Version: version,
		Summary: NewSummary(scan),
		Pages:   pages,
	}
}
