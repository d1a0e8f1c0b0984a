package report

import (
	"fmt"
	"io"

	"github.com/nao1215/sricheck/internal/model"
	"github.com/owenrumney/go-sarif/v2/sarif"
)

// sarifRulePrefix namespaces rule IDs, e.g. "sri/hash_mismatch".
const sarifRulePrefix = "sri/"

// SARIFWriter outputs reports in SARIF 2.1.0 so findings can be uploaded to
// code scanning dashboards. Each finding becomes a result whose location is
// the scanned page; the rule is the outcome status.
type SARIFWriter struct {
	baseWriter

	// informationURI is reported as the tool's homepage.
	informationURI string
}

// SARIFWriterOption configures a SARIFWriter.
type SARIFWriterOption func(*SARIFWriter)

// WithInformationURI sets the tool homepage recorded in the run.
func WithInformationURI(uri string) SARIFWriterOption {
	return func(w *SARIFWriter) {
		w.informationURI = uri
	}
}

// NewSARIFWriter creates a SARIFWriter that outputs to the given writer.
func NewSARIFWriter(output io.Writer, opts ...SARIFWriterOption) *SARIFWriter {
	w := &SARIFWriter{
		baseWriter:     newBaseWriter(output),
		informationURI: "https://github.com/nao1215/sricheck",
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs every finding of the scan as a single SARIF run.
func (w *SARIFWriter) Write(scan *model.ScanReport) (int, error) {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return 0, fmt.Errorf("failed to create SARIF report: %w", err)
	}

	run := sarif.NewRunWithInformationURI("sricheck", w.informationURI)
	for _, page := range scan.Pages {
		for _, o := range page.Findings() {
			info := model.GetFindingInfo(o.Status)
			level := toSarifLevel(info.Severity)

			rule := run.AddRule(sarifRulePrefix + o.Status.String()).
				WithDescription(info.Title).
				WithDefaultConfiguration(&sarif.ReportingConfiguration{
					Level: level,
				})

			location := sarif.NewLocation().WithPhysicalLocation(
				sarif.NewPhysicalLocation().
					WithArtifactLocation(sarif.NewArtifactLocation().WithUri(page.URL)),
			)

			result := sarif.NewRuleResult(rule.ID).
				WithMessage(sarif.NewTextMessage(FormatLine(o))).
				WithLevel(level).
				WithLocations([]*sarif.Location{location})
			run.AddResult(result)
		}
	}
	report.AddRun(run)

	cw := &countingWriter{w: w.output}
	if err := report.PrettyWrite(cw); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// WritePage outputs the findings of a single page as a SARIF document.
func (w *SARIFWriter) WritePage(page *model.PageReport) (int, error) {
	return w.Write(singlePage(page))
}

// toSarifLevel maps a severity to a SARIF result level.
func toSarifLevel(severity model.Severity) string {
	switch severity {
	case model.SeverityCritical, model.SeverityHigh:
		return "error"
	case model.SeverityMedium:
		return "warning"
	case model.SeverityLow:
		return "note"
	default:
		return "none"
	}
}

// countingWriter counts the bytes written through it.
type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}
