package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/sricheck/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing, e.g. as a CI
// job summary or a pull request comment.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full scan in Markdown format.
func (w *MarkdownWriter) Write(scan *model.ScanReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := NewSummary(scan)

	// Header
	md.H1("SRI Check Report")
	md.PlainText("")

	// Summary
	w.writeSummary(md, summary)

	// Per-page results
	for _, page := range scan.Pages {
		w.writePage(md, page)
	}

	// Footer
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WritePage outputs a single page in Markdown format.
func (w *MarkdownWriter) WritePage(page *model.PageReport) (int, error) {
	return w.Write(singlePage(page))
}

// writeSummary writes the severity summary section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, s *Summary) {
	md.H2("Severity Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Count"},
		Rows: [][]string{
			{"🔴 Critical", strconv.Itoa(s.BySeverity[model.SeverityCritical.String()])},
			{"🟠 High", strconv.Itoa(s.BySeverity[model.SeverityHigh.String()])},
			{"🟡 Medium", strconv.Itoa(s.BySeverity[model.SeverityMedium.String()])},
			{"🔵 Low", strconv.Itoa(s.BySeverity[model.SeverityLow.String()])},
			{"**Total**", "**" + strconv.Itoa(s.Findings) + "**"},
		},
	})
	md.PlainText("")

	md.PlainTextf("Checked %d reference(s) on %d page(s).", s.References, s.Pages)
	md.PlainText("")

	// Add pie chart if there are findings
	if s.HasFindings() {
		w.writePieChart(md, s)
	}

	w.writeAlert(md, s)
}

// writePieChart writes a mermaid pie chart for the status distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s *Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Finding Distribution"),
		piechart.WithShowData(true),
	)

	for _, status := range model.AllStatuses {
		if !status.IsFinding() {
			continue
		}
		if n := s.ByStatus[status.String()]; n > 0 {
			chart.LabelAndIntValue(statusTitle(status), uint64(n)) //nolint:gosec // n is a positive count
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an appropriate alert based on severity counts.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s *Summary) {
	critical := s.BySeverity[model.SeverityCritical.String()]
	high := s.BySeverity[model.SeverityHigh.String()]
	medium := s.BySeverity[model.SeverityMedium.String()]

	switch {
	case critical > 0:
		md.Cautionf(
			"%d resource(s) do not match their integrity hash. Check them for tampering before anything else.",
			critical,
		)
	case high > 0:
		md.Warningf(
			"%d resource(s) are loaded without an integrity hash.",
			high,
		)
	case medium > 0:
		md.Importantf(
			"%d resource(s) declare an integrity algorithm browsers do not support.",
			medium,
		)
	case s.HasFindings():
		md.Note("Some resources could not be verified.")
	default:
		md.Tip("Every checked resource carries a valid SRI hash.")
	}
	md.PlainText("")
}

// writePage writes the results of one page.
func (w *MarkdownWriter) writePage(md *markdown.Markdown, page *model.PageReport) {
	md.H2(page.URL)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Scan Date", page.DateScanned.Format("2006-01-02 15:04:05 MST")},
			{"References Checked", strconv.Itoa(len(page.Outcomes))},
			{"Findings", strconv.Itoa(len(page.Findings()))},
			{"Status", w.getStatusText(page)},
		},
	})
	md.PlainText("")

	findings := page.Findings()
	if len(findings) == 0 {
		if page.ErrorMessage == "" {
			md.PlainText("No SRI findings.")
			md.PlainText("")
		}
		return
	}

	severities := []struct {
		level  model.Severity
		header string
	}{
		{model.SeverityCritical, "### 🔴 Critical"},
		{model.SeverityHigh, "### 🟠 High"},
		{model.SeverityMedium, "### 🟡 Medium"},
		{model.SeverityLow, "### 🔵 Low"},
	}

	for _, sev := range severities {
		group := make([]model.Outcome, 0)
		for _, o := range findings {
			if o.Severity() == sev.level {
				group = append(group, o)
			}
		}
		if len(group) == 0 {
			continue
		}

		md.PlainText(sev.header)
		md.PlainText("")
		w.writeFindingsTable(md, group)
	}
}

// getStatusText returns the status text based on page state.
func (w *MarkdownWriter) getStatusText(page *model.PageReport) string {
	if page.TimedOut {
		return "⚠️ Cancelled (partial results)"
	}
	if page.ErrorMessage != "" {
		return "❌ Error - " + page.ErrorMessage
	}
	return "✅ Complete"
}

// writeFindingsTable writes a table of findings with details.
func (w *MarkdownWriter) writeFindingsTable(md *markdown.Markdown, findings []model.Outcome) {
	headers := []string{"Element", "Resource", "Result", "Recommendation"}

	rows := make([][]string, len(findings))
	for i, o := range findings {
		resource := o.ResourceURL
		if resource == "" {
			resource = "-"
		}
		info := model.GetFindingInfo(o.Status)

		rows[i] = []string{
			"`" + o.Kind.Tag() + "`",
			truncateString(resource, 60),
			statusTitle(o.Status),
			truncateString(info.Recommendation, 60),
		}
	}

	md.Table(markdown.TableSet{
		Header: headers,
		Rows:   rows,
	})
	md.PlainText("")

	// Details carry the full message, which the table may truncate
	seen := make(map[model.Status]bool)
	for _, o := range findings {
		if seen[o.Status] {
			continue
		}
		seen[o.Status] = true
		info := model.GetFindingInfo(o.Status)
		md.Details(info.Title, info.Impact)
	}
	for _, o := range findings {
		if o.Expected != "" && o.Actual != "" {
			md.Details(o.ResourceURL, "expected "+o.Algorithm+"-"+o.Expected+", got "+o.Algorithm+"-"+o.Actual)
		}
	}
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [sricheck](https://github.com/nao1215/sricheck)*")
}

// statusTitle turns a status into a heading such as "Hash Mismatch".
func statusTitle(status model.Status) string {
	return cases.Title(language.English).String(strings.ReplaceAll(status.String(), "_", " "))
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
