package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/nao1215/markdown"
	"github.com/nao1215/sricheck/internal/config"
	"github.com/nao1215/sricheck/internal/database"
	"github.com/nao1215/sricheck/internal/model"
	"github.com/nao1215/sricheck/internal/report"
	"github.com/spf13/cobra"
)

// Constants for risk direction.
const (
	riskDirectionWorsened  = "worsened"
	riskDirectionImproved  = "improved"
	riskDirectionUnchanged = "unchanged"
)

// NewCompareCmd creates the compare command.
// This command compares scan results with historical data stored in the database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <url>",
		Short: "Compare scan results with historical data",
		Long: `Compare displays differences between the latest and a previous scan of a page.

It reads page reports saved with 'sricheck scan --save' and shows:
- New findings that appeared since the previous scan
- Resolved findings that are no longer present
- Changes in finding counts per severity

The comparison requires at least two stored scans of the page.

Examples:
  # Compare the latest two scans of a page
  sricheck compare https://example.com/

  # Compare with a specific historical scan by ID (see 'sricheck history')
  sricheck compare --with-scan-id 5 https://example.com/

  # Compare with the first scan since a date
  sricheck compare --since 2025-01-01 https://example.com/

  # Output comparison in JSON format
  sricheck compare --json https://example.com/`,
		Args: cobra.ExactArgs(1),
		RunE: runCompareCmd,
	}

	// Comparison target flags
	cmd.Flags().Int64P("with-scan-id", "i", 0,
		"Compare with a specific scan by ID (use 'sricheck history' to see available IDs)")
	cmd.Flags().StringP("since", "s", "",
		"Compare with the first scan after this date (format: YYYY-MM-DD)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")

	return cmd
}

// compareOptions holds the flags of the compare command.
type compareOptions struct {
	withScanID int64
	since      string
	json       bool
	markdown   bool
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	var (
		opts compareOptions
		err  error
	)

	opts.withScanID, err = cmd.Flags().GetInt64("with-scan-id")
	if err != nil {
		return err
	}
	opts.since, err = cmd.Flags().GetString("since")
	if err != nil {
		return err
	}
	opts.json, err = cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	opts.markdown, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if opts.json && opts.markdown {
		return config.ErrConflictingReportFormats
	}

	db, err := openHistoryDB(config.XDGDataDir())
	if err != nil {
		return err
	}
	defer db.Close()

	return runComparison(context.Background(), cmd.OutOrStdout(), db, args[0], opts)
}

// runComparison performs the actual comparison between page reports.
func runComparison(ctx context.Context, out io.Writer, db *database.HistoryDB, pageURL string, opts compareOptions) error {
	reports, err := db.GetScanHistory(ctx, pageURL)
	if err != nil {
		return fmt.Errorf("failed to get scan history: %w", err)
	}

	if len(reports) == 0 {
		return fmt.Errorf("no scan history found for %s", pageURL)
	}

	if len(reports) < 2 && opts.withScanID == 0 && opts.since == "" {
		return fmt.Errorf("at least 2 scans are required for comparison (found %d)", len(reports))
	}

	// Latest report is always the current one
	current := reports[0]

	var previous *model.PageReport
	switch {
	case opts.withScanID > 0:
		previous, err = db.GetScanReportByID(ctx, opts.withScanID)
		if err != nil {
			return fmt.Errorf("failed to get scan with ID %d: %w", opts.withScanID, err)
		}
		if previous == nil {
			return fmt.Errorf("scan with ID %d not found", opts.withScanID)
		}
		if previous.URL != pageURL {
			return fmt.Errorf("scan ID %d belongs to %s, not %s", opts.withScanID, previous.URL, pageURL)
		}
	case opts.since != "":
		sinceDate, err := time.Parse("2006-01-02", opts.since)
		if err != nil {
			return fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}

		// Reports are newest first; walk backwards for the oldest match
		for i := len(reports) - 1; i >= 0; i-- {
			if !reports[i].DateScanned.Before(sinceDate) {
				previous = reports[i]
				break
			}
		}
		if previous == nil {
			return fmt.Errorf("no scans found since %s", opts.since)
		}
		if previous == current {
			return fmt.Errorf("only one scan found since %s; at least 2 scans are required for comparison", opts.since)
		}
	default:
		previous = reports[1]
	}

	comparison := compareReports(previous, current)

	switch {
	case opts.json:
		return outputComparisonJSON(out, comparison)
	case opts.markdown:
		return outputComparisonMarkdown(out, comparison)
	default:
		return outputComparisonText(out, comparison)
	}
}

// ComparisonResult holds the result of comparing two page reports.
type ComparisonResult struct {
	// PageURL is the compared page.
	PageURL string `json:"page_url"`

	// PreviousScan contains metadata about the previous scan.
	PreviousScan ScanMetadata `json:"previous_scan"`

	// CurrentScan contains metadata about the current scan.
	CurrentScan ScanMetadata `json:"current_scan"`

	// NewFindings contains findings that are new in the current scan.
	NewFindings []model.Outcome `json:"new_findings,omitempty"`

	// ResolvedFindings contains findings that were in the previous scan but not in current.
	ResolvedFindings []model.Outcome `json:"resolved_findings,omitempty"`

	// UnchangedCount is the number of findings present in both scans.
	UnchangedCount int `json:"unchanged_count"`

	// RiskChange describes the overall change in risk level.
	RiskChange RiskChange `json:"risk_change"`
}

// ScanMetadata contains metadata about a scan for comparison display.
type ScanMetadata struct {
	// DateScanned is when the scan was performed.
	DateScanned time.Time `json:"date_scanned"`

	// References is the number of checked references.
	References int `json:"references"`

	// TotalFindings is the total number of findings in this scan.
	TotalFindings int `json:"total_findings"`

	CriticalCount int `json:"critical_count"`
	HighCount     int `json:"high_count"`
	MediumCount   int `json:"medium_count"`
	LowCount      int `json:"low_count"`
}

// RiskChange describes the change in risk level between scans.
type RiskChange struct {
	// Direction is "improved", "worsened", or "unchanged".
	Direction string `json:"direction"`

	CriticalDelta int `json:"critical_delta"`
	HighDelta     int `json:"high_delta"`
	MediumDelta   int `json:"medium_delta"`
	LowDelta      int `json:"low_delta"`
}

// newScanMetadata summarizes a page report.
func newScanMetadata(page *model.PageReport) ScanMetadata {
	counts := page.CountBySeverity()
	return ScanMetadata{
		DateScanned:   page.DateScanned,
		References:    len(page.Outcomes),
		TotalFindings: len(page.Findings()),
		CriticalCount: counts[model.SeverityCritical],
		HighCount:     counts[model.SeverityHigh],
		MediumCount:   counts[model.SeverityMedium],
		LowCount:      counts[model.SeverityLow],
	}
}

// compareReports compares two page reports and generates a comparison result.
//
// Findings are matched by key as a multiset, so a page that references the
// same unprotected script twice and later fixes one of them reports one
// resolved finding. New and resolved findings keep document order.
func compareReports(previous, current *model.PageReport) *ComparisonResult {
	result := &ComparisonResult{
		PageURL:      current.URL,
		PreviousScan: newScanMetadata(previous),
		CurrentScan:  newScanMetadata(current),
	}

	previousFindings := previous.Findings()
	currentFindings := current.Findings()

	remaining := make(map[string]int, len(previousFindings))
	for _, f := range previousFindings {
		remaining[findingKey(f)]++
	}

	// Find new findings (in current but not in previous)
	for _, f := range currentFindings {
		key := findingKey(f)
		if remaining[key] > 0 {
			remaining[key]--
			result.UnchangedCount++
			continue
		}
		result.NewFindings = append(result.NewFindings, f)
	}

	// Whatever was not matched above has been resolved
	for _, f := range previousFindings {
		key := findingKey(f)
		if remaining[key] > 0 {
			remaining[key]--
			result.ResolvedFindings = append(result.ResolvedFindings, f)
		}
	}

	result.RiskChange = calculateRiskChange(result.PreviousScan, result.CurrentScan)

	return result
}

// findingKey identifies a finding across scans.
// Reference indexes shift whenever the page changes, so they are not part of the key.
func findingKey(o model.Outcome) string {
	return o.Kind.String() + "|" + o.ResourceURL + "|" + o.Status.String()
}

// riskScore weights finding counts so that one mismatch outweighs several
// missing hashes.
func riskScore(m ScanMetadata) int {
	return m.CriticalCount*100 + m.HighCount*50 + m.MediumCount*10 + m.LowCount*5
}

// calculateRiskChange calculates the change in risk between two scans.
func calculateRiskChange(previous, current ScanMetadata) RiskChange {
	change := RiskChange{
		CriticalDelta: current.CriticalCount - previous.CriticalCount,
		HighDelta:     current.HighCount - previous.HighCount,
		MediumDelta:   current.MediumCount - previous.MediumCount,
		LowDelta:      current.LowCount - previous.LowCount,
	}

	previousScore := riskScore(previous)
	currentScore := riskScore(current)

	switch {
	case currentScore < previousScore:
		change.Direction = riskDirectionImproved
	case currentScore > previousScore:
		change.Direction = riskDirectionWorsened
	default:
		change.Direction = riskDirectionUnchanged
	}

	return change
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(out io.Writer, result *ComparisonResult) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// severityRow is one line of the comparison table.
type severityRow struct {
	name              string
	previous, current int
	delta             int
}

// severityRows returns the per-severity rows of a comparison.
func severityRows(result *ComparisonResult) []severityRow {
	return []severityRow{
		{"Critical", result.PreviousScan.CriticalCount, result.CurrentScan.CriticalCount, result.RiskChange.CriticalDelta},
		{"High", result.PreviousScan.HighCount, result.CurrentScan.HighCount, result.RiskChange.HighDelta},
		{"Medium", result.PreviousScan.MediumCount, result.CurrentScan.MediumCount, result.RiskChange.MediumDelta},
		{"Low", result.PreviousScan.LowCount, result.CurrentScan.LowCount, result.RiskChange.LowDelta},
	}
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(out io.Writer, result *ComparisonResult) error {
	md := markdown.NewMarkdown(out)

	md.H1("Scan Comparison: " + result.PageURL)
	md.PlainText("")

	md.H2("Summary")
	md.PlainText("")
	md.PlainTextf("**Risk Status:** %s", formatRiskDirection(result.RiskChange.Direction))
	md.PlainText("")

	rows := [][]string{
		{
			"Date",
			result.PreviousScan.DateScanned.Format("2006-01-02 15:04"),
			result.CurrentScan.DateScanned.Format("2006-01-02 15:04"),
			"-",
		},
	}
	for _, r := range severityRows(result) {
		rows = append(rows, []string{r.name, strconv.Itoa(r.previous), strconv.Itoa(r.current), formatDelta(r.delta)})
	}
	rows = append(rows, []string{
		"**Total**",
		"**" + strconv.Itoa(result.PreviousScan.TotalFindings) + "**",
		"**" + strconv.Itoa(result.CurrentScan.TotalFindings) + "**",
		"**" + formatDelta(result.CurrentScan.TotalFindings-result.PreviousScan.TotalFindings) + "**",
	})

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(result.NewFindings) > 0 {
		md.H2(fmt.Sprintf("New Findings (%d)", len(result.NewFindings)))
		md.PlainText("")
		items := make([]string, 0, len(result.NewFindings))
		for _, f := range result.NewFindings {
			items = append(items, fmt.Sprintf("**[%s]** `%s`", f.Severity(), report.FormatLine(f)))
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	if len(result.ResolvedFindings) > 0 {
		md.H2(fmt.Sprintf("Resolved Findings (%d)", len(result.ResolvedFindings)))
		md.PlainText("")
		items := make([]string, 0, len(result.ResolvedFindings))
		for _, f := range result.ResolvedFindings {
			items = append(items, fmt.Sprintf("~~**[%s]** `%s`~~", f.Severity(), report.FormatLine(f)))
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	if result.UnchangedCount > 0 {
		md.HorizontalRule()
		md.PlainTextf("*%d findings unchanged*", result.UnchangedCount)
	}

	return md.Build()
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(out io.Writer, result *ComparisonResult) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Scan Comparison: %s\n", result.PageURL)
	sb.WriteString(strings.Repeat("=", 60) + "\n")

	fmt.Fprintf(&sb, "\nRisk Status: %s\n", formatRiskDirection(result.RiskChange.Direction))

	fmt.Fprintf(&sb, "\nPrevious scan: %s\n", result.PreviousScan.DateScanned.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "Current scan:  %s\n", result.CurrentScan.DateScanned.Format("2006-01-02 15:04:05"))

	sb.WriteString("\nFindings Summary:\n")
	fmt.Fprintf(&sb, "  %-10s  %-10s  %-10s  %-10s\n", "Severity", "Previous", "Current", "Change")
	sb.WriteString("  " + strings.Repeat("-", 45) + "\n")
	for _, r := range severityRows(result) {
		fmt.Fprintf(&sb, "  %-10s  %-10d  %-10d  %-10s\n", r.name, r.previous, r.current, formatDelta(r.delta))
	}
	sb.WriteString("  " + strings.Repeat("-", 45) + "\n")
	fmt.Fprintf(&sb, "  %-10s  %-10d  %-10d  %-10s\n", "Total",
		result.PreviousScan.TotalFindings, result.CurrentScan.TotalFindings,
		formatDelta(result.CurrentScan.TotalFindings-result.PreviousScan.TotalFindings))

	if len(result.NewFindings) > 0 {
		fmt.Fprintf(&sb, "\nNew Findings (%d):\n", len(result.NewFindings))
		for _, f := range result.NewFindings {
			fmt.Fprintf(&sb, "  [+] [%s] %s\n", f.Severity(), report.FormatLine(f))
		}
	}

	if len(result.ResolvedFindings) > 0 {
		fmt.Fprintf(&sb, "\nResolved Findings (%d):\n", len(result.ResolvedFindings))
		for _, f := range result.ResolvedFindings {
			fmt.Fprintf(&sb, "  [-] [%s] %s\n", f.Severity(), report.FormatLine(f))
		}
	}

	if result.UnchangedCount > 0 {
		fmt.Fprintf(&sb, "\nUnchanged: %d findings\n", result.UnchangedCount)
	}

	_, err := io.WriteString(out, sb.String())
	return err
}

// formatRiskDirection formats the risk change direction for display.
func formatRiskDirection(direction string) string {
	switch direction {
	case riskDirectionImproved:
		return "IMPROVED (risk decreased)"
	case riskDirectionWorsened:
		return "WORSENED (risk increased)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
