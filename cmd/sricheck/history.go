package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/sricheck/internal/config"
	"github.com/nao1215/sricheck/internal/database"
	"github.com/spf13/cobra"
)

// noFindingsMessage is shown for stored scans without findings.
const noFindingsMessage = "No findings"

// NewHistoryCmd creates the history command.
// This command lists page reports stored by 'sricheck scan --save'.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "List stored scan results",
		Long: `History lists the page reports saved with 'sricheck scan --save'.

With a page URL it shows every stored scan of that page, newest first, with
the scan ID used by 'sricheck compare --with-scan-id'. With --list-pages it
shows every page that has stored scans.

Examples:
  # List stored scans of a page
  sricheck history https://example.com/

  # List all pages in the database
  sricheck history --list-pages`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list-pages", "L", false,
		"List all pages that have stored scans")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	listPages, err := cmd.Flags().GetBool("list-pages")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database
	if !listPages && len(args) == 0 {
		return errors.New("page URL is required (use --list-pages to see stored pages)")
	}

	out := cmd.OutOrStdout()

	db, err := openHistoryDB(config.XDGDataDir())
	if errors.Is(err, database.ErrDatabaseNotFound) {
		fmt.Fprintln(out, "No scan history found.")
		fmt.Fprintln(out, "\nUse 'sricheck scan --save <url>' to store scan results.")
		return nil
	}
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()

	if listPages {
		return listScannedPages(ctx, out, db)
	}
	return listScanHistory(ctx, out, db, args[0])
}

// openHistoryDB opens an existing history database without creating one.
func openHistoryDB(dbDir string) (*database.HistoryDB, error) {
	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false

	db, err := database.Open(dbDir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// listScannedPages lists all pages that have scan records in the database.
func listScannedPages(ctx context.Context, out io.Writer, db *database.HistoryDB) error {
	pages, err := db.ListScannedPages(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pages: %w", err)
	}

	if len(pages) == 0 {
		fmt.Fprintln(out, "No scanned pages found in the database.")
		fmt.Fprintln(out, "\nUse 'sricheck scan --save <url>' to store scan results.")
		return nil
	}

	fmt.Fprintf(out, "Scanned pages (%d):\n\n", len(pages))
	for _, page := range pages {
		fmt.Fprintf(out, "  • %s\n", page)
	}
	fmt.Fprintln(out, "\nUse 'sricheck history <url>' to see the scan history of a page.")

	return nil
}

// listScanHistory lists all scan records for a page.
func listScanHistory(ctx context.Context, out io.Writer, db *database.HistoryDB, pageURL string) error {
	reports, err := db.GetScanHistoryWithMetadata(ctx, pageURL)
	if err != nil {
		return fmt.Errorf("failed to get scan history: %w", err)
	}

	if len(reports) == 0 {
		fmt.Fprintf(out, "No scan history found for %s\n", pageURL)
		fmt.Fprintln(out, "\nUse 'sricheck scan --save' to store scan results for this page.")
		return nil
	}

	fmt.Fprintf(out, "Scan history for %s (%d scans):\n\n", pageURL, len(reports))
	fmt.Fprintf(out, "  %-6s  %-20s  %-8s  %s\n", "ID", "Date", "Findings", "Risk Summary")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 60))

	for _, meta := range reports {
		fmt.Fprintf(out, "  %-6d  %-20s  %-8d  %s\n",
			meta.ID,
			meta.Timestamp.Format("2006-01-02 15:04:05"),
			meta.Findings,
			formatRiskSummary(meta.RiskSummary),
		)
	}

	fmt.Fprintln(out, "\nUse 'sricheck compare <url>' to compare the latest two scans.")
	fmt.Fprintln(out, "Use 'sricheck compare --with-scan-id <id> <url>' to compare with a specific scan.")

	return nil
}

// formatRiskSummary formats the risk summary map into a human-readable string.
func formatRiskSummary(summary map[string]int) string {
	if summary == nil {
		return "N/A"
	}

	var parts []string
	if v := summary["critical"]; v > 0 {
		parts = append(parts, fmt.Sprintf("C:%d", v))
	}
	if v := summary["high"]; v > 0 {
		parts = append(parts, fmt.Sprintf("H:%d", v))
	}
	if v := summary["medium"]; v > 0 {
		parts = append(parts, fmt.Sprintf("M:%d", v))
	}
	if v := summary["low"]; v > 0 {
		parts = append(parts, fmt.Sprintf("L:%d", v))
	}

	if len(parts) == 0 {
		return noFindingsMessage
	}
	return strings.Join(parts, " ")
}
