package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sricheck/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "sricheck.db"

// timestampLayout is the layout used for the timestamp column.
const timestampLayout = "2006-01-02 15:04:05"

// HistoryDB provides SQLite-based storage for page scan reports.
// Every saved scan is a new row, so the history of a page can be listed
// and two scans can be compared.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// ErrDatabaseNotFound is returned by Open when the database file is missing
// and CreateIfNotExists is false.
var ErrDatabaseNotFound = errors.New("database not found")

// Open opens or creates a HistoryDB in the given directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist,
// ErrDatabaseNotFound is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s (run a scan with --save first)", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw prevents modernc.org/sqlite from creating a new file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// Path returns the database file path.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	-- Scan reports store complete page reports as JSON
	CREATE TABLE IF NOT EXISTS scan_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		page_url TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		report_json TEXT NOT NULL,
		risk_summary TEXT,
		findings INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_reports_page ON scan_reports(page_url);
	CREATE INDEX IF NOT EXISTS idx_reports_timestamp ON scan_reports(timestamp);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// riskSummary returns finding counts keyed by lower-case severity name.
func riskSummary(page *model.PageReport) map[string]int {
	summary := map[string]int{
		"critical": 0,
		"high":     0,
		"medium":   0,
		"low":      0,
	}
	for severity, n := range page.CountBySeverity() {
		summary[strings.ToLower(severity.String())] += n
	}
	return summary
}

// SaveScanReport saves a page report as JSON and returns its ID.
func (hdb *HistoryDB) SaveScanReport(ctx context.Context, page *model.PageReport) (int64, error) {
	reportJSON, err := json.Marshal(page)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	riskJSON, err := json.Marshal(riskSummary(page))
	if err != nil {
		return 0, fmt.Errorf("failed to serialize risk summary: %w", err)
	}

	scanned := page.DateScanned
	if scanned.IsZero() {
		scanned = time.Now()
	}

	query := `
	INSERT INTO scan_reports (page_url, timestamp, report_json, risk_summary, findings)
	VALUES (?, ?, ?, ?, ?)
	`

	result, err := hdb.db.ExecContext(ctx, query,
		page.URL,
		scanned.UTC().Format(timestampLayout),
		string(reportJSON),
		string(riskJSON),
		len(page.Findings()),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save scan report: %w", err)
	}

	return result.LastInsertId()
}

// GetLatestScanReport retrieves the most recent scan report for a page.
// Returns nil without error if the page was never saved.
func (hdb *HistoryDB) GetLatestScanReport(ctx context.Context, pageURL string) (*model.PageReport, error) {
	query := `
	SELECT report_json FROM scan_reports
	WHERE page_url = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`

	return hdb.queryReport(ctx, query, pageURL)
}

// GetScanReportByID retrieves a scan report by its database ID.
// Returns nil without error if no such report exists.
func (hdb *HistoryDB) GetScanReportByID(ctx context.Context, id int64) (*model.PageReport, error) {
	query := `
	SELECT report_json FROM scan_reports
	WHERE id = ?
	`

	return hdb.queryReport(ctx, query, id)
}

// queryReport runs a single-row report query.
func (hdb *HistoryDB) queryReport(ctx context.Context, query string, args ...any) (*model.PageReport, error) {
	var reportJSON string
	err := hdb.db.QueryRowContext(ctx, query, args...).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan report: %w", err)
	}

	var page model.PageReport
	if err := json.Unmarshal([]byte(reportJSON), &page); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &page, nil
}

// ListScannedPages returns every page URL with at least one saved scan.
func (hdb *HistoryDB) ListScannedPages(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT page_url FROM scan_reports
	ORDER BY page_url
	`

	rows, err := hdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	var pages []string
	for rows.Next() {
		var page string
		if err := rows.Scan(&page); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, page)
	}

	return pages, rows.Err()
}

// GetScanHistory retrieves all scan reports for a page, newest first.
func (hdb *HistoryDB) GetScanHistory(ctx context.Context, pageURL string) ([]*model.PageReport, error) {
	query := `
	SELECT report_json FROM scan_reports
	WHERE page_url = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := hdb.db.QueryContext(ctx, query, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan history: %w", err)
	}
	defer rows.Close()

	var reports []*model.PageReport
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}

		var page model.PageReport
		if err := json.Unmarshal([]byte(reportJSON), &page); err != nil {
			continue // Skip malformed reports
		}
		reports = append(reports, &page)
	}

	return reports, rows.Err()
}

// ScanReportMetadata contains summary information about a scan report.
// This is used for displaying scan history without loading the full report.
type ScanReportMetadata struct {
	// ID is the unique identifier of the scan report in the database.
	ID int64

	// PageURL is the scanned page.
	PageURL string

	// Timestamp is when the scan was performed.
	Timestamp time.Time

	// Findings is the number of non-valid outcomes.
	Findings int

	// RiskSummary contains counts of findings by severity level.
	RiskSummary map[string]int
}

// GetScanHistoryWithMetadata retrieves scan report metadata for a page,
// newest first. This is more efficient than GetScanHistory when only
// metadata is needed.
func (hdb *HistoryDB) GetScanHistoryWithMetadata(ctx context.Context, pageURL string) ([]ScanReportMetadata, error) {
	query := `
	SELECT id, page_url, timestamp, findings, risk_summary
	FROM scan_reports
	WHERE page_url = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := hdb.db.QueryContext(ctx, query, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan history: %w", err)
	}
	defer rows.Close()

	var results []ScanReportMetadata
	for rows.Next() {
		var meta ScanReportMetadata
		var timestamp string
		var riskJSON sql.NullString

		if err := rows.Scan(&meta.ID, &meta.PageURL, &timestamp, &meta.Findings, &riskJSON); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.Timestamp = parseTimestamp(timestamp)

		meta.RiskSummary = make(map[string]int)
		if riskJSON.Valid && riskJSON.String != "" {
			if err := json.Unmarshal([]byte(riskJSON.String), &meta.RiskSummary); err != nil {
				meta.RiskSummary = make(map[string]int)
			}
		}

		results = append(results, meta)
	}

	return results, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timestampLayout,           // format written by SaveScanReport
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// Returns zero time if no format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
