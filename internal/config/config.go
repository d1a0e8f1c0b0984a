package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/sricheck/internal/fetch"
	"github.com/nao1215/sricheck/internal/model"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sricheck"

	// DefaultTimeout bounds each page and resource fetch. A timed out
	// resource is reported as a fetch failure, not a scan error.
	DefaultTimeout = fetch.DefaultTimeout

	// DefaultMaxBodySize limits how much of a page or resource is read.
	// Large bundled scripts are common, so this is generous.
	DefaultMaxBodySize = fetch.DefaultMaxBodySize

	// DefaultUserAgent identifies sricheck in HTTP requests.
	DefaultUserAgent = fetch.DefaultUserAgent

	// DefaultConcurrency of 1 keeps resource verification sequential.
	DefaultConcurrency = 1
)

// Config holds all configuration options for sricheck.
// It is populated from CLI flags and passed through the application via
// dependency injection rather than global state.
type Config struct {
	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	// When empty, requests are made directly.
	ProxyAddress string

	// Timeout is the per-request timeout for pages and resources.
	Timeout time.Duration

	// MaxBodySize is the maximum response body size in bytes.
	// Set to 0 to use the default (10MB).
	MaxBodySize int64

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// Concurrency is the number of resources verified at once within a page.
	// 1 means sequential verification.
	Concurrency int

	// Kinds lists which references are checked.
	Kinds []model.Kind

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .sricheck in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds site-specific configurations loaded from the config file.
	SiteConfigs *File

	// JSONReport enables JSON report output.
	JSONReport bool

	// MarkdownReport enables Markdown report output.
	MarkdownReport bool

	// SARIFReport enables SARIF report output.
	SARIFReport bool

	// ShowValid also prints references that passed in the text report.
	ShowValid bool

	// ShowSummary appends a severity summary to the text report.
	ShowSummary bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	ReportFile string

	// Targets is the list of page URLs to check.
	Targets []string

	// DBDir is the directory holding the history database.
	// Defaults to the XDG data directory (~/.local/share/sricheck on Linux).
	DBDir string

	// SaveToDB saves every page report to the history database.
	SaveToDB bool

	// FailOnFindings makes the command exit non-zero when a finding is reported.
	FailOnFindings bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:     DefaultTimeout,
		MaxBodySize: DefaultMaxBodySize,
		UserAgent:   DefaultUserAgent,
		Concurrency: DefaultConcurrency,
		Kinds:       []model.Kind{model.KindScript, model.KindStylesheet},
		DBDir:       XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for sricheck.
// On Linux: ~/.local/share/sricheck
// On macOS: ~/Library/Application Support/sricheck
// On Windows: %LOCALAPPDATA%\sricheck
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sricheck.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as a sentinel error.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if len(c.Kinds) == 0 {
		return ErrNoKinds
	}

	formats := 0
	for _, enabled := range []bool{c.JSONReport, c.MarkdownReport, c.SARIFReport} {
		if enabled {
			formats++
		}
	}
	if formats > 1 {
		return ErrConflictingReportFormats
	}

	return nil
}
