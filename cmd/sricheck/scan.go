package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nao1215/sricheck/internal/config"
	"github.com/nao1215/sricheck/internal/database"
	"github.com/nao1215/sricheck/internal/fetch"
	"github.com/nao1215/sricheck/internal/log"
	"github.com/nao1215/sricheck/internal/model"
	"github.com/nao1215/sricheck/internal/pipeline"
	"github.com/nao1215/sricheck/internal/report"
	"github.com/spf13/cobra"
)

// projectURL is reported as the SARIF tool information URI.
const projectURL = "https://github.com/nao1215/sricheck"

// ErrFindingsFound is returned by the scan command when --fail-on-findings is
// set and at least one finding was reported.
var ErrFindingsFound = errors.New("SRI findings reported")

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [url...]",
		Short: "Check the SRI hashes of scripts and stylesheets on web pages",
		Long: `Scan downloads each page, finds its <script src> and
<link rel="stylesheet" href> references and verifies them:

- references without an integrity attribute are reported
- each referenced resource is downloaded and hashed with the declared
  algorithm (sha256, sha384 or sha512)
- a digest that differs from the declared one is reported

Pages are checked in the order given. A page that cannot be fetched is logged
and skipped; the remaining pages are still checked.

Examples:
  # Check a single page
  sricheck scan https://example.com/

  # Check several pages and fail the CI job on any finding
  sricheck scan --fail-on-findings https://example.com/ https://example.com/login

  # Verify up to 8 resources of a page at once
  sricheck scan -n 8 https://example.com/

  # Only check stylesheets
  sricheck scan --kinds stylesheet https://example.com/

  # Output a SARIF report for code scanning
  sricheck scan --sarif -o sricheck.sarif https://example.com/

  # Keep the result for 'sricheck compare'
  sricheck scan --save https://example.com/

Configuration file (.sricheck) example:
  defaults:
    skip:
      - "/vendor/*"
  sites:
    intranet.example.com:
      cookie: "session_id=abc123"
      headers:
        Authorization: "Bearer token"
      kinds:
        - script`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	// Connection flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each page and resource request")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum size in bytes of a page or resource body")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().StringP("proxy", "x", "",
		"Route requests through a SOCKS5 proxy (e.g., 127.0.0.1:9050)")

	// Scan behavior flags
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Number of resources verified at once within a page")
	cmd.Flags().StringSlice("kinds", []string{model.KindScript.String(), model.KindStylesheet.String()},
		"Reference kinds to check (script, stylesheet)")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sricheck in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown and --sarif)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json and --sarif)")
	cmd.Flags().Bool("sarif", false,
		"Output SARIF 2.1.0 report (mutually exclusive with --json and --markdown)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("show-valid", false,
		"Also print references whose hash is valid (text report only)")
	cmd.Flags().Bool("summary", false,
		"Append a severity summary (text report only)")

	// History and exit status flags
	cmd.Flags().Bool("save", false,
		"Save page reports to the history database for 'sricheck compare'")
	cmd.Flags().Bool("fail-on-findings", false,
		"Exit with status 1 when at least one finding is reported")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Usage()
	}

	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Site configs carry cookies and auth headers, so every log line goes
	// through the masking handler.
	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runScan(ctx, cfg, cmd.OutOrStdout(), logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.MaxBodySize, err = cmd.Flags().GetInt64("max-body-size")
	if err != nil {
		return nil, err
	}

	cfg.UserAgent, err = cmd.Flags().GetString("user-agent")
	if err != nil {
		return nil, err
	}

	cfg.ProxyAddress, err = cmd.Flags().GetString("proxy")
	if err != nil {
		return nil, err
	}

	cfg.Concurrency, err = cmd.Flags().GetInt("concurrency")
	if err != nil {
		return nil, err
	}

	kindNames, err := cmd.Flags().GetStringSlice("kinds")
	if err != nil {
		return nil, err
	}
	cfg.Kinds, err = config.ParseKinds(kindNames)
	if err != nil {
		return nil, fmt.Errorf("invalid --kinds: %w", err)
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// If the user explicitly specified a config file path, error if not found.
	// If no path specified, silently use empty config if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case explicitConfigPath:
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.SARIFReport, err = cmd.Flags().GetBool("sarif")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	cfg.ShowValid, err = cmd.Flags().GetBool("show-valid")
	if err != nil {
		return nil, err
	}

	cfg.ShowSummary, err = cmd.Flags().GetBool("summary")
	if err != nil {
		return nil, err
	}

	cfg.SaveToDB, err = cmd.Flags().GetBool("save")
	if err != nil {
		return nil, err
	}

	cfg.FailOnFindings, err = cmd.Flags().GetBool("fail-on-findings")
	if err != nil {
		return nil, err
	}

	cfg.Targets = args

	return cfg, nil
}

// runScan checks every target page and writes the report to stdout or
// cfg.ReportFile.
//
// Design decision: The text report is streamed page by page so that long
// runs show findings as they are found. Structured formats (JSON, Markdown,
// SARIF) describe the whole run and are written once at the end.
func runScan(ctx context.Context, cfg *config.Config, stdout io.Writer, logger *slog.Logger) error {
	logger.Info("starting scan",
		"targets", len(cfg.Targets),
		"concurrency", cfg.Concurrency,
		"kinds", cfg.Kinds,
		"proxy", cfg.ProxyAddress,
		"save_to_db", cfg.SaveToDB,
	)

	client, err := newFetchClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}

	var db *database.HistoryDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	output, closeOutput, err := openOutput(cfg.ReportFile, stdout)
	if err != nil {
		return err
	}
	defer closeOutput()

	var (
		streaming = !cfg.JSONReport && !cfg.MarkdownReport && !cfg.SARIFReport
		simple    = report.NewSimpleWriter(output, report.WithShowValid(cfg.ShowValid))
		writer    = newReportWriter(cfg, output, simple)
		scan      = model.NewScanReport()
		outputErr error
	)

	scanner := pipeline.NewScanner(
		func(pageURL string) *pipeline.Pipeline {
			return createPipelineForPage(client, logger, cfg, pageURL)
		},
		pipeline.WithScannerLogger(logger),
	)

	startTime := time.Now()
	scanErr := scanner.ScanWithCallback(ctx, cfg.Targets, func(page *model.PageReport, _ int) {
		scan.Add(page)

		if streaming && outputErr == nil {
			if _, err := writer.WritePage(page); err != nil {
				outputErr = err
			}
		}

		// An interrupted page is still saved as a partial result.
		if err := saveScanReport(context.WithoutCancel(ctx), db, page, logger); err != nil {
			logger.Error("failed to save scan report", "page", page.URL, "error", err)
		}
	})

	if scanErr != nil {
		logger.Warn("scan interrupted, reporting partial results",
			"checked_pages", len(scan.Pages),
			"total_pages", len(cfg.Targets),
			"reason", scanErr,
		)
	}

	if outputErr != nil {
		return fmt.Errorf("failed to write report: %w", outputErr)
	}

	if streaming {
		if cfg.ShowSummary {
			if _, err := simple.WriteSummary(scan); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
		}
	} else if _, err := writer.Write(scan); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	logger.Info("scan finished",
		"pages", len(scan.Pages),
		"failed_pages", scan.FailedPages(),
		"findings", scan.FindingCount(),
		"elapsed", time.Since(startTime).Round(time.Millisecond),
	)

	if cfg.FailOnFindings {
		if n := scan.FindingCount(); n > 0 {
			return fmt.Errorf("%w: %d finding(s) on %d page(s)", ErrFindingsFound, n, len(scan.Pages))
		}
	}

	return nil
}

// newFetchClient creates the HTTP client shared by every page of a scan.
func newFetchClient(cfg *config.Config) (*fetch.Client, error) {
	opts := []fetch.Option{
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithUserAgent(cfg.UserAgent),
	}
	if cfg.ProxyAddress != "" {
		opts = append(opts, fetch.WithProxy(cfg.ProxyAddress))
	}
	return fetch.NewClient(opts...)
}

// newReportWriter returns the writer for the report format selected in cfg.
// simple is used for the default text report.
func newReportWriter(cfg *config.Config, output io.Writer, simple *report.SimpleWriter) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	case cfg.SARIFReport:
		return report.NewSARIFWriter(output, report.WithInformationURI(projectURL))
	default:
		return simple
	}
}

// openOutput returns the report destination. When path is empty the report
// goes to stdout and the returned close function is a no-op.
func openOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports may contain URLs of internal pages, so only the owner can read them.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil //nolint:errcheck // best effort close
}

// getSiteConfig returns the site-specific configuration for a page.
// Falls back to an empty config when no config file was loaded.
func getSiteConfig(cfg *config.Config, pageURL string) config.SiteConfig {
	if cfg.SiteConfigs == nil {
		return config.SiteConfig{}
	}
	return cfg.SiteConfigs.GetPageConfig(pageURL)
}

// pageHost returns the host name of pageURL, or "" if it cannot be parsed.
func pageHost(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// createPipelineForPage creates a pipeline with the site configuration of pageURL applied.
func createPipelineForPage(client *fetch.Client, logger *slog.Logger, cfg *config.Config, pageURL string) *pipeline.Pipeline {
	siteConfig := getSiteConfig(cfg, pageURL)

	// Site kinds override the global --kinds
	kinds := cfg.Kinds
	if len(siteConfig.Kinds) > 0 {
		siteKinds, err := config.ParseKinds(siteConfig.Kinds)
		if err != nil {
			logger.Warn("ignoring invalid site kinds", "page", pageURL, "error", err)
		} else if len(siteKinds) > 0 {
			kinds = siteKinds
		}
	}

	// Site credentials are scoped to the page host; third-party resources never see them
	siteClient := client
	if siteConfig.Cookie != "" || len(siteConfig.Headers) > 0 {
		siteClient = client.ForSite(pageHost(pageURL), siteConfig.Cookie, siteConfig.Headers)
	}

	pipelineOpts := []pipeline.Option{
		pipeline.WithLogger(logger),
	}

	configOpts := []pipeline.DefaultPipelineOption{
		pipeline.WithPipelineKinds(kinds),
		pipeline.WithPipelineConcurrency(cfg.Concurrency),
		pipeline.WithPipelineLogger(logger),
	}

	if len(siteConfig.Skip) > 0 {
		configOpts = append(configOpts, pipeline.WithPipelineSkipPatterns(siteConfig.Skip))
	}

	p := pipeline.DefaultPipeline(siteClient, pipelineOpts, configOpts...)
	logger.Debug("pipeline created", "page", pageURL, "steps", p.StepNames())
	return p
}

// saveScanReport saves the page report to the database if enabled.
// If db is nil, this function is a no-op.
func saveScanReport(ctx context.Context, db *database.HistoryDB, page *model.PageReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	id, err := db.SaveScanReport(ctx, page)
	if err != nil {
		return fmt.Errorf("failed to save scan report: %w", err)
	}

	logger.Info("scan report saved to database", "page", page.URL, "id", id)
	return nil
}
