package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/nao1215/sricheck/internal/config"
	"github.com/nao1215/sricheck/internal/database"
	"github.com/nao1215/sricheck/internal/model"
	"github.com/nao1215/sricheck/internal/report"
	"github.com/nao1215/sricheck/internal/sri"
)

// TestNewScanCmd tests the scan command creation.
func TestNewScanCmd(t *testing.T) {
	t.Parallel()

	cmd := NewScanCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "scan [url...]" {
			t.Errorf("expected use 'scan [url...]', got %q", cmd.Use)
		}
	})

	t.Run("has descriptions", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" || cmd.Long == "" {
			t.Error("expected non-empty short and long descriptions")
		}
	})

	t.Run("flags with shorthand", func(t *testing.T) {
		t.Parallel()

		flagsWithShort := map[string]string{
			"timeout":     "t",
			"proxy":       "x",
			"concurrency": "n",
			"config":      "c",
			"json":        "j",
			"markdown":    "m",
			"output":      "o",
		}
		for name, shorthand := range flagsWithShort {
			flag := cmd.Flags().Lookup(name)
			if flag == nil {
				t.Errorf("expected %s flag", name)
				continue
			}
			if flag.Shorthand != shorthand {
				t.Errorf("flag %s: expected shorthand %q, got %q", name, shorthand, flag.Shorthand)
			}
		}
	})

	t.Run("long-only flags", func(t *testing.T) {
		t.Parallel()

		for _, name := range []string{"max-body-size", "user-agent", "kinds", "sarif", "show-valid", "summary", "save", "fail-on-findings"} {
			if cmd.Flags().Lookup(name) == nil {
				t.Errorf("expected %s flag", name)
			}
		}
	})

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		if got := cmd.Flags().Lookup("timeout").DefValue; got != config.DefaultTimeout.String() {
			t.Errorf("timeout default = %q", got)
		}
		if got := cmd.Flags().Lookup("concurrency").DefValue; got != "1" {
			t.Errorf("concurrency default = %q", got)
		}
		if got := cmd.Flags().Lookup("kinds").DefValue; got != "[script,stylesheet]" {
			t.Errorf("kinds default = %q", got)
		}
		if got := cmd.Flags().Lookup("save").DefValue; got != "false" {
			t.Errorf("save default = %q", got)
		}
	})

	t.Run("does not have db-dir flag (uses XDG)", func(t *testing.T) {
		t.Parallel()
		if cmd.Flags().Lookup("db-dir") != nil {
			t.Error("db-dir flag should not exist (always uses XDG data directory)")
		}
	})
}

// TestRunScanCmdWithoutURLs tests that zero URLs prints usage and succeeds.
func TestRunScanCmdWithoutURLs(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	cmd := NewScanCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	combined := stdout.String() + stderr.String()
	if !strings.Contains(combined, "Usage:") {
		t.Errorf("expected usage output, got %q", combined)
	}
}

// TestGetVerboseFlag tests the verbose flag retrieval.
func TestGetVerboseFlag(t *testing.T) {
	t.Parallel()

	t.Run("returns false when flag not set", func(t *testing.T) {
		t.Parallel()
		if getVerboseFlag(NewScanCmd()) {
			t.Error("expected false when flag not set")
		}
	})

	t.Run("returns value from parent verbose flag", func(t *testing.T) {
		t.Parallel()

		root := NewRootCmd()
		_ = root.PersistentFlags().Set("verbose", "true")

		scanCmd, _, err := root.Find([]string{"scan"})
		if err != nil {
			t.Fatalf("failed to find scan command: %v", err)
		}
		if !getVerboseFlag(scanCmd) {
			t.Error("expected true from parent verbose flag")
		}
	})
}

// TestBuildConfig tests configuration building from flags.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("builds config with default values", func(t *testing.T) {
		t.Parallel()

		cfg, err := buildConfig(NewScanCmd(), []string{"https://example.com/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(cfg.Targets) != 1 || cfg.Targets[0] != "https://example.com/" {
			t.Errorf("unexpected targets %v", cfg.Targets)
		}
		if cfg.Timeout != config.DefaultTimeout {
			t.Errorf("Timeout = %v", cfg.Timeout)
		}
		if len(cfg.Kinds) != 2 {
			t.Errorf("expected both kinds, got %v", cfg.Kinds)
		}
		if cfg.SaveToDB || cfg.FailOnFindings {
			t.Error("expected --save and --fail-on-findings to be off")
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("default config should be valid: %v", err)
		}
	})

	t.Run("reads every flag", func(t *testing.T) {
		t.Parallel()

		cmd := NewScanCmd()
		flags := map[string]string{
			"timeout":          "5s",
			"max-body-size":    "1024",
			"user-agent":       "custom-agent",
			"proxy":            "127.0.0.1:9050",
			"concurrency":      "4",
			"kinds":            "stylesheet",
			"sarif":            "true",
			"output":           "/tmp/report.sarif",
			"show-valid":       "true",
			"summary":          "true",
			"save":             "true",
			"fail-on-findings": "true",
		}
		for name, value := range flags {
			if err := cmd.Flags().Set(name, value); err != nil {
				t.Fatalf("failed to set %s: %v", name, err)
			}
		}

		cfg, err := buildConfig(cmd, []string{"https://example.com/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v", cfg.Timeout)
		}
		if cfg.MaxBodySize != 1024 {
			t.Errorf("MaxBodySize = %d", cfg.MaxBodySize)
		}
		if cfg.UserAgent != "custom-agent" {
			t.Errorf("UserAgent = %q", cfg.UserAgent)
		}
		if cfg.ProxyAddress != "127.0.0.1:9050" {
			t.Errorf("ProxyAddress = %q", cfg.ProxyAddress)
		}
		if cfg.Concurrency != 4 {
			t.Errorf("Concurrency = %d", cfg.Concurrency)
		}
		if len(cfg.Kinds) != 1 || cfg.Kinds[0] != model.KindStylesheet {
			t.Errorf("Kinds = %v", cfg.Kinds)
		}
		if !cfg.SARIFReport || cfg.ReportFile != "/tmp/report.sarif" {
			t.Errorf("unexpected report settings: sarif=%v file=%q", cfg.SARIFReport, cfg.ReportFile)
		}
		if !cfg.ShowValid || !cfg.ShowSummary || !cfg.SaveToDB || !cfg.FailOnFindings {
			t.Error("expected boolean flags to be set")
		}
	})

	t.Run("rejects unknown kinds", func(t *testing.T) {
		t.Parallel()

		cmd := NewScanCmd()
		_ = cmd.Flags().Set("kinds", "script,image")
		_, err := buildConfig(cmd, []string{"https://example.com/"})

		var kindErr *model.UnknownKindError
		if !errors.As(err, &kindErr) {
			t.Fatalf("expected UnknownKindError, got %v", err)
		}
	})

	t.Run("loads config file", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "sricheck.yaml")
		content := []byte(`
defaults:
  skip:
    - "/vendor/*"
sites:
  Example.COM:
    cookie: session=xyz
`)
		if err := os.WriteFile(configPath, content, 0o600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cmd := NewScanCmd()
		_ = cmd.Flags().Set("config", configPath)
		cfg, err := buildConfig(cmd, []string{"https://example.com/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		site := getSiteConfig(cfg, "https://example.com/index.html")
		if site.Cookie != "session=xyz" {
			t.Errorf("Cookie = %q", site.Cookie)
		}
		if len(site.Skip) != 1 || site.Skip[0] != "/vendor/*" {
			t.Errorf("Skip = %v", site.Skip)
		}
	})

	t.Run("returns error for invalid config file", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "invalid.yaml")
		if err := os.WriteFile(configPath, []byte(`{invalid yaml`), 0o600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cmd := NewScanCmd()
		_ = cmd.Flags().Set("config", configPath)
		if _, err := buildConfig(cmd, []string{"https://example.com/"}); err == nil {
			t.Fatal("expected error for invalid config file")
		}
	})

	t.Run("returns error for missing explicit config file", func(t *testing.T) {
		t.Parallel()

		cmd := NewScanCmd()
		_ = cmd.Flags().Set("config", filepath.Join(t.TempDir(), "missing.yaml"))
		_, err := buildConfig(cmd, []string{"https://example.com/"})
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})
}

// TestGetSiteConfig tests site configuration retrieval.
func TestGetSiteConfig(t *testing.T) {
	t.Parallel()

	t.Run("returns empty config for nil SiteConfigs", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		site := getSiteConfig(cfg, "https://example.com/")
		if site.Cookie != "" || len(site.Headers) != 0 {
			t.Errorf("expected empty site config, got %+v", site)
		}
	})

	t.Run("falls back to defaults for unknown host", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.SiteConfigs = &config.File{
			Defaults: config.SiteConfig{Skip: []string{"*.min.js"}},
			Sites: map[string]config.SiteConfig{
				"example.com": {Cookie: "a=b"},
			},
		}
		site := getSiteConfig(cfg, "https://other.example.org/")
		if site.Cookie != "" {
			t.Errorf("Cookie = %q, expected none", site.Cookie)
		}
		if len(site.Skip) != 1 {
			t.Errorf("expected default skip patterns, got %v", site.Skip)
		}
	})
}

// TestCreatePipelineForPage tests pipeline creation with site settings.
func TestCreatePipelineForPage(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.SiteConfigs = &config.File{
		Sites: map[string]config.SiteConfig{
			"example.com": {Cookie: "a=b", Kinds: []string{"script"}},
		},
	}

	client, err := newFetchClient(cfg)
	if err != nil {
		t.Fatalf("newFetchClient failed: %v", err)
	}

	p := createPipelineForPage(client, discardLogger(), cfg, "https://example.com/")
	expected := []string{"fetch_page", "extract", "verify"}
	names := p.StepNames()
	if strings.Join(names, ",") != strings.Join(expected, ",") {
		t.Errorf("StepNames() = %v, expected %v", names, expected)
	}
}

// TestPageHost tests the host that site credentials are scoped to.
func TestPageHost(t *testing.T) {
	t.Parallel()

	testCases := map[string]string{
		"https://Example.com:8443/a/b": "Example.com",
		"http://127.0.0.1/":            "127.0.0.1",
		"relative/page.html":           "",
		"://bad":                       "",
	}
	for pageURL, expected := range testCases {
		if got := pageHost(pageURL); got != expected {
			t.Errorf("pageHost(%q) = %q, expected %q", pageURL, got, expected)
		}
	}
}

// TestNewFetchClient tests HTTP client creation from config.
func TestNewFetchClient(t *testing.T) {
	t.Parallel()

	t.Run("direct connection", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.Timeout = 3 * time.Second
		client, err := newFetchClient(cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.ProxyAddress() != "" {
			t.Errorf("ProxyAddress() = %q", client.ProxyAddress())
		}
		if client.Timeout() != 3*time.Second {
			t.Errorf("Timeout() = %v", client.Timeout())
		}
	})

	t.Run("invalid proxy", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.ProxyAddress = "localhost"
		if _, err := newFetchClient(cfg); err == nil {
			t.Error("expected error for proxy without port")
		}
	})
}

// TestOpenOutput tests report destination handling.
func TestOpenOutput(t *testing.T) {
	t.Parallel()

	t.Run("stdout when no path", func(t *testing.T) {
		t.Parallel()

		var stdout bytes.Buffer
		w, closeFn, err := openOutput("", &stdout)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer closeFn()

		_, _ = io.WriteString(w, "hello")
		if stdout.String() != "hello" {
			t.Errorf("got %q", stdout.String())
		}
	})

	t.Run("creates directories and file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "reports", "nested", "out.txt")
		w, closeFn, err := openOutput(path, io.Discard)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, _ = io.WriteString(w, "report")
		closeFn()

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("expected file to exist: %v", err)
		}
		if info.Mode().Perm() != 0o600 {
			t.Errorf("expected 0600 permissions, got %o", info.Mode().Perm())
		}
	})
}

// discardLogger returns a logger that drops everything.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestSite serves a page with a valid script, a stylesheet without
// integrity and a script whose hash does not match.
func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()

	script := []byte("console.log('a');\n")
	integrity, err := sri.Integrity(script, sri.AlgorithmSHA384)
	if err != nil {
		t.Fatalf("Integrity failed: %v", err)
	}

	page := `<!DOCTYPE html>
<html>
<head>
  <link rel="stylesheet" href="b.css">
  <script src="a.js" integrity="` + integrity + `" crossorigin="anonymous"></script>
  <script src="c.js" integrity="sha256-ungWv48Bz+pBQUDeXa4iI7ADYaOWF3qctBD/YfIAFa0="></script>
</head>
<body></body>
</html>`

	mux := http.NewServeMux()
	mux.HandleFunc("/index.html", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, page)
	})
	mux.HandleFunc("/clean.html", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, `<script src="a.js" integrity="`+integrity+`"></script>`)
	})
	mux.HandleFunc("/a.js", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(script)
	})
	mux.HandleFunc("/b.css", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "body{color:red}")
	})
	mux.HandleFunc("/c.js", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "alert('tampered');")
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// newTestScanConfig returns a valid config for the given targets.
func newTestScanConfig(targets ...string) *config.Config {
	cfg := config.NewConfig()
	cfg.Timeout = 5 * time.Second
	cfg.Targets = targets
	return cfg
}

// TestRunScan tests end-to-end scans against a local server.
func TestRunScan(t *testing.T) {
	t.Parallel()

	server := newTestSite(t)

	t.Run("text report lists findings in document order", func(t *testing.T) {
		t.Parallel()

		var stdout bytes.Buffer
		cfg := newTestScanConfig(server.URL + "/index.html")
		if err := runScan(context.Background(), cfg, &stdout, discardLogger()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		expected := "<script> - Calculated hash does not match expected hash!: c.js\n" +
			"<link> - Missing SRI hash: b.css\n"
		if stdout.String() != expected {
			t.Errorf("got:\n%s\nexpected:\n%s", stdout.String(), expected)
		}
	})

	t.Run("valid page produces no output", func(t *testing.T) {
		t.Parallel()

		var stdout bytes.Buffer
		cfg := newTestScanConfig(server.URL + "/clean.html")
		if err := runScan(context.Background(), cfg, &stdout, discardLogger()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stdout.Len() != 0 {
			t.Errorf("expected no output, got %q", stdout.String())
		}
	})

	t.Run("unreachable page is skipped", func(t *testing.T) {
		t.Parallel()

		var stdout bytes.Buffer
		cfg := newTestScanConfig(server.URL+"/missing.html", server.URL+"/index.html")
		cfg.FailOnFindings = true

		err := runScan(context.Background(), cfg, &stdout, discardLogger())
		if !errors.Is(err, ErrFindingsFound) {
			t.Fatalf("expected ErrFindingsFound, got %v", err)
		}
		if !strings.Contains(stdout.String(), "Missing SRI hash: b.css") {
			t.Errorf("expected findings of the second page, got %q", stdout.String())
		}
	})

	t.Run("fail on findings passes for clean pages", func(t *testing.T) {
		t.Parallel()

		cfg := newTestScanConfig(server.URL + "/clean.html")
		cfg.FailOnFindings = true
		if err := runScan(context.Background(), cfg, io.Discard, discardLogger()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("kinds filter", func(t *testing.T) {
		t.Parallel()

		var stdout bytes.Buffer
		cfg := newTestScanConfig(server.URL + "/index.html")
		cfg.Kinds = []model.Kind{model.KindStylesheet}
		if err := runScan(context.Background(), cfg, &stdout, discardLogger()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stdout.String() != "<link> - Missing SRI hash: b.css\n" {
			t.Errorf("got %q", stdout.String())
		}
	})

	t.Run("parallel verification keeps order", func(t *testing.T) {
		t.Parallel()

		var stdout bytes.Buffer
		cfg := newTestScanConfig(server.URL + "/index.html")
		cfg.Concurrency = 4
		cfg.ShowValid = true
		if err := runScan(context.Background(), cfg, &stdout, discardLogger()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
		expected := []string{
			"<script> - Valid SRI hash: a.js",
			"<script> - Calculated hash does not match expected hash!: c.js",
			"<link> - Missing SRI hash: b.css",
		}
		if strings.Join(lines, "\n") != strings.Join(expected, "\n") {
			t.Errorf("got %v, expected %v", lines, expected)
		}
	})

	t.Run("summary is appended", func(t *testing.T) {
		t.Parallel()

		var stdout bytes.Buffer
		cfg := newTestScanConfig(server.URL + "/index.html")
		cfg.ShowSummary = true
		if err := runScan(context.Background(), cfg, &stdout, discardLogger()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout.String(), "TOTAL:    2 findings") {
			t.Errorf("expected summary, got:\n%s", stdout.String())
		}
	})

	t.Run("json report to file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "out", "report.json")
		cfg := newTestScanConfig(server.URL + "/index.html")
		cfg.JSONReport = true
		cfg.ReportFile = path

		var stdout bytes.Buffer
		if err := runScan(context.Background(), cfg, &stdout, discardLogger()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stdout.Len() != 0 {
			t.Errorf("expected nothing on stdout, got %q", stdout.String())
		}

		data, err := os.ReadFile(path) //nolint:gosec // test file in temp dir
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}
		var parsed report.JSONReport
		if err := json.Unmarshal(data, &parsed); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(parsed.Pages) != 1 || len(parsed.Pages[0].Outcomes) != 3 {
			t.Fatalf("unexpected report: %+v", parsed)
		}
		if parsed.Summary == nil || parsed.Summary.Findings != 2 {
			t.Errorf("unexpected summary %+v", parsed.Summary)
		}
	})

	t.Run("sarif report", func(t *testing.T) {
		t.Parallel()

		var stdout bytes.Buffer
		cfg := newTestScanConfig(server.URL + "/index.html")
		cfg.SARIFReport = true
		if err := runScan(context.Background(), cfg, &stdout, discardLogger()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout.String(), `"sri/hash_mismatch"`) {
			t.Errorf("expected SARIF rule, got:\n%s", stdout.String())
		}
	})

	t.Run("markdown report", func(t *testing.T) {
		t.Parallel()

		var stdout bytes.Buffer
		cfg := newTestScanConfig(server.URL + "/index.html")
		cfg.MarkdownReport = true
		if err := runScan(context.Background(), cfg, &stdout, discardLogger()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout.String(), "# SRI Check Report") {
			t.Errorf("expected markdown header, got:\n%s", stdout.String())
		}
	})

	t.Run("save to database", func(t *testing.T) {
		t.Parallel()

		cfg := newTestScanConfig(server.URL + "/index.html")
		cfg.SaveToDB = true
		cfg.DBDir = t.TempDir()
		if err := runScan(context.Background(), cfg, io.Discard, discardLogger()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		saved, err := db.GetLatestScanReport(context.Background(), server.URL+"/index.html")
		if err != nil {
			t.Fatalf("GetLatestScanReport failed: %v", err)
		}
		if saved == nil || len(saved.Findings()) != 2 {
			t.Errorf("unexpected saved report %+v", saved)
		}
	})

	t.Run("cancelled context still reports", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		cfg := newTestScanConfig(server.URL + "/index.html")
		cfg.JSONReport = true

		var stdout bytes.Buffer
		if err := runScan(ctx, cfg, &stdout, discardLogger()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout.String(), `"pages"`) {
			t.Errorf("expected a report for the partial scan, got %q", stdout.String())
		}
	})
}

// TestRunScanCmdConfigError tests that configuration errors end the command.
func TestRunScanCmdConfigError(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"scan", "--json", "--markdown", "https://example.com/"})

	err := cmd.Execute()
	if !errors.Is(err, config.ErrConflictingReportFormats) {
		t.Errorf("expected ErrConflictingReportFormats, got %v", err)
	}
}
