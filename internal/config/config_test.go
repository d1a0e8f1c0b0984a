package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/sricheck/internal/model"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default Timeout is 30 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 30*time.Second {
			t.Errorf("expected 30s, got %v", cfg.Timeout)
		}
	})

	t.Run("default Concurrency is sequential", func(t *testing.T) {
		t.Parallel()
		if cfg.Concurrency != 1 {
			t.Errorf("expected 1, got %d", cfg.Concurrency)
		}
	})

	t.Run("default MaxBodySize is 10MB", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxBodySize != 10*1024*1024 {
			t.Errorf("expected 10MB, got %d", cfg.MaxBodySize)
		}
	})

	t.Run("default kinds are script and stylesheet", func(t *testing.T) {
		t.Parallel()
		if len(cfg.Kinds) != 2 || cfg.Kinds[0] != model.KindScript || cfg.Kinds[1] != model.KindStylesheet {
			t.Errorf("unexpected kinds %v", cfg.Kinds)
		}
	})

	t.Run("history is opt-in", func(t *testing.T) {
		t.Parallel()
		if cfg.SaveToDB {
			t.Error("expected SaveToDB to be false")
		}
		if cfg.DBDir == "" {
			t.Error("expected DBDir to default to the XDG data dir")
		}
	})
}

// TestConfigValidate tests configuration validation.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.Targets = []string{"https://example.com/"}
		return cfg
	}

	testCases := []struct {
		name     string
		modify   func(*Config)
		expected error
	}{
		{"valid config returns nil", func(*Config) {}, nil},
		{"multiple targets is valid", func(c *Config) { c.Targets = append(c.Targets, "https://example.org/") }, nil},
		{"empty targets returns ErrNoTarget", func(c *Config) { c.Targets = nil }, ErrNoTarget},
		{"zero timeout returns ErrInvalidTimeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidTimeout},
		{"negative timeout returns ErrInvalidTimeout", func(c *Config) { c.Timeout = -time.Second }, ErrInvalidTimeout},
		{"zero concurrency returns ErrInvalidConcurrency", func(c *Config) { c.Concurrency = 0 }, ErrInvalidConcurrency},
		{"negative body size returns ErrInvalidMaxBodySize", func(c *Config) { c.MaxBodySize = -1 }, ErrInvalidMaxBodySize},
		{"zero body size is valid", func(c *Config) { c.MaxBodySize = 0 }, nil},
		{"no kinds returns ErrNoKinds", func(c *Config) { c.Kinds = nil }, ErrNoKinds},
		{"json only is valid", func(c *Config) { c.JSONReport = true }, nil},
		{"sarif only is valid", func(c *Config) { c.SARIFReport = true }, nil},
		{
			"json and markdown returns ErrConflictingReportFormats",
			func(c *Config) { c.JSONReport, c.MarkdownReport = true, true },
			ErrConflictingReportFormats,
		},
		{
			"markdown and sarif returns ErrConflictingReportFormats",
			func(c *Config) { c.MarkdownReport, c.SARIFReport = true, true },
			ErrConflictingReportFormats,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tc.modify(cfg)

			err := cfg.Validate()
			if tc.expected == nil {
				if err != nil {
					t.Errorf("expected nil, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.expected) {
				t.Errorf("expected %v, got %v", tc.expected, err)
			}
		})
	}
}

// TestFileGetSiteConfig tests merging of site and default configuration.
func TestFileGetSiteConfig(t *testing.T) {
	t.Parallel()

	cf := &File{
		Defaults: SiteConfig{
			Cookie:  "default=1",
			Headers: map[string]string{"X-Default": "d", "X-Shared": "default"},
			Skip:    []string{"/vendor/*"},
		},
		Sites: map[string]SiteConfig{
			"app.example.com": {
				Cookie:  "session=xyz",
				Headers: map[string]string{"X-Shared": "site"},
				Kinds:   []string{"script"},
			},
		},
	}

	t.Run("returns defaults when site not found", func(t *testing.T) {
		t.Parallel()

		sc := cf.GetSiteConfig("other.example.com")
		if sc.Cookie != "default=1" || len(sc.Skip) != 1 || len(sc.Kinds) != 0 {
			t.Errorf("unexpected config %+v", sc)
		}
	})

	t.Run("site values override defaults", func(t *testing.T) {
		t.Parallel()

		sc := cf.GetSiteConfig("app.example.com")
		if sc.Cookie != "session=xyz" {
			t.Errorf("Cookie = %q", sc.Cookie)
		}
		if sc.Headers["X-Default"] != "d" || sc.Headers["X-Shared"] != "site" {
			t.Errorf("unexpected headers %v", sc.Headers)
		}
		if len(sc.Kinds) != 1 || sc.Kinds[0] != "script" {
			t.Errorf("unexpected kinds %v", sc.Kinds)
		}
		if len(sc.Skip) != 1 || sc.Skip[0] != "/vendor/*" {
			t.Errorf("skip should fall back to defaults, got %v", sc.Skip)
		}
	})

	t.Run("merging does not modify defaults", func(t *testing.T) {
		t.Parallel()

		_ = cf.GetSiteConfig("app.example.com")
		if cf.Defaults.Headers["X-Shared"] != "default" {
			t.Error("defaults were modified by a merge")
		}
	})

	t.Run("host lookup is case-insensitive", func(t *testing.T) {
		t.Parallel()

		if sc := cf.GetSiteConfig("APP.example.com"); sc.Cookie != "session=xyz" {
			t.Errorf("Cookie = %q", sc.Cookie)
		}
	})

	t.Run("page URL resolves to its host", func(t *testing.T) {
		t.Parallel()

		if sc := cf.GetPageConfig("https://app.example.com:8443/login?next=/"); sc.Cookie != "session=xyz" {
			t.Errorf("Cookie = %q", sc.Cookie)
		}
		if sc := cf.GetPageConfig("://bad"); sc.Cookie != "default=1" {
			t.Errorf("Cookie = %q", sc.Cookie)
		}
	})

	t.Run("nil sites map", func(t *testing.T) {
		t.Parallel()

		empty := &File{}
		sc := empty.GetSiteConfig("app.example.com")
		if sc.Cookie != "" || sc.Headers != nil {
			t.Errorf("unexpected config %+v", sc)
		}
	})
}

// TestParseKinds tests kind name parsing.
func TestParseKinds(t *testing.T) {
	t.Parallel()

	t.Run("parses names and aliases", func(t *testing.T) {
		t.Parallel()

		kinds, err := ParseKinds([]string{"Script", " css ", "stylesheet", ""})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(kinds) != 2 || kinds[0] != model.KindScript || kinds[1] != model.KindStylesheet {
			t.Errorf("unexpected kinds %v", kinds)
		}
	})

	t.Run("unknown kind returns UnknownKindError", func(t *testing.T) {
		t.Parallel()

		_, err := ParseKinds([]string{"script", "img"})
		var kindErr *model.UnknownKindError
		if !errors.As(err, &kindErr) {
			t.Fatalf("expected UnknownKindError, got %v", err)
		}
		if kindErr.Value != "img" {
			t.Errorf("Value = %q", kindErr.Value)
		}
	})
}

// TestLoadConfigFile tests the LoadConfigFile function.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	writeConfig := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		return path
	}

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.sricheck")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, `defaults:
  kinds: [script, stylesheet]
  skip:
    - "/vendor/*"
sites:
  App.Example.com:
    cookie: "session=xyz"
    headers:
      Authorization: "Bearer token"
    kinds: [script]
`)

		cfg, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(cfg.Defaults.Kinds) != 2 || len(cfg.Defaults.Skip) != 1 {
			t.Errorf("unexpected defaults %+v", cfg.Defaults)
		}

		site, ok := cfg.Sites["app.example.com"]
		if !ok {
			t.Fatal("expected lower-cased host in sites")
		}
		if site.Headers["Authorization"] != "Bearer token" {
			t.Errorf("expected Authorization header")
		}
		if site.Cookie != "session=xyz" {
			t.Errorf("Cookie = %q", site.Cookie)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, `invalid: yaml: content: [}`)
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("returns error for unknown kind", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, `sites:
  example.com:
    kinds: [image]
`)
		_, err := LoadConfigFile(path)
		if err == nil || !strings.Contains(err.Error(), "example.com") {
			t.Errorf("expected error naming the site, got %v", err)
		}
	})

	t.Run("initializes nil Sites map", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile(writeConfig(t, "defaults:\n  cookie: a=b\n"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Sites == nil {
			t.Error("expected Sites map to be initialized")
		}
	})
}

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Run("returns explicit path if exists", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("defaults: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if result := FindConfigFile(configPath); result != configPath {
			t.Errorf("expected %q, got %q", configPath, result)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		if result := FindConfigFile("/nonexistent/path/config.yaml"); result != "" {
			t.Errorf("expected empty string, got %q", result)
		}
	})

	t.Run("finds config in current directory", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("defaults: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		t.Chdir(dir)

		result := FindConfigFile("")
		if filepath.Base(result) != DefaultConfigFile || filepath.Dir(result) == "" {
			t.Errorf("expected config in %s, got %q", dir, result)
		}
	})
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	for name, dir := range map[string]string{"data": XDGDataDir(), "config": XDGConfigDir()} {
		if filepath.Base(dir) != AppName {
			t.Errorf("%s dir %q should end with %q", name, dir, AppName)
		}
	}
}
