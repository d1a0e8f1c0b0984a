package config

import (
	"maps"
	"net/url"
	"strings"

	"github.com/nao1215/sricheck/internal/model"
)

// SiteConfig holds configuration for pages on a single host.
type SiteConfig struct {
	// Cookie is an HTTP cookie sent with requests to the page host.
	// Resources on other hosts are fetched without it.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers sent with requests to the page host.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Kinds restricts which references are checked ("script", "stylesheet").
	// If empty, the global kinds are used.
	Kinds []string `yaml:"kinds,omitempty"`

	// Skip are resource URL path patterns that are not checked.
	// Patterns use glob syntax, e.g. "/vendor/*" or "*.min.js".
	Skip []string `yaml:"skip,omitempty"`
}

// File represents the structure of the .sricheck configuration file.
type File struct {
	// Sites maps host names (e.g. "www.example.com") to their configuration.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults applies to all sites unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a host.
// It merges the site-specific configuration with defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	if cf.Defaults.Headers != nil {
		result.Headers = maps.Clone(cf.Defaults.Headers)
	}

	if siteConfig, ok := cf.Sites[strings.ToLower(host)]; ok {
		if siteConfig.Cookie != "" {
			result.Cookie = siteConfig.Cookie
		}
		if len(siteConfig.Headers) > 0 {
			if result.Headers == nil {
				result.Headers = make(map[string]string)
			}
			maps.Copy(result.Headers, siteConfig.Headers)
		}
		if len(siteConfig.Kinds) > 0 {
			result.Kinds = siteConfig.Kinds
		}
		if len(siteConfig.Skip) > 0 {
			result.Skip = siteConfig.Skip
		}
	}

	return result
}

// GetPageConfig returns the configuration for the host of pageURL.
// Unparsable URLs get the defaults.
func (cf *File) GetPageConfig(pageURL string) SiteConfig {
	u, err := url.Parse(pageURL)
	if err != nil {
		return cf.GetSiteConfig("")
	}
	return cf.GetSiteConfig(u.Hostname())
}

// ParseKinds converts kind names into model kinds, dropping duplicates.
func ParseKinds(names []string) ([]model.Kind, error) {
	kinds := make([]model.Kind, 0, len(names))
	seen := make(map[model.Kind]bool)
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		kind, ok := model.ParseKind(name)
		if !ok {
			return nil, &model.UnknownKindError{Value: name}
		}
		if !seen[kind] {
			seen[kind] = true
			kinds = append(kinds, kind)
		}
	}
	return kinds, nil
}
