package markup

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/nao1215/sricheck/internal/model"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// Extractor finds script and stylesheet references in HTML content.
type Extractor struct {
	// kinds limits which element kinds are extracted. Empty means all.
	kinds map[model.Kind]bool

	// skipPatterns are glob patterns matched against resolved resource URLs.
	// Matching references are dropped.
	skipPatterns []string
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithKinds restricts extraction to the given kinds.
func WithKinds(kinds ...model.Kind) Option {
	return func(e *Extractor) {
		if len(kinds) == 0 {
			return
		}
		e.kinds = make(map[model.Kind]bool, len(kinds))
		for _, k := range kinds {
			e.kinds[k] = true
		}
	}
}

// WithSkipPatterns drops references whose URL path matches any pattern.
// Patterns use path.Match syntax plus two shorthands: "/dir/*" matches
// everything below /dir, and "*.ext" matches any file with that extension.
func WithSkipPatterns(patterns []string) Option {
	return func(e *Extractor) {
		e.skipPatterns = append([]string(nil), patterns...)
	}
}

// NewExtractor creates an Extractor. By default both kinds are extracted.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract parses content and returns the references found in it.
//
// pageURL is used to resolve relative resource URLs. An empty or unparsable
// pageURL leaves ResolvedURL empty, so fetching falls back to the raw value.
func (e *Extractor) Extract(pageURL string, content io.Reader) ([]model.Reference, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	base := resolveBase(pageURL, findBaseHref(doc))

	var scripts, stylesheets []model.Reference

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if kind, ok := elementKind(n); ok {
			if raw, ok := getAttr(n, kind.URLAttribute()); ok {
				ref := newReference(kind, raw, n, base)
				if kind == model.KindScript {
					scripts = append(scripts, ref)
				} else {
					stylesheets = append(stylesheets, ref)
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	refs := make([]model.Reference, 0, len(scripts)+len(stylesheets))
	for _, group := range [][]model.Reference{scripts, stylesheets} {
		for _, ref := range group {
			if !e.wants(ref) {
				continue
			}
			ref.Index = len(refs)
			refs = append(refs, ref)
		}
	}

	return refs, nil
}

// ExtractBytes decodes body using contentType and extracts references from it.
func (e *Extractor) ExtractBytes(pageURL string, body []byte, contentType string) ([]model.Reference, error) {
	reader, err := DecodeBody(body, contentType)
	if err != nil {
		return nil, err
	}
	return e.Extract(pageURL, reader)
}

// DecodeBody returns a UTF-8 reader for an HTML body.
// The encoding is taken from contentType, a BOM, or a <meta charset> tag,
// falling back to windows-1252 as browsers do.
func DecodeBody(body []byte, contentType string) (io.Reader, error) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to decode page body: %w", err)
	}
	return reader, nil
}

// wants reports whether ref passes the kind and skip filters.
func (e *Extractor) wants(ref model.Reference) bool {
	if len(e.kinds) > 0 && !e.kinds[ref.Kind] {
		return false
	}
	if len(e.skipPatterns) == 0 || ref.ResourceURL == "" {
		return true
	}

	target := ref.FetchURL()
	if u, err := url.Parse(target); err == nil && u.Path != "" {
		target = u.Path
	}
	for _, pattern := range e.skipPatterns {
		if matchPattern(pattern, target) {
			return false
		}
	}
	return true
}

// elementKind reports which kind of reference n is, if any.
func elementKind(n *html.Node) (model.Kind, bool) {
	if n.Type != html.ElementNode {
		return 0, false
	}
	switch n.Data {
	case "script":
		return model.KindScript, true
	case "link":
		if isStylesheet(n) {
			return model.KindStylesheet, true
		}
	}
	return 0, false
}

// newReference builds a Reference from an element.
func newReference(kind model.Kind, rawURL string, n *html.Node, base *url.URL) model.Reference {
	rawURL = strings.TrimSpace(rawURL)
	integrity, hasIntegrity := getAttr(n, "integrity")

	return model.Reference{
		Kind:         kind,
		ResourceURL:  rawURL,
		ResolvedURL:  resolveURL(base, rawURL),
		Integrity:    integrity,
		HasIntegrity: hasIntegrity && strings.TrimSpace(integrity) != "",
	}
}

// isStylesheet reports whether a <link> element's rel contains the
// "stylesheet" token. Matching is ASCII case-insensitive per HTML.
func isStylesheet(n *html.Node) bool {
	rel, ok := getAttr(n, "rel")
	if !ok {
		return false
	}
	for _, token := range strings.Fields(rel) {
		if strings.EqualFold(token, "stylesheet") {
			return true
		}
	}
	return false
}

// findBaseHref returns the href of the first <base> element with one.
func findBaseHref(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "base" {
		if href, ok := getAttr(n, "href"); ok && strings.TrimSpace(href) != "" {
			return strings.TrimSpace(href)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if href := findBaseHref(c); href != "" {
			return href
		}
	}
	return ""
}

// resolveBase returns the URL relative references are resolved against.
func resolveBase(pageURL, baseHref string) *url.URL {
	page, err := url.Parse(pageURL)
	if err != nil || pageURL == "" {
		page = nil
	}

	if baseHref == "" {
		return page
	}

	href, err := url.Parse(baseHref)
	if err != nil {
		return page
	}
	if page == nil {
		if href.IsAbs() {
			return href
		}
		return nil
	}
	return page.ResolveReference(href)
}

// resolveURL resolves a relative URL against the base URL.
// It returns "" when there is nothing to resolve against or the value is not a URL.
func resolveURL(base *url.URL, raw string) string {
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base == nil {
		if u.IsAbs() {
			return u.String()
		}
		return ""
	}
	return base.ResolveReference(u).String()
}

// matchPattern reports whether urlPath matches a skip pattern.
func matchPattern(pattern, urlPath string) bool {
	// For patterns like "/vendor/*", we want to match "/vendor/anything/below"
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if strings.HasPrefix(urlPath, prefix+"/") || urlPath == prefix {
			return true
		}
	}

	// Extension patterns like "*.min.js"
	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") && !strings.ContainsAny(ext, "*?[/") {
		if strings.HasSuffix(urlPath, ext) {
			return true
		}
	}

	matched, err := path.Match(pattern, urlPath)
	if err == nil && matched {
		return true
	}

	// Patterns without a slash also match the last path segment
	if !strings.Contains(pattern, "/") {
		matched, err := path.Match(pattern, path.Base(urlPath))
		if err == nil && matched {
			return true
		}
	}

	return false
}

// getAttr retrieves an attribute value from an HTML node and whether it is present.
func getAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Namespace == "" && attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}
