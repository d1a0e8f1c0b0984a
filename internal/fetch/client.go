package fetch

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

const (
	// DefaultTimeout bounds a single request including reading the body.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodySize is the largest body that will be read (10MB).
	DefaultMaxBodySize int64 = 10 * 1024 * 1024

	// DefaultUserAgent identifies the tool honestly; SRI checks are not stealth scans.
	DefaultUserAgent = "sricheck/1.0 (+https://github.com/nao1215/sricheck)"

	// maxRedirects limits redirect chains to prevent loops.
	maxRedirects = 10
)

// Page is a fetched HTML document.
type Page struct {
	// URL is the final URL after redirects. Relative references resolve against it.
	URL string

	// StatusCode is the HTTP status of the final response.
	StatusCode int

	// ContentType is the Content-Type header, used for charset detection.
	ContentType string

	// Body is the raw, undecoded response body.
	Body []byte
}

// Client fetches pages and resources.
//
// Design decision: We keep one http.Client per Client so that connection
// pooling is shared by every resource of a scan. Per-site headers are
// applied per request via ForSite, which returns a copy sharing the pool.
// They are sent only to the site's own host, never to CDNs or other
// third-party origins referenced by the page.
type Client struct {
	// httpClient performs the requests.
	httpClient *http.Client

	// userAgent is sent on every request.
	userAgent string

	// maxBodySize limits how much of a response body is read.
	maxBodySize int64

	// timeout is the per-request timeout.
	timeout time.Duration

	// proxyAddress is an optional SOCKS5 proxy in "host:port" format.
	proxyAddress string

	// siteHost is the host name that cookie and headers are scoped to.
	siteHost string

	// cookie is a raw cookie string sent to siteHost.
	cookie string

	// headers are extra request headers sent to siteHost.
	headers map[string]string
}

// Option configures a Client.
type Option func(*Client)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the maximum response body size.
// Zero or negative keeps the default.
func WithMaxBodySize(size int64) Option {
	return func(c *Client) {
		if size > 0 {
			c.maxBodySize = size
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithProxy routes all connections through a SOCKS5 proxy at "host:port".
func WithProxy(address string) Option {
	return func(c *Client) {
		c.proxyAddress = address
	}
}

// WithCookie sets a raw cookie string (e.g. "session_id=abc123").
func WithCookie(cookie string) Option {
	return func(c *Client) {
		c.cookie = cookie
	}
}

// WithHeaders sets extra request headers.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		c.headers = maps.Clone(headers)
	}
}

// WithHTTPClient replaces the underlying http.Client.
// The proxy option is ignored when a client is supplied.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a Client.
//
// This function validates the proxy address format but does not connect to
// the proxy. Connection problems surface as *Error on the first fetch.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		timeout:     DefaultTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		httpClient, err := newHTTPClient(c.proxyAddress)
		if err != nil {
			return nil, err
		}
		c.httpClient = httpClient
	}

	return c, nil
}

// newHTTPClient builds the default http.Client, optionally dialing through SOCKS5.
func newHTTPClient(proxyAddress string) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // DefaultTransport is always *http.Transport

	if proxyAddress != "" {
		if !isValidProxyAddress(proxyAddress) {
			return nil, ErrInvalidProxyAddress
		}

		// We use nil for auth because local SOCKS ports (Tor, ssh -D) typically don't require auth
		dialer, err := proxy.SOCKS5("tcp", proxyAddress, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}

		transport.Proxy = nil
		if contextDialer, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = contextDialer.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	}

	return &http.Client{
		Transport: transport,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

// isValidProxyAddress checks if the address is in valid "host:port" format.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return portNum >= 1 && portNum <= 65535
}

// ForSite returns a copy of the client that sends the given cookie and
// headers to host only. Requests to any other host, including redirect
// targets, go out without them. An empty host disables both.
// The copy shares the connection pool with c.
func (c *Client) ForSite(host, cookie string, headers map[string]string) *Client {
	clone := *c
	clone.siteHost = normalizeHost(host)
	clone.cookie = cookie
	clone.headers = maps.Clone(headers)
	return &clone
}

// normalizeHost lowercases a host name and drops a trailing dot.
func normalizeHost(host string) string {
	return strings.TrimSuffix(strings.ToLower(host), ".")
}

// hasSiteCredentials reports whether ForSite configured a cookie or headers.
func (c *Client) hasSiteCredentials() bool {
	return c.siteHost != "" && (c.cookie != "" || len(c.headers) > 0)
}

// isSiteHost reports whether u points at the host the site credentials belong to.
func (c *Client) isSiteHost(u *url.URL) bool {
	return c.siteHost != "" && normalizeHost(u.Hostname()) == c.siteHost
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// MaxBodySize returns the body size cap in bytes.
func (c *Client) MaxBodySize() int64 {
	return c.maxBodySize
}

// ProxyAddress returns the configured proxy address, or "" for direct connections.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// Fetch downloads rawURL and returns its body.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	page, err := c.get(ctx, rawURL, "*/*")
	if err != nil {
		return nil, err
	}
	return page.Body, nil
}

// FetchPage downloads an HTML page and returns it with its Content-Type and final URL.
func (c *Client) FetchPage(ctx context.Context, rawURL string) (*Page, error) {
	return c.get(ctx, rawURL, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
}

// get performs a single GET. No retries.
func (c *Client) get(ctx context.Context, rawURL, accept string) (*Page, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, &Error{URL: rawURL, Err: err}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, &Error{URL: rawURL, Err: ErrUnsupportedScheme}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, &Error{URL: rawURL, Err: err}
	}
	c.setHeaders(req, accept)

	resp, err := c.requestClient().Do(req)
	if err != nil {
		return nil, &Error{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	// Read one byte past the limit to tell "exactly at the cap" from "over the cap"
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return nil, &Error{URL: rawURL, Err: err}
	}
	if int64(len(body)) > c.maxBodySize {
		return nil, &Error{URL: rawURL, Err: fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, c.maxBodySize)}
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Page{
		URL:         finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// requestClient returns the http.Client for one request. With site
// credentials it wraps the redirect policy so that a redirect away from the
// site host drops them; net/http only strips Cookie and Authorization itself.
func (c *Client) requestClient() *http.Client {
	if !c.hasSiteCredentials() {
		return c.httpClient
	}

	httpClient := *c.httpClient
	next := httpClient.CheckRedirect
	httpClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if !c.isSiteHost(req.URL) {
			c.removeSiteHeaders(req.Header)
		}
		if next != nil {
			return next(req, via)
		}
		if len(via) >= maxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}
	return &httpClient
}

// removeSiteHeaders deletes the site cookie and extra headers from h.
func (c *Client) removeSiteHeaders(h http.Header) {
	if c.cookie != "" {
		h.Del("Cookie")
	}
	for key := range c.headers {
		h.Del(key)
	}
}

// setHeaders applies the user agent, and the site cookie and extra headers
// when req targets the site host.
func (c *Client) setHeaders(req *http.Request, accept string) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", accept)

	if !c.isSiteHost(req.URL) {
		return
	}

	if c.cookie != "" {
		if existing := req.Header.Get("Cookie"); existing != "" {
			req.Header.Set("Cookie", existing+"; "+c.cookie)
		} else {
			req.Header.Set("Cookie", c.cookie)
		}
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
}
