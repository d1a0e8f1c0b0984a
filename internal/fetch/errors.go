package fetch

import (
	"errors"
	"fmt"
)

// Fetch errors.
var (
	// ErrBodyTooLarge is returned when a response body exceeds the configured cap.
	ErrBodyTooLarge = errors.New("response body exceeds size limit")

	// ErrInvalidProxyAddress is returned when the proxy address format is invalid.
	// Expected format is "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrUnsupportedScheme is returned for URLs that are not http or https.
	// Relative URLs that could not be resolved against a page end up here too.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme: only http and https can be fetched")
)

// Error wraps a transport-level failure (DNS, connection, timeout, TLS)
// together with the URL that was being fetched.
type Error struct {
	URL string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %s", e.URL, e.Status)
}
