package sri

import "errors"

// Integrity verification errors.
// These errors are carried in model.Outcome.Err so that callers can tell
// the failure modes apart with errors.Is().
var (
	// ErrUnsupportedAlgorithm is returned when a digest is requested for an
	// algorithm other than sha256, sha384 or sha512.
	ErrUnsupportedAlgorithm = errors.New("unsupported integrity algorithm")

	// ErrEmptyIntegrity is returned when the integrity value is empty or
	// only whitespace. The Verifier reports such references as missing
	// integrity before the parser is called.
	ErrEmptyIntegrity = errors.New("empty integrity value")

	// ErrMalformedIntegrity is returned when the integrity value has no
	// "-" separator between algorithm and digest.
	ErrMalformedIntegrity = errors.New("malformed integrity value: expected <algorithm>-<base64 digest>")

	// ErrHashMismatch is returned when the computed digest differs from the
	// declared one.
	ErrHashMismatch = errors.New("calculated hash does not match expected hash")
)
