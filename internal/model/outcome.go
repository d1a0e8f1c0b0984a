package model

// Status is the verdict of verifying one Reference.
type Status int

const (
	// StatusValid means the declared hash matches the fetched content.
	StatusValid Status = iota

	// StatusMissingIntegrity means the element carries no (or an empty) integrity attribute.
	StatusMissingIntegrity

	// StatusMissingResourceAttribute means the element has no src/href value.
	StatusMissingResourceAttribute

	// StatusFetchFailed means the resource could not be downloaded.
	StatusFetchFailed

	// StatusUnsupportedAlgorithm means the integrity algorithm is not sha256, sha384 or sha512.
	StatusUnsupportedAlgorithm

	// StatusHashMismatch means the computed digest differs from the declared one,
	// or the integrity value could not be parsed at all.
	StatusHashMismatch
)

// statusNames is indexed by Status.
var statusNames = [...]string{
	StatusValid:                    "valid",
	StatusMissingIntegrity:         "missing_integrity",
	StatusMissingResourceAttribute: "missing_resource_attribute",
	StatusFetchFailed:              "fetch_failed",
	StatusUnsupportedAlgorithm:     "unsupported_algorithm",
	StatusHashMismatch:             "hash_mismatch",
}

// AllStatuses lists every status in declaration order.
var AllStatuses = []Status{
	StatusValid,
	StatusMissingIntegrity,
	StatusMissingResourceAttribute,
	StatusFetchFailed,
	StatusUnsupportedAlgorithm,
	StatusHashMismatch,
}

// String returns the snake_case identifier of the status.
func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// IsFinding reports whether the status should appear in a findings report.
func (s Status) IsFinding() bool {
	return s != StatusValid
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
// Unknown names decode to StatusHashMismatch so that a stored report never
// turns an unrecognised failure into a pass.
func (s *Status) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if name == string(text) {
			*s = Status(i)
			return nil
		}
	}
	*s = StatusHashMismatch
	return nil
}

// Outcome is the result of verifying a single Reference.
type Outcome struct {
	// Status is the verdict.
	Status Status `json:"status"`

	// Detail is the human-readable message printed in reports.
	Detail string `json:"detail"`

	// ResourceURL echoes Reference.ResourceURL.
	ResourceURL string `json:"resource_url"`

	// Kind echoes Reference.Kind.
	Kind Kind `json:"kind"`

	// Index echoes Reference.Index and restores document order after
	// parallel verification.
	Index int `json:"index"`

	// Algorithm is the declared algorithm token, when one could be parsed.
	Algorithm string `json:"algorithm,omitempty"`

	// Expected is the declared base64 digest.
	Expected string `json:"expected,omitempty"`

	// Actual is the computed base64 digest, set only when the resource was hashed.
	Actual string `json:"actual,omitempty"`

	// Err is the underlying error for failed verifications.
	Err error `json:"-"`
}

// Severity returns the severity assigned to the outcome's status.
func (o Outcome) Severity() Severity {
	return GetSeverity(o.Status)
}
