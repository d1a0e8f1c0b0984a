package model

// Kind identifies which markup element a Reference was extracted from.
type Kind int

const (
	// KindScript is a <script src="..."> element.
	KindScript Kind = iota

	// KindStylesheet is a <link rel="stylesheet" href="..."> element.
	KindStylesheet
)

// String returns the lower-case kind name used in configuration and JSON.
func (k Kind) String() string {
	switch k {
	case KindScript:
		return "script"
	case KindStylesheet:
		return "stylesheet"
	default:
		return "unknown"
	}
}

// Tag returns the element as it appears in the line-oriented text report.
func (k Kind) Tag() string {
	switch k {
	case KindScript:
		return "<script>"
	case KindStylesheet:
		return "<link>"
	default:
		return "<unknown>"
	}
}

// URLAttribute returns the attribute that carries the resource URL for this kind.
func (k Kind) URLAttribute() string {
	if k == KindStylesheet {
		return "href"
	}
	return "src"
}

// ParseKind converts a kind name ("script", "stylesheet") into a Kind.
// "link" and "css" are accepted as aliases for stylesheets.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "script", "js":
		return KindScript, true
	case "stylesheet", "link", "css":
		return KindStylesheet, true
	default:
		return 0, false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, ok := ParseKind(string(text))
	if !ok {
		return &UnknownKindError{Value: string(text)}
	}
	*k = parsed
	return nil
}

// UnknownKindError is returned when a kind name cannot be parsed.
type UnknownKindError struct {
	Value string
}

func (e *UnknownKindError) Error() string {
	return "unknown resource kind: " + e.Value
}

// Reference is one script or stylesheet reference extracted from a page.
// It is created during markup extraction and never modified afterwards.
type Reference struct {
	// Kind is the element type.
	Kind Kind `json:"kind"`

	// ResourceURL is the raw src/href attribute value as written in the markup.
	// It is echoed verbatim in reports. Empty when the attribute is absent.
	ResourceURL string `json:"resource_url"`

	// ResolvedURL is ResourceURL resolved against the page (or <base>) URL.
	// This is the URL that is actually fetched. Falls back to ResourceURL
	// when no base URL is known.
	ResolvedURL string `json:"resolved_url,omitempty"`

	// Integrity is the raw integrity attribute value.
	Integrity string `json:"integrity,omitempty"`

	// HasIntegrity reports whether the integrity attribute was present at all.
	// An attribute that is present but empty is treated as missing.
	HasIntegrity bool `json:"has_integrity"`

	// Index is the position of the reference in extraction order.
	Index int `json:"index"`
}

// FetchURL returns the URL to download for this reference.
func (r Reference) FetchURL() string {
	if r.ResolvedURL != "" {
		return r.ResolvedURL
	}
	return r.ResourceURL
}
