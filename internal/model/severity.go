package model

// Severity represents the risk level of a finding.
//
// Design decision: We use iota-based constants rather than string constants
// for efficiency in comparisons and sorting. The String() method provides
// human-readable output when needed.
type Severity int

const (
	// SeverityInfo indicates informational outcomes with no security impact,
	// such as a correctly protected resource.
	SeverityInfo Severity = iota

	// SeverityLow indicates problems that prevented verification but do not
	// by themselves show that a resource is unprotected.
	// Examples: the resource could not be fetched.
	SeverityLow

	// SeverityMedium indicates a hash that browsers may reject or treat
	// inconsistently. Example: a non SHA-2 algorithm.
	SeverityMedium

	// SeverityHigh indicates a resource that is loaded without integrity
	// protection at all.
	SeverityHigh

	// SeverityCritical indicates a declared hash that does not match the
	// served content, i.e. the resource changed or was tampered with.
	SeverityCritical
)

// String returns a human-readable representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// FindingInfo contains metadata about a status including severity,
// impact description, and remediation recommendation.
type FindingInfo struct {
	Severity       Severity
	Title          string
	Impact         string
	Recommendation string
}

// findingInfoMapping maps statuses to their metadata.
// This centralized mapping keeps risk assessment consistent between the
// Markdown, SARIF and history outputs.
var findingInfoMapping = map[Status]FindingInfo{
	StatusHashMismatch: {
		Severity:       SeverityCritical,
		Title:          "Integrity hash mismatch",
		Impact:         "Browsers refuse to load the resource, or the resource was modified after the hash was published.",
		Recommendation: "Verify the resource has not been tampered with, then regenerate the integrity hash from the served file.",
	},
	StatusMissingIntegrity: {
		Severity:       SeverityHigh,
		Title:          "Missing SRI hash",
		Impact:         "A compromised host or CDN can serve modified code that the page will execute or apply without complaint.",
		Recommendation: "Add an integrity attribute (e.g. sha384-...) and crossorigin=\"anonymous\" to the element.",
	},
	StatusUnsupportedAlgorithm: {
		Severity:       SeverityMedium,
		Title:          "Unsupported integrity algorithm",
		Impact:         "Browsers ignore integrity metadata for unknown algorithms, so the resource is effectively unprotected.",
		Recommendation: "Use sha256, sha384 or sha512 for integrity hashes.",
	},
	StatusFetchFailed: {
		Severity:       SeverityLow,
		Title:          "Resource could not be fetched",
		Impact:         "The declared hash could not be verified against the served content.",
		Recommendation: "Check that the resource URL is reachable and returns a successful status.",
	},
	StatusMissingResourceAttribute: {
		Severity:       SeverityLow,
		Title:          "Missing resource URL",
		Impact:         "The element references no resource, so its integrity attribute cannot be checked.",
		Recommendation: "Remove the element or give it a src/href attribute.",
	},
	StatusValid: {
		Severity:       SeverityInfo,
		Title:          "Valid SRI hash",
		Impact:         "The resource matches its declared integrity hash.",
		Recommendation: "No action needed.",
	},
}

// GetSeverity returns the severity level for a status.
// Returns SeverityCritical for statuses missing from the mapping.
func GetSeverity(status Status) Severity {
	if info, ok := findingInfoMapping[status]; ok {
		return info.Severity
	}
	return SeverityCritical
}

// GetFindingInfo returns the full finding information for a status.
func GetFindingInfo(status Status) FindingInfo {
	if info, ok := findingInfoMapping[status]; ok {
		return info
	}
	return FindingInfo{
		Severity:       SeverityCritical,
		Title:          "Unknown verification result",
		Impact:         "Unknown verification result. Review manually.",
		Recommendation: "Investigate the resource and its integrity attribute.",
	}
}
