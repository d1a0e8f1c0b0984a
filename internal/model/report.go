package model

import "time"

// PageReport is the result of scanning a single page.
//
// Design decision: Outcomes keep every verdict including Valid ones so that
// JSON output and stored history can show what was checked, not only what
// failed. Findings() derives the non-Valid subset on demand.
type PageReport struct {
	// URL is the scanned page URL as given on the command line.
	URL string `json:"url"`

	// DateScanned is the timestamp when the scan was performed.
	DateScanned time.Time `json:"date_scanned"`

	// FinalURL is the page URL after redirects. Relative references resolve against it.
	FinalURL string `json:"final_url,omitempty"`

	// ContentType is the Content-Type header of the page response.
	ContentType string `json:"content_type,omitempty"`

	// Body is the decoded page markup. Excluded from JSON due to size.
	Body []byte `json:"-"`

	// References are the script and stylesheet references extracted from Body.
	References []Reference `json:"references,omitempty"`

	// Outcomes holds one verdict per reference, in document order.
	Outcomes []Outcome `json:"outcomes"`

	// TimedOut is true if the scan was cancelled before it finished.
	TimedOut bool `json:"timed_out"`

	// PerformedSteps lists the pipeline steps that completed.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// Error contains any page-level error, e.g. the page could not be fetched.
	Error error `json:"-"`

	// ErrorMessage is the string representation of Error for serialization.
	ErrorMessage string `json:"error,omitempty"` //nolint:tagliatelle // error is conventional
}

// NewPageReport creates a new report for the given page URL.
func NewPageReport(url string) *PageReport {
	return &PageReport{
		URL:         url,
		DateScanned: time.Now(),
		Outcomes:    make([]Outcome, 0),
	}
}

// SetError records a page-level error.
func (r *PageReport) SetError(err error) {
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// Findings returns the non-Valid outcomes in document order.
func (r *PageReport) Findings() []Outcome {
	findings := make([]Outcome, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if o.Status.IsFinding() {
			findings = append(findings, o)
		}
	}
	return findings
}

// CountByStatus returns how many outcomes have each status.
func (r *PageReport) CountByStatus() map[Status]int {
	counts := make(map[Status]int)
	for _, o := range r.Outcomes {
		counts[o.Status]++
	}
	return counts
}

// CountBySeverity returns how many findings fall into each severity.
// Valid outcomes are not counted.
func (r *PageReport) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int)
	for _, o := range r.Findings() {
		counts[o.Severity()]++
	}
	return counts
}

// ScanReport aggregates the page reports of one invocation, in input order.
type ScanReport struct {
	Pages []*PageReport `json:"pages"`
}

// NewScanReport creates an empty scan report.
func NewScanReport() *ScanReport {
	return &ScanReport{Pages: make([]*PageReport, 0)}
}

// Add appends a page report.
func (s *ScanReport) Add(page *PageReport) {
	s.Pages = append(s.Pages, page)
}

// FindingCount returns the number of findings across all pages.
func (s *ScanReport) FindingCount() int {
	total := 0
	for _, p := range s.Pages {
		total += len(p.Findings())
	}
	return total
}

// FailedPages returns the number of pages that recorded a page-level error.
func (s *ScanReport) FailedPages() int {
	n := 0
	for _, p := range s.Pages {
		if p.Error != nil || p.ErrorMessage != "" {
			n++
		}
	}
	return n
}
