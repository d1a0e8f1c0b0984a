package report

import "github.com/nao1215/sricheck/internal/model"

// Summary holds aggregate counts for a scan.
// Map keys are Severity and Status names so the JSON form is readable.
type Summary struct {
	Pages         int            `json:"pages"`
	FailedPages   int            `json:"failed_pages"`
	TimedOutPages int            `json:"timed_out_pages"`
	References    int            `json:"references"`
	Findings      int            `json:"findings"`
	BySeverity    map[string]int `json:"by_severity"`
	ByStatus      map[string]int `json:"by_status"`
}

// NewSummary computes the summary of a scan report.
func NewSummary(scan *model.ScanReport) *Summary {
	s := &Summary{
		BySeverity: make(map[string]int),
		ByStatus:   make(map[string]int),
	}
	if scan == nil {
		return s
	}

	s.Pages = len(scan.Pages)
	s.FailedPages = scan.FailedPages()
	for _, page := range scan.Pages {
		if page.TimedOut {
			s.TimedOutPages++
		}
		s.References += len(page.Outcomes)
		for status, n := range page.CountByStatus() {
			s.ByStatus[status.String()] += n
		}
		for severity, n := range page.CountBySeverity() {
			s.BySeverity[severity.String()] += n
			s.Findings += n
		}
	}
	return s
}

// HasFindings reports whether any page produced a finding.
func (s *Summary) HasFindings() bool {
	return s.Findings > 0
}
