package pipeline

import "errors"

// Page-level scan errors.
// These are recorded in model.PageReport.Error; they never stop a scan of
// the remaining pages.
var (
	// ErrPageFetch is returned when the page itself could not be downloaded.
	ErrPageFetch = errors.New("failed to fetch page")

	// ErrPageParse is returned when the page body could not be decoded or parsed.
	ErrPageParse = errors.New("failed to parse page")

	// ErrNoPageBody is returned when the extract step runs before a page was fetched.
	ErrNoPageBody = errors.New("no page body to parse")
)
