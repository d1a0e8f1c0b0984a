package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/sricheck/internal/model"
)

// Scanner runs a fresh pipeline for each page URL, one page at a time.
//
// Design decision: Pages are scanned sequentially so that output order
// matches input order and a slow site never has more than one page in
// flight. Parallelism, when enabled, happens inside a page (VerifyStep).
type Scanner struct {
	// pipelineFactory creates a new pipeline for each page.
	// It receives the page URL so per-site settings can be applied.
	pipelineFactory func(pageURL string) *Pipeline

	// logger is used for scan-level logging.
	logger *slog.Logger
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithScannerLogger sets a custom logger for the scanner.
func WithScannerLogger(logger *slog.Logger) ScannerOption {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// NewScanner creates a new Scanner.
//
// The pipelineFactory function is called for each page to create a fresh
// pipeline instance. This ensures that pipeline state doesn't leak between
// pages and allows per-site configuration.
func NewScanner(pipelineFactory func(pageURL string) *Pipeline, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		pipelineFactory: pipelineFactory,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// Scan scans every URL in order and returns one PageReport per URL.
//
// A page that fails is logged and recorded in its report; the next URL is
// still scanned. If ctx is cancelled, the in-flight page is kept with
// TimedOut set, the remaining URLs are not scanned, and ctx.Err() is returned
// together with the partial report.
func (s *Scanner) Scan(ctx context.Context, urls []string) (*model.ScanReport, error) {
	scan := model.NewScanReport()
	err := s.ScanWithCallback(ctx, urls, func(report *model.PageReport, _ int) {
		scan.Add(report)
	})
	return scan, err
}

// ScanWithCallback scans every URL in order and calls callback as soon as
// each page is done. The callback is called from the calling goroutine.
func (s *Scanner) ScanWithCallback(
	ctx context.Context,
	urls []string,
	callback func(report *model.PageReport, index int),
) error {
	startTime := time.Now()

	for i, pageURL := range urls {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("scan cancelled",
				"remaining_pages", len(urls)-i,
				"reason", err,
			)
			return err
		}

		s.logger.Info("checking page",
			"page", pageURL,
			"index", i+1,
			"total", len(urls),
		)

		report := model.NewPageReport(pageURL)
		err := s.pipelineFactory(pageURL).Execute(ctx, report)
		if err != nil && ctx.Err() != nil {
			report.TimedOut = true
		}

		// Report is delivered regardless of error; it carries the failure.
		callback(report, i)

		if err != nil {
			s.logger.Warn("page scan failed",
				"page", pageURL,
				"error", err,
			)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		s.logger.Info("page scan completed",
			"page", pageURL,
			"findings", len(report.Findings()),
		)
	}

	s.logger.Info("scan complete",
		"total_pages", len(urls),
		"elapsed", time.Since(startTime),
	)

	return nil
}
