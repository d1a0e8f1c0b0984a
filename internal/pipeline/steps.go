package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/sricheck/internal/fetch"
	"github.com/nao1215/sricheck/internal/markup"
	"github.com/nao1215/sricheck/internal/model"
	"github.com/nao1215/sricheck/internal/sri"
	"golang.org/x/sync/errgroup"
)

// PageFetcher downloads an HTML page. fetch.Client satisfies this interface.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (*fetch.Page, error)
}

// FetchPageStep downloads the page under scan.
type FetchPageStep struct {
	fetcher PageFetcher
	logger  *slog.Logger
}

// FetchPageStepOption configures a FetchPageStep.
type FetchPageStepOption func(*FetchPageStep)

// WithFetchLogger sets a custom logger for the fetch step.
func WithFetchLogger(logger *slog.Logger) FetchPageStepOption {
	return func(s *FetchPageStep) {
		s.logger = logger
	}
}

// NewFetchPageStep creates a new page fetch step.
func NewFetchPageStep(fetcher PageFetcher, opts ...FetchPageStepOption) *FetchPageStep {
	s := &FetchPageStep{
		fetcher: fetcher,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *FetchPageStep) Name() string {
	return "fetch_page"
}

// Do fetches the page and stores its body in the report.
func (s *FetchPageStep) Do(ctx context.Context, report *model.PageReport) error {
	page, err := s.fetcher.FetchPage(ctx, report.URL)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrPageFetch, report.URL, err)
	}

	report.FinalURL = page.URL
	report.ContentType = page.ContentType
	report.Body = page.Body

	s.logger.Debug("page fetched",
		"page", report.URL,
		"final_url", page.URL,
		"status", page.StatusCode,
		"bytes", len(page.Body),
	)

	return nil
}

// ExtractStep finds script and stylesheet references in the fetched page.
type ExtractStep struct {
	extractor *markup.Extractor
	logger    *slog.Logger
}

// ExtractStepOption configures an ExtractStep.
type ExtractStepOption func(*ExtractStep)

// WithExtractLogger sets a custom logger for the extract step.
func WithExtractLogger(logger *slog.Logger) ExtractStepOption {
	return func(s *ExtractStep) {
		s.logger = logger
	}
}

// NewExtractStep creates a new extraction step.
func NewExtractStep(extractor *markup.Extractor, opts ...ExtractStepOption) *ExtractStep {
	s := &ExtractStep{
		extractor: extractor,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ExtractStep) Name() string {
	return "extract"
}

// Do parses the page body into references.
func (s *ExtractStep) Do(_ context.Context, report *model.PageReport) error {
	if report.Body == nil {
		return ErrNoPageBody
	}

	s.logger.Info("parsing html content", "page", report.URL)

	base := report.FinalURL
	if base == "" {
		base = report.URL
	}

	refs, err := s.extractor.ExtractBytes(base, report.Body, report.ContentType)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrPageParse, report.URL, err)
	}
	report.References = refs

	s.logger.Debug("references extracted",
		"page", report.URL,
		"count", len(refs),
	)

	return nil
}

// VerifyStep checks every extracted reference against its integrity hash.
//
// Design decision: Verification is sequential unless a concurrency above 1
// is configured. In parallel mode each outcome is written to the slot of its
// reference index, so the report keeps document order, and goroutines never
// return errors so one failed fetch does not cancel its siblings.
type VerifyStep struct {
	verifier    *sri.Verifier
	concurrency int
	logger      *slog.Logger
}

// VerifyStepOption configures a VerifyStep.
type VerifyStepOption func(*VerifyStep)

// WithVerifyConcurrency sets the number of references verified at once.
func WithVerifyConcurrency(n int) VerifyStepOption {
	return func(s *VerifyStep) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithVerifyLogger sets a custom logger for the verify step.
func WithVerifyLogger(logger *slog.Logger) VerifyStepOption {
	return func(s *VerifyStep) {
		s.logger = logger
	}
}

// NewVerifyStep creates a new verification step.
func NewVerifyStep(verifier *sri.Verifier, opts ...VerifyStepOption) *VerifyStep {
	s := &VerifyStep{
		verifier:    verifier,
		concurrency: 1,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *VerifyStep) Name() string {
	return "verify"
}

// Do verifies the references in report and appends their outcomes.
// On cancellation the outcomes gathered so far are kept, the report is
// marked TimedOut and the context error is returned.
func (s *VerifyStep) Do(ctx context.Context, report *model.PageReport) error {
	start := time.Now()

	var outcomes []model.Outcome
	if s.concurrency <= 1 {
		outcomes = s.verifier.VerifyAll(ctx, report.References)
	} else {
		outcomes = s.verifyParallel(ctx, report.References)
	}
	report.Outcomes = append(report.Outcomes, outcomes...)

	s.logger.Debug("references verified",
		"page", report.URL,
		"verified", len(outcomes),
		"total", len(report.References),
		"elapsed", time.Since(start),
	)

	if err := ctx.Err(); err != nil {
		report.TimedOut = true
		return err
	}
	return nil
}

func (s *VerifyStep) verifyParallel(ctx context.Context, refs []model.Reference) []model.Outcome {
	slots := make([]model.Outcome, len(refs))
	done := make([]bool, len(refs))

	// A plain Group: no derived context, so siblings are never cancelled.
	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i, ref := range refs {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			slots[i] = s.verifier.Verify(ctx, ref)
			done[i] = true
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines never return errors

	outcomes := make([]model.Outcome, 0, len(refs))
	for i := range slots {
		if done[i] {
			outcomes = append(outcomes, slots[i])
		}
	}
	return outcomes
}

// DefaultPipelineConfig holds configuration for the default pipeline.
type DefaultPipelineConfig struct {
	// Kinds limits which references are extracted. Empty means all.
	Kinds []model.Kind

	// SkipPatterns are resource URL path patterns that are not checked.
	SkipPatterns []string

	// Concurrency is the number of references verified at once within a page.
	Concurrency int

	// Logger is passed to every step.
	Logger *slog.Logger
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineKinds restricts the pipeline to the given kinds.
func WithPipelineKinds(kinds []model.Kind) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Kinds = kinds
	}
}

// WithPipelineSkipPatterns sets resource URL patterns to skip.
func WithPipelineSkipPatterns(patterns []string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.SkipPatterns = patterns
	}
}

// WithPipelineConcurrency sets per-page verification concurrency.
func WithPipelineConcurrency(n int) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Concurrency = n
	}
}

// WithPipelineLogger sets the logger passed to every step.
func WithPipelineLogger(logger *slog.Logger) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Logger = logger
	}
}

// DefaultPipeline creates the fetch, extract and verify pipeline for one page.
//
// The client is used both for the page and for its resources. Per-site
// headers configured on it (see fetch.Client.ForSite) reach the page host
// only, so resources on other hosts are fetched without them.
//
// The first variadic parameter accepts pipeline options (WithLogger, etc).
// The second accepts pipeline config options (WithPipelineKinds, etc).
func DefaultPipeline(client *fetch.Client, pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	cfg := &DefaultPipelineConfig{
		Concurrency: 1,
		Logger:      slog.Default(),
	}
	for _, opt := range configOpts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	p := New(append([]Option{WithLogger(cfg.Logger)}, pipelineOpts...)...)

	extractor := markup.NewExtractor(
		markup.WithKinds(cfg.Kinds...),
		markup.WithSkipPatterns(cfg.SkipPatterns),
	)
	verifier := sri.NewVerifier(client, sri.WithLogger(cfg.Logger))

	p.Add(
		NewFetchPageStep(client, WithFetchLogger(cfg.Logger)),
		NewExtractStep(extractor, WithExtractLogger(cfg.Logger)),
		NewVerifyStep(verifier,
			WithVerifyConcurrency(cfg.Concurrency),
			WithVerifyLogger(cfg.Logger),
		),
	)

	return p
}
