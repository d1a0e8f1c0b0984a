package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/sricheck/internal/model"
)

// Step is one stage of a page check. Each step reads what the previous
// steps stored on the page report and adds its own results.
//
// Design decision: Steps are an interface so that they can carry their
// collaborators (fetcher, extractor, verifier) and be swapped in tests.
type Step interface {
	// Do runs the step against report.
	// A returned error means later steps cannot run (for example, the page
	// could not be fetched). Per-resource problems are outcomes, not errors.
	Do(ctx context.Context, report *model.PageReport) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline runs steps in order against one page report.
// It stops at the first failing step, because every step consumes the
// output of the one before it.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. A nil logger means slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates an empty Pipeline. Add steps with Add.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Add appends steps. They run in the order they were added.
func (p *Pipeline) Add(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, 0, len(p.steps))
	for _, step := range p.steps {
		names = append(names, step.Name())
	}
	return names
}

// Execute runs the steps against report.
//
// Cancellation is checked between steps; a step that is already running
// relies on ctx itself. A cancelled page is marked TimedOut. The first step
// error is recorded on the report and returned. Completed steps are listed
// in report.PerformedSteps.
func (p *Pipeline) Execute(ctx context.Context, report *model.PageReport) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("page check cancelled", "page", report.URL, "step", step.Name(), "reason", err)
			report.TimedOut = true
			return err
		}

		p.logger.Debug("running step", "page", report.URL, "step", step.Name())

		if err := step.Do(ctx, report); err != nil {
			p.logger.Error("step failed", "page", report.URL, "step", step.Name(), "error", err)
			report.SetError(err)
			return err
		}

		report.PerformedSteps = append(report.PerformedSteps, step.Name())
	}
	return nil
}
