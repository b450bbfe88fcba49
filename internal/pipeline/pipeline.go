package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/sitemapgen/internal/model"
)

// Step is one stage of generating a sitemap for a site.
// Steps run in sequence, each reading what the previous ones stored in the run.
type Step interface {
	// Do executes the step. A returned error is fatal for the site.
	Do(ctx context.Context, run *model.SiteRun) error

	// Name returns the step's name for logging.
	Name() string
}

// Pipeline executes the steps of one site run.
//
// Regular steps stop at the first error or cancellation. Final steps run
// afterwards in every case, so a failed or interrupted run is still recorded.
type Pipeline struct {
	steps   []Step
	finally []Step
	logger  *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger for step progress.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:   make([]Step, 0),
		finally: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a regular step.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends several regular steps.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// AddFinalStep appends a step that runs after the regular steps even when
// one of them failed or the context was cancelled. It receives a context
// that is not cancelled.
func (p *Pipeline) AddFinalStep(step Step) {
	p.finally = append(p.finally, step)
}

// Execute runs the regular steps, then the final steps.
// It returns the first error of a regular step, or ctx.Err() on
// cancellation. Errors of final steps are recorded in the run and logged
// but only returned when no earlier error exists.
func (p *Pipeline) Execute(ctx context.Context, run *model.SiteRun) error {
	err := p.runSteps(ctx, run)

	finalCtx := context.WithoutCancel(ctx)
	for _, step := range p.finally {
		if stepErr := p.runStep(finalCtx, step, run); stepErr != nil && err == nil {
			err = stepErr
		}
	}
	return err
}

func (p *Pipeline) runSteps(ctx context.Context, run *model.SiteRun) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"site", run.Job.StartURL,
				"reason", err,
			)
			run.Cancelled = true
			run.Fail(err)
			return err
		}

		if err := p.runStep(ctx, step, run); err != nil {
			if ctx.Err() != nil {
				run.Cancelled = true
			}
			return err
		}
	}
	return nil
}

func (p *Pipeline) runStep(ctx context.Context, step Step, run *model.SiteRun) error {
	p.logger.Info("executing step", "step", step.Name(), "site", run.Job.StartURL)

	if err := step.Do(ctx, run); err != nil {
		p.logger.Error("step failed",
			"step", step.Name(),
			"site", run.Job.StartURL,
			"error", err,
		)
		run.Fail(err)
		return err
	}

	p.logger.Debug("step completed", "step", step.Name(), "site", run.Job.StartURL)
	run.Steps = append(run.Steps, step.Name())
	return nil
}

// StepCount returns the number of regular and final steps.
func (p *Pipeline) StepCount() int {
	return len(p.steps) + len(p.finally)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, 0, p.StepCount())
	for _, step := range p.steps {
		names = append(names, step.Name())
	}
	for _, step := range p.finally {
		names = append(names, step.Name())
	}
	return names
}
