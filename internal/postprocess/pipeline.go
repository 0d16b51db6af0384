package postprocess

import (
	"context"
	"log/slog"

	"github.com/siteclone/siteclone/internal/model"
)

// Job carries everything the post-processing steps need: the session
// snapshot taken at processing start, the frozen URL to local-path
// table, the per-asset records, and the crawl result.
//
// Progress, when non-nil, receives the fraction of completed steps in
// [0,1] after each step finishes.
type Job struct {
	// Session is the session snapshot, including output root, options,
	// and the frozen fingerprint.
	Session model.Session

	// Table maps every downloaded source URL to its relative local path
	// under the output root. Pages included.
	Table map[string]string

	// Assets are the session's asset records.
	Assets []model.DiscoveredAsset

	// Result is the crawl outcome.
	Result model.CloningResult

	// Progress reports step-completion fractions. May be nil.
	Progress func(fraction float64)
}

// Step is one post-processing stage.
//
// Design decision: an interface rather than function types because steps
// carry configuration state and a Name() for logging, and because per-step
// skip logic (an option the session was created without) belongs to the
// step, not the pipeline.
type Step interface {
	// Do executes the step against the job's output tree. Returns an
	// error only for failures that should settle the session; per-file
	// problems are logged and skipped.
	Do(ctx context.Context, job *Job) error

	// Name returns the step's name for logging.
	Name() string
}

// Pipeline executes post-processing steps in order.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to keep executing steps
// after one fails. The first error is still returned from Execute.
//
// Design decision: the default is to stop, because a failed rewrite
// leaves the tree half-transformed and later steps would bake that in.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a Pipeline with the given options.
// Steps should be added with AddStep or AddSteps after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// NewStandard creates the full pipeline in its production order:
// rewrite references, optimize images, generate the service worker,
// write the clone report.
func NewStandard(logger *slog.Logger) *Pipeline {
	p := New(WithLogger(logger))
	p.AddSteps(
		NewRewriteStep(logger),
		NewOptimizeImagesStep(logger),
		NewServiceWorkerStep(logger),
		NewWriteReportStep(logger),
	)
	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}

// Execute runs all steps in sequence, reporting fractional progress
// through job.Progress after each one. Cancellation is checked between
// steps; steps handle their own mid-step cancellation.
//
// Returns the first error encountered if continueOnError is false, or
// the first error after running every step if it is true.
func (p *Pipeline) Execute(ctx context.Context, job Job) error {
	var firstErr error

	for i, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("post-processing cancelled",
				"step", step.Name(),
				"sessionID", job.Session.ID,
				"reason", ctx.Err())
			return ctx.Err()
		default:
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"sessionID", job.Session.ID)

		if err := step.Do(ctx, &job); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"sessionID", job.Session.ID,
				"error", err)
			if !p.continueOnError {
				return err
			}
			if firstErr == nil {
				firstErr = err
			}
		} else {
			p.logger.Debug("step completed",
				"step", step.Name(),
				"sessionID", job.Session.ID)
		}

		if job.Progress != nil {
			job.Progress(float64(i+1) / float64(len(p.steps)))
		}
	}

	return firstErr
}
