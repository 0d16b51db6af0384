package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/siteclone/siteclone/internal/config"
	"github.com/siteclone/siteclone/internal/crawler"
	"github.com/siteclone/siteclone/internal/model"
	"github.com/siteclone/siteclone/internal/postprocess"
)

// PostProcessor runs the post-crawl pipeline. Implemented by
// postprocess.Pipeline; an interface so tests can substitute.
type PostProcessor interface {
	Execute(ctx context.Context, job postprocess.Job) error
}

// Runner drives session executions.
type Runner struct {
	cfg    *config.Config
	engine *crawler.Engine
	post   PostProcessor
	logger *slog.Logger
}

// NewRunner creates a runner. post may be nil to skip post-processing.
func NewRunner(cfg *config.Config, engine *crawler.Engine, post PostProcessor, logger *slog.Logger) *Runner {
	return &Runner{cfg: cfg, engine: engine, post: post, logger: logger}
}

// Start launches a fresh execution for a starting session. The returned
// error covers launch problems only; execution outcomes surface through
// status events.
//
// ctx should be the server's lifetime context, not a request context:
// the execution outlives the request that triggered it.
func (r *Runner) Start(ctx context.Context, m *Machine) error {
	execCtx, cancel := context.WithTimeout(ctx, r.cfg.SessionTimeout)
	if !m.tryStartExecution(cancel) {
		cancel()
		return ErrAlreadyRunning
	}
	return r.launch(execCtx, cancel, m, nil)
}

// Resume launches a resumed execution for an interrupted session.
// The interrupted to resuming transition happens synchronously so the
// caller can confirm the resume before any crawl work starts.
//
// The execution slot is claimed before the resuming transition: a prior
// execution may still be winding down after an interrupt, and a refused
// resume must leave the session interrupted, not stranded in resuming.
func (r *Runner) Resume(ctx context.Context, m *Machine) error {
	if m.Status() != model.StatusInterrupted {
		return ErrNotResumable
	}

	execCtx, cancel := context.WithTimeout(ctx, r.cfg.SessionTimeout)
	if !m.tryStartExecution(cancel) {
		cancel()
		return ErrAlreadyRunning
	}

	snapshot := m.Snapshot()
	resume := &crawler.ResumeState{
		Fingerprint: snapshot.Fingerprint,
		PathTable:   m.PathTable(),
		Assets:      m.AssetMap(),
	}

	if err := m.Transition(model.StatusResuming, ""); err != nil {
		m.finishExecution()
		cancel()
		return err
	}

	return r.launch(execCtx, cancel, m, resume)
}

// launch moves the session into crawling and runs it in a goroutine.
// The caller has already claimed the execution slot.
func (r *Runner) launch(ctx context.Context, cancel context.CancelFunc, m *Machine, resume *crawler.ResumeState) error {
	if err := m.Transition(model.StatusCrawling, ""); err != nil {
		m.finishExecution()
		cancel()
		return err
	}

	go r.run(ctx, cancel, m, resume)
	return nil
}

// run executes crawl and post-processing, settling the session into a
// terminal state unless it was interrupted along the way.
func (r *Runner) run(ctx context.Context, cancel context.CancelFunc, m *Machine, resume *crawler.ResumeState) {
	defer cancel()
	defer m.finishExecution()

	snapshot := m.Snapshot()
	job := crawler.Job{
		SessionID:  snapshot.ID,
		RootURL:    snapshot.URL,
		OutputRoot: snapshot.OutputRoot,
		Options:    snapshot.Options,
		Reporter:   m,
		Resume:     resume,
	}

	result, err := r.engine.Run(ctx, job)
	if err != nil {
		r.settleFailure(ctx, m, err)
		return
	}

	if err := m.Transition(model.StatusProcessing, ""); err != nil {
		// Interrupted between crawl completion and processing.
		r.logger.Debug("processing transition refused",
			"sessionID", snapshot.ID, "error", err)
		return
	}

	if r.post != nil {
		postJob := postprocess.Job{
			// Re-snapshot: the fingerprint froze during the crawl.
			Session:  m.Snapshot(),
			Table:    m.PathTable(),
			Assets:   m.Assets(),
			Result:   *result,
			Progress: m.ProcessingProgress,
		}
		if err := r.post.Execute(ctx, postJob); err != nil {
			r.settleFailure(ctx, m, err)
			return
		}
	}

	if err := m.Transition(model.StatusCompleted, ""); err != nil {
		r.logger.Debug("completion transition refused",
			"sessionID", snapshot.ID, "error", err)
		return
	}

	r.logger.Info("session completed",
		"sessionID", snapshot.ID,
		"pages", result.PagesVisited,
		"assets", result.AssetsDownloaded,
		"failed", result.AssetsFailed)
}

// settleFailure maps an execution error to the right terminal state.
// An interruption has already transitioned the session; nothing to do.
func (r *Runner) settleFailure(ctx context.Context, m *Machine, err error) {
	if m.Status() == model.StatusInterrupted {
		return
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		if terr := m.Transition(model.StatusTimeout, "session timeout exceeded"); terr != nil {
			r.logger.Debug("timeout transition refused", "sessionID", m.ID(), "error", terr)
		}
		return
	}
	if errors.Is(err, context.Canceled) {
		// Cancelled without an interrupt transition: server shutdown.
		// Leave the session as-is; the startup pass marks it interrupted.
		return
	}

	if terr := m.Transition(model.StatusError, err.Error()); terr != nil {
		r.logger.Debug("error transition refused", "sessionID", m.ID(), "error", terr)
	}
}
