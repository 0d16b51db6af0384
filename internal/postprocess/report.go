package postprocess

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/siteclone/siteclone/internal/model"
	"github.com/siteclone/siteclone/internal/report"
)

// Report filenames written into the output root.
const (
	markdownReportFile = "CLONE.md"
	jsonReportFile     = "report.json"
)

// WriteReportStep writes the clone summary into the output tree, as
// CLONE.md for humans and report.json for tooling. Always enabled; the
// report is how a user inspecting the directory later learns what was
// cloned, with what fingerprint, and what failed.
type WriteReportStep struct {
	logger *slog.Logger
}

// NewWriteReportStep creates the report writing step.
func NewWriteReportStep(logger *slog.Logger) *WriteReportStep {
	return &WriteReportStep{logger: logger}
}

// Name returns the step name.
func (s *WriteReportStep) Name() string {
	return "write-report"
}

// Do assembles the summary and writes both report files.
func (s *WriteReportStep) Do(ctx context.Context, job *Job) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// The session is still in processing while this step runs; the
	// written report describes the settled outcome.
	snapshot := job.Session
	if job.Result.Success && snapshot.Status == model.StatusProcessing {
		snapshot.Status = model.StatusCompleted
	}
	summary := report.NewSummary(snapshot, job.Assets, job.Result)

	if err := s.writeFile(job, markdownReportFile, func(f *os.File) error {
		_, err := report.NewMarkdownWriter(f).Write(summary)
		return err
	}); err != nil {
		return err
	}

	if err := s.writeFile(job, jsonReportFile, func(f *os.File) error {
		_, err := report.NewJSONWriter(f, report.WithPrettyPrint()).Write(summary)
		return err
	}); err != nil {
		return err
	}

	s.logger.Debug("clone report written",
		"sessionID", job.Session.ID,
		"markdown", markdownReportFile,
		"json", jsonReportFile)
	return nil
}

// writeFile creates one report file under the output root.
func (s *WriteReportStep) writeFile(job *Job, name string, write func(*os.File) error) error {
	full := filepath.Join(job.Session.OutputRoot, name)
	f, err := os.Create(full)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	defer f.Close()

	if err := write(f); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return f.Close()
}
