package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/nao1215/plugcrawler/internal/model"
	"github.com/nao1215/plugcrawler/internal/report"
	"github.com/nao1215/plugcrawler/internal/vector"
)

// ReportStep writes the output through a report.Writer.
type ReportStep struct {
	writer report.Writer
}

// NewReportStep creates a step that writes with w.
func NewReportStep(w report.Writer) *ReportStep {
	return &ReportStep{writer: w}
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return "report"
}

// Do writes the report.
func (s *ReportStep) Do(_ context.Context, out *model.Output) error {
	if _, err := s.writer.Write(out); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// RunRecorder is the part of the history store the pipeline needs.
// *database.History implements it.
type RunRecorder interface {
	ChangedSince(ctx context.Context, url, contentHash string) (bool, error)
	SaveRun(ctx context.Context, out *model.Output, interrupted bool) (string, error)
}

// HistoryStep saves the run and logs which pages changed since any
// earlier run.
type HistoryStep struct {
	recorder    RunRecorder
	interrupted bool
	logger      *slog.Logger

	runID string
}

// HistoryStepOption configures a HistoryStep.
type HistoryStepOption func(*HistoryStep)

// WithInterrupted marks the run as cut short by a signal or timeout.
func WithInterrupted(interrupted bool) HistoryStepOption {
	return func(s *HistoryStep) {
		s.interrupted = interrupted
	}
}

// WithHistoryLogger sets the logger for change notices.
func WithHistoryLogger(logger *slog.Logger) HistoryStepOption {
	return func(s *HistoryStep) {
		s.logger = logger
	}
}

// NewHistoryStep creates a step that records runs in r.
func NewHistoryStep(r RunRecorder, opts ...HistoryStepOption) *HistoryStep {
	s := &HistoryStep{
		recorder: r,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *HistoryStep) Name() string {
	return "history"
}

// RunID returns the ID of the saved run, or "" before Do succeeds.
func (s *HistoryStep) RunID() string {
	return s.runID
}

// Do compares page digests with the stored ones, then saves the run.
// The comparison has to happen first, or every page would match itself.
func (s *HistoryStep) Do(ctx context.Context, out *model.Output) error {
	var changed, unchanged int
	var walkErr error
	out.Walk(func(p *model.PageResult) {
		if walkErr != nil || p.Failed() || p.ContentHash == "" {
			return
		}
		diff, err := s.recorder.ChangedSince(ctx, p.URL, p.ContentHash)
		if err != nil {
			walkErr = err
			return
		}
		if diff {
			changed++
			s.logger.Debug("page changed since last run", "url", p.URL)
			return
		}
		unchanged++
	})
	if walkErr != nil {
		return fmt.Errorf("failed to compare with history: %w", walkErr)
	}

	id, err := s.recorder.SaveRun(ctx, out, s.interrupted)
	if err != nil {
		return err
	}
	s.runID = id
	s.logger.Info("run saved to history", "run", id, "changed", changed, "unchanged", unchanged)
	return nil
}

// VectorStep stores the trace text in a vector store. A store failure is
// logged and does not fail the pipeline.
type VectorStep struct {
	store  vector.Store
	logger *slog.Logger
}

// NewVectorStep creates a step that persists into store.
func NewVectorStep(store vector.Store, logger *slog.Logger) *VectorStep {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &VectorStep{store: store, logger: logger}
}

// Name returns the step name.
func (s *VectorStep) Name() string {
	return "qdrant"
}

// Do persists out.Text(). An empty trace is skipped.
func (s *VectorStep) Do(ctx context.Context, out *model.Output) error {
	text := out.Text()
	if text == "" {
		s.logger.Debug("empty trace, nothing to persist")
		return nil
	}
	if err := s.store.Persist(ctx, text); err != nil {
		s.logger.Warn("failed to persist results to qdrant", "error", err)
		return nil
	}
	s.logger.Info("results persisted to qdrant")
	return nil
}
