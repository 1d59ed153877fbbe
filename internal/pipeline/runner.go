package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amishk599/jobsift/internal/model"
	"github.com/amishk599/jobsift/internal/queue"
)

// ProgressStore is the queue surface the runner reports checkpoints to.
// Writing progress also refreshes the run's lease.
type ProgressStore interface {
	Progress(ctx context.Context, runID string, percent int, step string) error
}

// Runner adapts the orchestrator to queue handlers and wires progress
// reporting to both the run store and the editable progress message.
type Runner struct {
	orch     *Orchestrator
	progress ProgressStore
	notifier model.Notifier
	logger   *slog.Logger
}

// NewRunner creates the handler factory.
func NewRunner(orch *Orchestrator, progress ProgressStore, notifier model.Notifier, logger *slog.Logger) *Runner {
	return &Runner{
		orch:     orch,
		progress: progress,
		notifier: notifier,
		logger:   logger,
	}
}

// AlertScanHandler returns the queue handler for alert-scan runs.
func (r *Runner) AlertScanHandler() queue.Handler {
	return func(ctx context.Context, run model.PipelineRun) error {
		return r.orch.RunAlertScan(ctx, r.progressFunc(ctx, run, "🔍 Scanning inbox"))
	}
}

// DailySummaryHandler returns the queue handler for daily-summary runs.
func (r *Runner) DailySummaryHandler() queue.Handler {
	return func(ctx context.Context, run model.PipelineRun) error {
		return r.orch.RunDailySummary(ctx, r.progressFunc(ctx, run, "📊 Building daily summary"))
	}
}

// progressFunc builds the per-run checkpoint callback. The durable write
// comes first (it carries the lease); the message edit is cosmetic and its
// failures are swallowed by the notifier.
func (r *Runner) progressFunc(ctx context.Context, run model.PipelineRun, title string) ProgressFunc {
	handle, err := r.notifier.CreateProgressMessage(ctx, fmt.Sprintf("%s…", title))
	if err != nil {
		r.logger.Warn("progress message creation failed", "run_id", run.ID, "error", err)
	}

	return func(percent int, step string) {
		if err := r.progress.Progress(ctx, run.ID, percent, step); err != nil {
			r.logger.Warn("progress write failed", "run_id", run.ID, "error", err)
		}
		if handle == "" {
			return
		}
		text := fmt.Sprintf("%s… %d%% — %s", title, percent, step)
		if err := r.notifier.UpdateProgressMessage(ctx, handle, text); err != nil {
			r.logger.Debug("progress edit failed", "run_id", run.ID, "error", err)
		}
	}
}
