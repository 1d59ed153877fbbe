// Package queue runs the durable, single-flight pipeline run queue.
//
// Runs are rows in sqlite, not goroutines: enqueue, execution state, retry
// counts, and leases all survive a process restart. At most one run per kind
// is queued or active at any time; a second enqueue of the same kind returns
// ErrAlreadyInFlight, which callers treat as backpressure rather than a
// failure.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/jobsift/internal/metrics"
	"github.com/amishk599/jobsift/internal/model"
)

// ErrAlreadyInFlight signals that a run of the requested kind is already
// queued or active. It is a no-op signal, not a failure.
var ErrAlreadyInFlight = errors.New("run of this kind already queued or active")

// Handler executes one run of a kind. A returned error counts as a RunFailure
// and feeds the retry machinery.
type Handler func(ctx context.Context, run model.PipelineRun) error

// Store is the persistence the queue needs, implemented by store.SQLiteStore.
type Store interface {
	InsertRun(ctx context.Context, r model.PipelineRun) error
	InFlightRun(ctx context.Context, kind model.RunKind) (*model.PipelineRun, error)
	NextReadyRun(ctx context.Context, now time.Time) (*model.PipelineRun, error)
	GetRun(ctx context.Context, id string) (*model.PipelineRun, error)
	MarkRunActive(ctx context.Context, id string, now time.Time) error
	UpdateRunProgress(ctx context.Context, id string, progress int, step string, now time.Time) error
	MarkRunCompleted(ctx context.Context, id string, now time.Time) error
	MarkRunFailed(ctx context.Context, id, lastErr string, now time.Time) error
	RequeueRun(ctx context.Context, id, lastErr string, nextAttempt time.Time) error
	StaleActiveRuns(ctx context.Context, cutoff time.Time) ([]model.PipelineRun, error)
	RunStats(ctx context.Context) (model.QueueStats, error)
	PruneRuns(ctx context.Context, olderThan time.Duration) error
}

// Config tunes the worker loop. Policy is attached to every enqueued run.
type Config struct {
	Policy       model.RetryPolicy
	PollInterval time.Duration
	LeaseTimeout time.Duration
	Retention    time.Duration
}

// WorkQueue owns all PipelineRun state transitions.
type WorkQueue struct {
	config   Config
	store    Store
	handlers map[model.RunKind]Handler
	notifier model.Notifier
	sink     metrics.Sink
	logger   *slog.Logger
	clock    func() time.Time
}

// New creates a queue. Handlers are registered before Run starts.
func New(config Config, store Store, notifier model.Notifier, sink metrics.Sink, logger *slog.Logger) *WorkQueue {
	return &WorkQueue{
		config:   config,
		store:    store,
		handlers: make(map[model.RunKind]Handler),
		notifier: notifier,
		sink:     sink,
		logger:   logger,
		clock:    time.Now,
	}
}

// Register binds a handler to a run kind.
func (q *WorkQueue) Register(kind model.RunKind, h Handler) {
	q.handlers[kind] = h
}

// Enqueue adds a run of the given kind, enforcing single-flight per kind.
// The check-then-act race is acceptable: both racers come from scheduler
// ticks or manual triggers, and a skipped tick is harmless.
func (q *WorkQueue) Enqueue(ctx context.Context, kind model.RunKind, payload string, trigger model.TriggerSource, priority int) (string, error) {
	inFlight, err := q.store.InFlightRun(ctx, kind)
	if err != nil {
		return "", fmt.Errorf("checking in-flight runs: %w", err)
	}
	if inFlight != nil {
		return inFlight.ID, ErrAlreadyInFlight
	}

	run := model.PipelineRun{
		ID:        uuid.NewString(),
		Kind:      kind,
		Trigger:   trigger,
		Priority:  priority,
		Payload:   payload,
		Status:    model.RunStatusQueued,
		CreatedAt: q.clock().UTC(),
	}
	if err := q.store.InsertRun(ctx, run); err != nil {
		return "", fmt.Errorf("enqueueing %s run: %w", kind, err)
	}

	q.logger.Info("run enqueued", "run_id", run.ID, "kind", kind, "trigger", trigger, "priority", priority)
	return run.ID, nil
}

// Progress records a checkpoint for an active run and refreshes its lease.
// Pipelines call this through their progress callback.
func (q *WorkQueue) Progress(ctx context.Context, runID string, percent int, step string) error {
	return q.store.UpdateRunProgress(ctx, runID, percent, step, q.clock().UTC())
}

// CurrentRun returns the queued-or-active run for a kind, or nil.
func (q *WorkQueue) CurrentRun(ctx context.Context, kind model.RunKind) (*model.PipelineRun, error) {
	return q.store.InFlightRun(ctx, kind)
}

// Stats returns queue counters for the operator surface.
func (q *WorkQueue) Stats(ctx context.Context) (model.QueueStats, error) {
	return q.store.RunStats(ctx)
}

// Prune drops completed and failed runs past the retention window.
// Housekeeping only; correctness never depends on it.
func (q *WorkQueue) Prune(ctx context.Context) error {
	return q.store.PruneRuns(ctx, q.config.Retention)
}

// Run starts the worker loop. It recovers abandoned runs on startup, then
// polls for ready work until ctx is cancelled. Runs execute one at a time;
// concurrency across kinds comes from overlapping queued runs being picked up
// back to back, never from parallel handlers on the same store.
func (q *WorkQueue) Run(ctx context.Context) error {
	q.logger.Info("queue worker started",
		"poll_interval", q.config.PollInterval.String(),
		"max_attempts", q.config.Policy.MaxAttempts,
		"lease_timeout", q.config.LeaseTimeout.String(),
	)

	q.recoverStale(ctx)

	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			q.logger.Info("queue worker stopped")
			return nil
		case <-ticker.C:
			q.recoverStale(ctx)
			q.processNext(ctx)
		}
	}
}

// recoverStale requeues active runs whose lease expired. Attempts are kept,
// so a run that crashes repeatedly still hits the retry ceiling.
func (q *WorkQueue) recoverStale(ctx context.Context) {
	cutoff := q.clock().UTC().Add(-q.config.LeaseTimeout)
	stale, err := q.store.StaleActiveRuns(ctx, cutoff)
	if err != nil {
		q.logger.Error("stale run scan failed", "error", err)
		return
	}

	for _, run := range stale {
		if run.Attempts >= q.config.Policy.MaxAttempts {
			q.permanentFail(ctx, run, "abandoned after crash, retry ceiling reached")
			continue
		}
		if err := q.store.RequeueRun(ctx, run.ID, "lease expired", q.clock().UTC()); err != nil {
			q.logger.Error("stale run requeue failed", "run_id", run.ID, "error", err)
			continue
		}
		q.logger.Warn("stale run requeued", "run_id", run.ID, "kind", run.Kind, "attempts", run.Attempts)
	}
}

func (q *WorkQueue) processNext(ctx context.Context) {
	run, err := q.store.NextReadyRun(ctx, q.clock().UTC())
	if err != nil {
		q.logger.Error("next run lookup failed", "error", err)
		return
	}
	if run == nil {
		return
	}

	handler, ok := q.handlers[run.Kind]
	if !ok {
		q.logger.Error("no handler for run kind", "run_id", run.ID, "kind", run.Kind)
		q.permanentFail(ctx, *run, "no handler registered")
		return
	}

	if err := q.store.MarkRunActive(ctx, run.ID, q.clock().UTC()); err != nil {
		q.logger.Error("run activation failed", "run_id", run.ID, "error", err)
		return
	}
	run.Attempts++

	q.logger.Info("run started", "run_id", run.ID, "kind", run.Kind, "attempt", run.Attempts)

	started := q.clock()
	if err := q.execute(ctx, handler, *run); err != nil {
		q.handleFailure(ctx, *run, err, q.clock().Sub(started))
		return
	}
	q.sink.RunFinished(string(run.Kind), metrics.OutcomeCompleted, q.clock().Sub(started))

	if err := q.store.MarkRunCompleted(ctx, run.ID, q.clock().UTC()); err != nil {
		q.logger.Error("run completion write failed", "run_id", run.ID, "error", err)
		return
	}
	q.logger.Info("run completed", "run_id", run.ID, "kind", run.Kind)
}

// execute shields the worker loop from handler panics; a panic is a
// RunFailure like any other.
func (q *WorkQueue) execute(ctx context.Context, handler Handler, run model.PipelineRun) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, run)
}

func (q *WorkQueue) handleFailure(ctx context.Context, run model.PipelineRun, runErr error, took time.Duration) {
	if run.Attempts >= q.config.Policy.MaxAttempts {
		q.sink.RunFinished(string(run.Kind), metrics.OutcomeFailed, took)
		q.permanentFail(ctx, run, runErr.Error())
		return
	}
	q.sink.RunFinished(string(run.Kind), metrics.OutcomeRetried, took)

	delay := q.config.Policy.Delay(run.Attempts)
	next := q.clock().UTC().Add(delay)
	if err := q.store.RequeueRun(ctx, run.ID, runErr.Error(), next); err != nil {
		q.logger.Error("run requeue failed", "run_id", run.ID, "error", err)
		return
	}
	q.logger.Warn("run failed, will retry",
		"run_id", run.ID,
		"kind", run.Kind,
		"attempt", run.Attempts,
		"max_attempts", q.config.Policy.MaxAttempts,
		"retry_in", delay.String(),
		"error", runErr,
	)
}

// permanentFail marks the run failed and alerts the operator. Failed runs are
// never retried automatically.
func (q *WorkQueue) permanentFail(ctx context.Context, run model.PipelineRun, cause string) {
	if err := q.store.MarkRunFailed(ctx, run.ID, cause, q.clock().UTC()); err != nil {
		q.logger.Error("run failure write failed", "run_id", run.ID, "error", err)
		return
	}
	q.logger.Error("run permanently failed", "run_id", run.ID, "kind", run.Kind, "attempts", run.Attempts, "cause", cause)

	text := fmt.Sprintf("%s run failed permanently after %d attempts: %s", run.Kind, run.Attempts, cause)
	if err := q.notifier.SendError(ctx, text); err != nil {
		q.logger.Error("operator alert failed", "run_id", run.ID, "error", err)
	}
}
