package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amishk599/jobsift/internal/metrics"
	"github.com/amishk599/jobsift/internal/model"
)

// memStore is an in-memory Store with the same transition semantics as the
// sqlite implementation.
type memStore struct {
	mu   sync.Mutex
	runs map[string]*model.PipelineRun
}

func newMemStore() *memStore {
	return &memStore{runs: make(map[string]*model.PipelineRun)}
}

func (m *memStore) InsertRun(_ context.Context, r model.PipelineRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := r
	m.runs[r.ID] = &cp
	return nil
}

func (m *memStore) InFlightRun(_ context.Context, kind model.RunKind) (*model.PipelineRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.Kind == kind && (r.Status == model.RunStatusQueued || r.Status == model.RunStatusActive) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) NextReadyRun(_ context.Context, now time.Time) (*model.PipelineRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ready []*model.PipelineRun
	for _, r := range m.runs {
		if r.Status == model.RunStatusQueued {
			ready = append(ready, r)
		}
	}
	if len(ready) == 0 {
		return nil, nil
	}
	sort.Slice(ready, func(i, j int) bool {
		if ready[i].Priority != ready[j].Priority {
			return ready[i].Priority > ready[j].Priority
		}
		return ready[i].CreatedAt.Before(ready[j].CreatedAt)
	})
	cp := *ready[0]
	return &cp, nil
}

func (m *memStore) GetRun(_ context.Context, id string) (*model.PipelineRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) MarkRunActive(_ context.Context, id string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.runs[id]
	r.Status = model.RunStatusActive
	r.Attempts++
	t := now
	r.StartedAt = &t
	lease := now
	r.LeasedAt = &lease
	return nil
}

func (m *memStore) UpdateRunProgress(_ context.Context, id string, progress int, step string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.runs[id]
	r.Progress = progress
	r.Step = step
	lease := now
	r.LeasedAt = &lease
	return nil
}

func (m *memStore) MarkRunCompleted(_ context.Context, id string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.runs[id]
	r.Status = model.RunStatusCompleted
	r.Progress = 100
	t := now
	r.CompletedAt = &t
	return nil
}

func (m *memStore) MarkRunFailed(_ context.Context, id, lastErr string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.runs[id]
	r.Status = model.RunStatusFailed
	r.LastErr = lastErr
	t := now
	r.CompletedAt = &t
	return nil
}

func (m *memStore) RequeueRun(_ context.Context, id, lastErr string, nextAttempt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.runs[id]
	r.Status = model.RunStatusQueued
	r.LastErr = lastErr
	r.LeasedAt = nil
	return nil
}

func (m *memStore) StaleActiveRuns(_ context.Context, cutoff time.Time) ([]model.PipelineRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stale []model.PipelineRun
	for _, r := range m.runs {
		if r.Status == model.RunStatusActive && r.LeasedAt != nil && r.LeasedAt.Before(cutoff) {
			stale = append(stale, *r)
		}
	}
	return stale, nil
}

func (m *memStore) RunStats(_ context.Context) (model.QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stats model.QueueStats
	for _, r := range m.runs {
		switch r.Status {
		case model.RunStatusQueued:
			stats.Queued++
		case model.RunStatusActive:
			stats.Active++
		case model.RunStatusCompleted:
			stats.Completed++
		case model.RunStatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

func (m *memStore) PruneRuns(_ context.Context, olderThan time.Duration) error { return nil }

type fakeNotifier struct {
	mu     sync.Mutex
	errors []string
}

func (f *fakeNotifier) SendDigest(context.Context, []model.JobPosting) error { return nil }
func (f *fakeNotifier) SendStatus(context.Context, string) error             { return nil }
func (f *fakeNotifier) SendError(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, text)
	return nil
}
func (f *fakeNotifier) CreateProgressMessage(context.Context, string) (model.ProgressHandle, error) {
	return "", nil
}
func (f *fakeNotifier) UpdateProgressMessage(context.Context, model.ProgressHandle, string) error {
	return nil
}

func newTestQueue(t *testing.T, policy model.RetryPolicy) (*WorkQueue, *memStore, *fakeNotifier) {
	t.Helper()
	store := newMemStore()
	notifier := &fakeNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	q := New(Config{
		Policy:       policy,
		PollInterval: time.Millisecond,
		LeaseTimeout: 15 * time.Minute,
		Retention:    time.Hour,
	}, store, notifier, metrics.NewNoopSink(), logger)
	return q, store, notifier
}

func TestEnqueueSingleFlightPerKind(t *testing.T) {
	q, _, _ := newTestQueue(t, model.RetryPolicy{MaxAttempts: 3})
	ctx := context.Background()

	firstID, err := q.Enqueue(ctx, model.RunKindAlertScan, "", model.TriggerManual, model.PriorityHigh)
	if err != nil {
		t.Fatalf("first Enqueue: %v", err)
	}

	dupID, err := q.Enqueue(ctx, model.RunKindAlertScan, "", model.TriggerCron, model.PriorityNormal)
	if !errors.Is(err, ErrAlreadyInFlight) {
		t.Fatalf("expected ErrAlreadyInFlight, got %v", err)
	}
	if dupID != firstID {
		t.Errorf("duplicate enqueue returned %q, want the in-flight run id %q", dupID, firstID)
	}

	// A different kind is independent.
	if _, err := q.Enqueue(ctx, model.RunKindDailySummary, "", model.TriggerCron, model.PriorityLow); err != nil {
		t.Errorf("enqueue of a different kind: %v", err)
	}
}

func TestProcessNextCompletesRun(t *testing.T) {
	q, store, _ := newTestQueue(t, model.RetryPolicy{MaxAttempts: 3})
	ctx := context.Background()

	var handled bool
	q.Register(model.RunKindAlertScan, func(ctx context.Context, run model.PipelineRun) error {
		handled = true
		return nil
	})

	id, err := q.Enqueue(ctx, model.RunKindAlertScan, "", model.TriggerCron, model.PriorityNormal)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	q.processNext(ctx)

	if !handled {
		t.Error("expected the handler to run")
	}
	run, _ := store.GetRun(ctx, id)
	if run.Status != model.RunStatusCompleted {
		t.Errorf("status = %s, want completed", run.Status)
	}
}

func TestFailureRetriesThenPermanentlyFails(t *testing.T) {
	q, store, notifier := newTestQueue(t, model.RetryPolicy{
		MaxAttempts: 2,
		Backoff:     model.BackoffExponential,
		BaseDelay:   time.Millisecond,
	})
	ctx := context.Background()

	q.Register(model.RunKindAlertScan, func(ctx context.Context, run model.PipelineRun) error {
		return errors.New("transient boom")
	})

	id, err := q.Enqueue(ctx, model.RunKindAlertScan, "", model.TriggerCron, model.PriorityNormal)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// Attempt 1: fails below the ceiling, run goes back to queued.
	q.processNext(ctx)
	run, _ := store.GetRun(ctx, id)
	if run.Status != model.RunStatusQueued {
		t.Fatalf("after attempt 1: status = %s, want queued", run.Status)
	}
	if run.Attempts != 1 {
		t.Fatalf("after attempt 1: attempts = %d, want 1", run.Attempts)
	}
	if len(notifier.errors) != 0 {
		t.Fatal("no operator alert expected while retries remain")
	}

	// Attempt 2: ceiling reached, run fails permanently and alerts.
	q.processNext(ctx)
	run, _ = store.GetRun(ctx, id)
	if run.Status != model.RunStatusFailed {
		t.Fatalf("after attempt 2: status = %s, want failed", run.Status)
	}
	if len(notifier.errors) != 1 {
		t.Fatalf("expected exactly one operator alert, got %d", len(notifier.errors))
	}
	if !strings.Contains(notifier.errors[0], "transient boom") {
		t.Errorf("alert should carry the cause, got %q", notifier.errors[0])
	}
}

func TestHandlerPanicIsContained(t *testing.T) {
	q, store, _ := newTestQueue(t, model.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond})
	ctx := context.Background()

	q.Register(model.RunKindAlertScan, func(ctx context.Context, run model.PipelineRun) error {
		panic("kaboom")
	})

	id, err := q.Enqueue(ctx, model.RunKindAlertScan, "", model.TriggerCron, model.PriorityNormal)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	q.processNext(ctx) // must not panic the worker

	run, _ := store.GetRun(ctx, id)
	if run.Status != model.RunStatusQueued {
		t.Fatalf("status = %s, want queued for retry", run.Status)
	}
	if !strings.Contains(run.LastErr, "kaboom") {
		t.Errorf("LastErr = %q, want the panic value", run.LastErr)
	}
}

func TestRecoverStaleRequeuesAbandonedRun(t *testing.T) {
	q, store, _ := newTestQueue(t, model.RetryPolicy{MaxAttempts: 3})
	ctx := context.Background()

	id, err := q.Enqueue(ctx, model.RunKindAlertScan, "", model.TriggerCron, model.PriorityNormal)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	// Simulate a crash: the run went active an hour ago and never finished.
	if err := store.MarkRunActive(ctx, id, time.Now().UTC().Add(-time.Hour)); err != nil {
		t.Fatalf("MarkRunActive: %v", err)
	}

	q.recoverStale(ctx)

	run, _ := store.GetRun(ctx, id)
	if run.Status != model.RunStatusQueued {
		t.Errorf("status = %s, want queued after lease expiry", run.Status)
	}
	if run.Attempts != 1 {
		t.Errorf("attempts = %d, want 1 (crash attempt preserved)", run.Attempts)
	}
}

func TestRecoverStaleAtCeilingFailsPermanently(t *testing.T) {
	q, store, notifier := newTestQueue(t, model.RetryPolicy{MaxAttempts: 1})
	ctx := context.Background()

	id, err := q.Enqueue(ctx, model.RunKindAlertScan, "", model.TriggerCron, model.PriorityNormal)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := store.MarkRunActive(ctx, id, time.Now().UTC().Add(-time.Hour)); err != nil {
		t.Fatalf("MarkRunActive: %v", err)
	}

	q.recoverStale(ctx)

	run, _ := store.GetRun(ctx, id)
	if run.Status != model.RunStatusFailed {
		t.Errorf("status = %s, want failed", run.Status)
	}
	if len(notifier.errors) != 1 {
		t.Errorf("expected one operator alert, got %d", len(notifier.errors))
	}
}

func TestProgressRefreshesLease(t *testing.T) {
	q, store, _ := newTestQueue(t, model.RetryPolicy{MaxAttempts: 3})
	ctx := context.Background()

	id, err := q.Enqueue(ctx, model.RunKindAlertScan, "", model.TriggerCron, model.PriorityNormal)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := store.MarkRunActive(ctx, id, time.Now().UTC().Add(-time.Hour)); err != nil {
		t.Fatalf("MarkRunActive: %v", err)
	}

	if err := q.Progress(ctx, id, 40, "halfway"); err != nil {
		t.Fatalf("Progress: %v", err)
	}

	stale, err := store.StaleActiveRuns(ctx, time.Now().UTC().Add(-30*time.Minute))
	if err != nil {
		t.Fatalf("StaleActiveRuns: %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("expected no stale runs after a progress write, got %d", len(stale))
	}
	run, _ := store.GetRun(ctx, id)
	if run.Progress != 40 || run.Step != "halfway" {
		t.Errorf("progress not recorded: %+v", run)
	}
}
