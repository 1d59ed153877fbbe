package store

import (
	"context"
	"testing"
	"time"

	"github.com/amishk599/jobsift/internal/model"
)

func insertRun(t *testing.T, s *SQLiteStore, id string, kind model.RunKind, priority int, createdAt time.Time) {
	t.Helper()
	err := s.InsertRun(context.Background(), model.PipelineRun{
		ID:        id,
		Kind:      kind,
		Trigger:   model.TriggerCron,
		Priority:  priority,
		Status:    model.RunStatusQueued,
		CreatedAt: createdAt,
	})
	if err != nil {
		t.Fatalf("InsertRun(%s): %v", id, err)
	}
}

func TestInFlightRunSeesQueuedAndActive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	run, err := s.InFlightRun(ctx, model.RunKindAlertScan)
	if err != nil {
		t.Fatalf("InFlightRun: %v", err)
	}
	if run != nil {
		t.Fatalf("expected no in-flight run, got %+v", run)
	}

	insertRun(t, s, "run-1", model.RunKindAlertScan, model.PriorityNormal, now)

	run, err = s.InFlightRun(ctx, model.RunKindAlertScan)
	if err != nil {
		t.Fatalf("InFlightRun: %v", err)
	}
	if run == nil || run.ID != "run-1" {
		t.Fatalf("expected run-1 in flight, got %+v", run)
	}

	if err := s.MarkRunActive(ctx, "run-1", now); err != nil {
		t.Fatalf("MarkRunActive: %v", err)
	}
	run, err = s.InFlightRun(ctx, model.RunKindAlertScan)
	if err != nil {
		t.Fatalf("InFlightRun: %v", err)
	}
	if run == nil || run.Status != model.RunStatusActive {
		t.Fatalf("expected active run, got %+v", run)
	}

	// A different kind is unaffected.
	other, err := s.InFlightRun(ctx, model.RunKindDailySummary)
	if err != nil {
		t.Fatalf("InFlightRun: %v", err)
	}
	if other != nil {
		t.Errorf("expected no daily-summary run, got %+v", other)
	}
}

func TestNextReadyRunPriorityThenAge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	insertRun(t, s, "older-normal", model.RunKindAlertScan, model.PriorityNormal, now.Add(-2*time.Minute))
	insertRun(t, s, "newer-normal", model.RunKindDailySummary, model.PriorityNormal, now.Add(-time.Minute))
	insertRun(t, s, "manual-high", model.RunKindDailySummary, model.PriorityHigh, now)

	next, err := s.NextReadyRun(ctx, now)
	if err != nil {
		t.Fatalf("NextReadyRun: %v", err)
	}
	if next == nil || next.ID != "manual-high" {
		t.Fatalf("expected manual-high first, got %+v", next)
	}

	if err := s.MarkRunCompleted(ctx, "manual-high", now); err != nil {
		t.Fatalf("MarkRunCompleted: %v", err)
	}
	next, err = s.NextReadyRun(ctx, now)
	if err != nil {
		t.Fatalf("NextReadyRun: %v", err)
	}
	if next == nil || next.ID != "older-normal" {
		t.Fatalf("expected older-normal next, got %+v", next)
	}
}

func TestNextReadyRunSkipsBackoffWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	insertRun(t, s, "run-1", model.RunKindAlertScan, model.PriorityNormal, now)
	if err := s.RequeueRun(ctx, "run-1", "boom", now.Add(time.Minute)); err != nil {
		t.Fatalf("RequeueRun: %v", err)
	}

	next, err := s.NextReadyRun(ctx, now)
	if err != nil {
		t.Fatalf("NextReadyRun: %v", err)
	}
	if next != nil {
		t.Fatalf("expected no ready run inside the backoff window, got %+v", next)
	}

	next, err = s.NextReadyRun(ctx, now.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("NextReadyRun: %v", err)
	}
	if next == nil || next.ID != "run-1" {
		t.Fatalf("expected run-1 after the backoff window, got %+v", next)
	}
	if next.LastErr != "boom" {
		t.Errorf("LastErr = %q, want boom", next.LastErr)
	}
}

func TestMarkRunActiveIncrementsAttempts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	insertRun(t, s, "run-1", model.RunKindAlertScan, model.PriorityNormal, now)
	if err := s.MarkRunActive(ctx, "run-1", now); err != nil {
		t.Fatalf("MarkRunActive: %v", err)
	}
	if err := s.RequeueRun(ctx, "run-1", "boom", now); err != nil {
		t.Fatalf("RequeueRun: %v", err)
	}
	if err := s.MarkRunActive(ctx, "run-1", now); err != nil {
		t.Fatalf("MarkRunActive: %v", err)
	}

	run, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", run.Attempts)
	}
	if run.LeasedAt == nil {
		t.Error("expected lease to be stamped")
	}
}

func TestStaleActiveRunsUsesLease(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	insertRun(t, s, "stale", model.RunKindAlertScan, model.PriorityNormal, now)
	if err := s.MarkRunActive(ctx, "stale", now.Add(-time.Hour)); err != nil {
		t.Fatalf("MarkRunActive: %v", err)
	}
	insertRun(t, s, "live", model.RunKindDailySummary, model.PriorityNormal, now)
	if err := s.MarkRunActive(ctx, "live", now.Add(-time.Hour)); err != nil {
		t.Fatalf("MarkRunActive: %v", err)
	}
	// Progress writes refresh the lease and keep the run off the stale list.
	if err := s.UpdateRunProgress(ctx, "live", 40, "working", now); err != nil {
		t.Fatalf("UpdateRunProgress: %v", err)
	}

	stale, err := s.StaleActiveRuns(ctx, now.Add(-30*time.Minute))
	if err != nil {
		t.Fatalf("StaleActiveRuns: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != "stale" {
		t.Fatalf("expected only the stale run, got %+v", stale)
	}
}

func TestRunStatsCountsByStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	insertRun(t, s, "q1", model.RunKindAlertScan, model.PriorityNormal, now)
	insertRun(t, s, "c1", model.RunKindDailySummary, model.PriorityNormal, now)
	if err := s.MarkRunCompleted(ctx, "c1", now); err != nil {
		t.Fatalf("MarkRunCompleted: %v", err)
	}
	insertRun(t, s, "f1", model.RunKindDailySummary, model.PriorityNormal, now)
	if err := s.MarkRunFailed(ctx, "f1", "boom", now); err != nil {
		t.Fatalf("MarkRunFailed: %v", err)
	}

	stats, err := s.RunStats(ctx)
	if err != nil {
		t.Fatalf("RunStats: %v", err)
	}
	if stats.Queued != 1 || stats.Completed != 1 || stats.Failed != 1 || stats.Active != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestPruneRunsKeepsRecentAndInFlight(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	insertRun(t, s, "old-done", model.RunKindAlertScan, model.PriorityNormal, now.Add(-10*24*time.Hour))
	if err := s.MarkRunCompleted(ctx, "old-done", now.Add(-10*24*time.Hour)); err != nil {
		t.Fatalf("MarkRunCompleted: %v", err)
	}
	insertRun(t, s, "queued", model.RunKindDailySummary, model.PriorityNormal, now.Add(-10*24*time.Hour))

	if err := s.PruneRuns(ctx, 7*24*time.Hour); err != nil {
		t.Fatalf("PruneRuns: %v", err)
	}

	gone, err := s.GetRun(ctx, "old-done")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if gone != nil {
		t.Error("expected old completed run to be pruned")
	}
	kept, err := s.GetRun(ctx, "queued")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if kept == nil {
		t.Error("expected queued run to survive pruning regardless of age")
	}
}
