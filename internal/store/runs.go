package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/amishk599/jobsift/internal/model"
)

// Run queue persistence. The queue package owns all state transitions; this
// file only moves PipelineRun rows in and out of sqlite.

const selectRuns = `SELECT id, kind, trigger_source, priority, payload, status,
	progress, step, attempts, last_err, created_at, started_at, leased_at,
	completed_at FROM pipeline_runs`

// InsertRun persists a freshly enqueued run.
func (s *SQLiteStore) InsertRun(ctx context.Context, r model.PipelineRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipeline_runs
		 (id, kind, trigger_source, priority, payload, status, progress, step,
		  attempts, last_err, next_attempt_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?)`,
		r.ID, string(r.Kind), string(r.Trigger), r.Priority, r.Payload,
		string(r.Status), r.Progress, r.Step, r.Attempts, r.LastErr, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", r.ID, err)
	}
	return nil
}

// InFlightRun returns the queued-or-active run for a kind, or nil.
func (s *SQLiteStore) InFlightRun(ctx context.Context, kind model.RunKind) (*model.PipelineRun, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+
		" WHERE kind = ? AND status IN (?, ?) LIMIT 1",
		string(kind), string(model.RunStatusQueued), string(model.RunStatusActive))
	return scanRun(row)
}

// NextReadyRun returns the queued run that should execute next: highest
// priority first, then oldest, skipping runs still waiting out a retry delay.
func (s *SQLiteStore) NextReadyRun(ctx context.Context, now time.Time) (*model.PipelineRun, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+
		` WHERE status = ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
		  ORDER BY priority DESC, created_at ASC LIMIT 1`,
		string(model.RunStatusQueued), now)
	return scanRun(row)
}

// GetRun returns a run by id, or nil when absent.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.PipelineRun, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+" WHERE id = ?", id)
	return scanRun(row)
}

// MarkRunActive transitions a run to active and stamps its lease.
func (s *SQLiteStore) MarkRunActive(ctx context.Context, id string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pipeline_runs SET status = ?, attempts = attempts + 1,
		 started_at = ?, leased_at = ? WHERE id = ?`,
		string(model.RunStatusActive), now, now, id)
	if err != nil {
		return fmt.Errorf("activating run %s: %w", id, err)
	}
	return nil
}

// UpdateRunProgress records a progress checkpoint and refreshes the lease.
func (s *SQLiteStore) UpdateRunProgress(ctx context.Context, id string, progress int, step string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE pipeline_runs SET progress = ?, step = ?, leased_at = ? WHERE id = ?",
		progress, step, now, id)
	if err != nil {
		return fmt.Errorf("updating progress for run %s: %w", id, err)
	}
	return nil
}

// MarkRunCompleted finishes a run successfully.
func (s *SQLiteStore) MarkRunCompleted(ctx context.Context, id string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE pipeline_runs SET status = ?, progress = 100, completed_at = ? WHERE id = ?",
		string(model.RunStatusCompleted), now, id)
	if err != nil {
		return fmt.Errorf("completing run %s: %w", id, err)
	}
	return nil
}

// MarkRunFailed finishes a run permanently after the retry ceiling.
func (s *SQLiteStore) MarkRunFailed(ctx context.Context, id, lastErr string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE pipeline_runs SET status = ?, last_err = ?, completed_at = ? WHERE id = ?",
		string(model.RunStatusFailed), lastErr, now, id)
	if err != nil {
		return fmt.Errorf("failing run %s: %w", id, err)
	}
	return nil
}

// RequeueRun puts a failed attempt back in the queue with a retry delay.
// Attempts are preserved so the ceiling still applies after a crash.
func (s *SQLiteStore) RequeueRun(ctx context.Context, id, lastErr string, nextAttempt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pipeline_runs SET status = ?, last_err = ?, next_attempt_at = ?,
		 leased_at = NULL WHERE id = ?`,
		string(model.RunStatusQueued), lastErr, nextAttempt, id)
	if err != nil {
		return fmt.Errorf("requeueing run %s: %w", id, err)
	}
	return nil
}

// StaleActiveRuns returns active runs whose lease is older than cutoff.
// These are runs abandoned by a crashed process.
func (s *SQLiteStore) StaleActiveRuns(ctx context.Context, cutoff time.Time) ([]model.PipelineRun, error) {
	rows, err := s.db.QueryContext(ctx, selectRuns+
		" WHERE status = ? AND leased_at IS NOT NULL AND leased_at < ?",
		string(model.RunStatusActive), cutoff)
	if err != nil {
		return nil, fmt.Errorf("querying stale runs: %w", err)
	}
	defer rows.Close()

	var runs []model.PipelineRun
	for rows.Next() {
		r, err := scanRunRow(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// RunStats counts runs by status.
func (s *SQLiteStore) RunStats(ctx context.Context) (model.QueueStats, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM pipeline_runs GROUP BY status")
	if err != nil {
		return model.QueueStats{}, fmt.Errorf("querying run stats: %w", err)
	}
	defer rows.Close()

	var stats model.QueueStats
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return model.QueueStats{}, fmt.Errorf("scanning run stats: %w", err)
		}
		switch model.RunStatus(status) {
		case model.RunStatusQueued:
			stats.Queued = n
		case model.RunStatusActive:
			stats.Active = n
		case model.RunStatusCompleted:
			stats.Completed = n
		case model.RunStatusFailed:
			stats.Failed = n
		}
	}
	return stats, rows.Err()
}

// PruneRuns deletes completed and failed runs older than the given duration.
func (s *SQLiteStore) PruneRuns(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().UTC().Add(-olderThan)
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM pipeline_runs WHERE status IN (?, ?) AND completed_at < ?",
		string(model.RunStatusCompleted), string(model.RunStatusFailed), cutoff)
	if err != nil {
		return fmt.Errorf("pruning runs older than %v: %w", olderThan, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row *sql.Row) (*model.PipelineRun, error) {
	r, err := scanRunRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

func scanRunRow(row rowScanner) (*model.PipelineRun, error) {
	var (
		r                              model.PipelineRun
		kind, trigger, status          string
		startedAt, leasedAt, completed sql.NullTime
	)
	err := row.Scan(&r.ID, &kind, &trigger, &r.Priority, &r.Payload, &status,
		&r.Progress, &r.Step, &r.Attempts, &r.LastErr, &r.CreatedAt,
		&startedAt, &leasedAt, &completed)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning run row: %w", err)
	}
	r.Kind = model.RunKind(kind)
	r.Trigger = model.TriggerSource(trigger)
	r.Status = model.RunStatus(status)
	if startedAt.Valid {
		t := startedAt.Time
		r.StartedAt = &t
	}
	if leasedAt.Valid {
		t := leasedAt.Time
		r.LeasedAt = &t
	}
	if completed.Valid {
		t := completed.Time
		r.CompletedAt = &t
	}
	return &r, nil
}
