package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/amishk599/jobsift/internal/model"
)

// Ensure SQLiteStore implements model.ProcessedEmailLedger.
var _ model.ProcessedEmailLedger = (*SQLiteStore)(nil)

// Exists reports whether a ledger record is present for the message id.
func (s *SQLiteStore) Exists(ctx context.Context, emailID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM processed_emails WHERE email_id = ?", emailID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking ledger for %s: %w", emailID, err)
	}
	return true, nil
}

// Record writes the ledger entry for a message. Replaying the same message id
// keeps the earlier record; the first write wins so a record is never rolled
// back or weakened by a later failure path.
func (s *SQLiteStore) Record(ctx context.Context, rec model.ProcessedEmailRecord) error {
	if rec.ProcessedAt.IsZero() {
		rec.ProcessedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed_emails (email_id, jobs_found, archived, processed_at)
		 VALUES (?, ?, ?, ?)`,
		rec.EmailID, rec.JobsFound, boolInt(rec.Archived), rec.ProcessedAt)
	if err != nil {
		return fmt.Errorf("recording processed email %s: %w", rec.EmailID, err)
	}
	return nil
}

// MarkArchived flags an existing record's archive side effect as done.
func (s *SQLiteStore) MarkArchived(ctx context.Context, emailID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE processed_emails SET archived = 1 WHERE email_id = ?", emailID)
	if err != nil {
		return fmt.Errorf("marking email %s archived: %w", emailID, err)
	}
	return nil
}

// Prune deletes ledger entries older than the given duration.
func (s *SQLiteStore) Prune(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().UTC().Add(-olderThan)
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM processed_emails WHERE processed_at < ?", cutoff)
	if err != nil {
		return fmt.Errorf("pruning processed emails older than %v: %w", olderThan, err)
	}
	return nil
}
