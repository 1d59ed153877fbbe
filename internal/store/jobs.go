package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/jobsift/internal/model"
)

// Ensure SQLiteStore implements model.JobStore.
var _ model.JobStore = (*SQLiteStore)(nil)

// Insert persists a posting, assigning ID and CreatedAt when unset.
func (s *SQLiteStore) Insert(ctx context.Context, p *model.JobPosting) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	reqs, err := json.Marshal(p.Requirements)
	if err != nil {
		return fmt.Errorf("marshal requirements: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO jobs
		(id, title, company, location, remote, description, requirements,
		 apply_url, salary, posted_at, source, relevance, email_id, processed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Company, p.Location, boolInt(p.Remote), p.Description, string(reqs),
		p.ApplyURL, p.Salary, nullTime(p.PostedAt), p.Source, p.Relevance, p.EmailID,
		boolInt(p.Processed), p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting job %s at %s: %w", p.Title, p.Company, err)
	}
	return nil
}

// MarkProcessed flags a posting as delivered. The pipeline calls this once
// per posting after a successful digest send.
func (s *SQLiteStore) MarkProcessed(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE jobs SET processed = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("marking job %s processed: %w", id, err)
	}
	return nil
}

// RelevantSince returns postings at or above minRelevance created since the
// given time, highest relevance first.
func (s *SQLiteStore) RelevantSince(ctx context.Context, minRelevance float64, since time.Time) ([]model.JobPosting, error) {
	rows, err := s.db.QueryContext(ctx, selectJobs+
		" WHERE relevance >= ? AND created_at >= ? ORDER BY relevance DESC, created_at DESC",
		minRelevance, since)
	if err != nil {
		return nil, fmt.Errorf("querying relevant jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

// CreatedBetween returns postings created within [from, to), newest first.
func (s *SQLiteStore) CreatedBetween(ctx context.Context, from, to time.Time) ([]model.JobPosting, error) {
	rows, err := s.db.QueryContext(ctx, selectJobs+
		" WHERE created_at >= ? AND created_at < ? ORDER BY created_at DESC",
		from, to)
	if err != nil {
		return nil, fmt.Errorf("querying jobs by day: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

// SourceStats returns the top-N source platforms by posting count within
// [from, to).
func (s *SQLiteStore) SourceStats(ctx context.Context, from, to time.Time, topN int) ([]model.SourceStat, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source, COUNT(*) AS n FROM jobs
		WHERE created_at >= ? AND created_at < ?
		GROUP BY source ORDER BY n DESC LIMIT ?`,
		from, to, topN)
	if err != nil {
		return nil, fmt.Errorf("querying source stats: %w", err)
	}
	defer rows.Close()

	var stats []model.SourceStat
	for rows.Next() {
		var st model.SourceStat
		if err := rows.Scan(&st.Source, &st.Count); err != nil {
			return nil, fmt.Errorf("scanning source stat: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// ListByRelevance returns up to limit postings ordered by descending
// relevance. Used by the TUI browser.
func (s *SQLiteStore) ListByRelevance(ctx context.Context, limit int) ([]model.JobPosting, error) {
	rows, err := s.db.QueryContext(ctx, selectJobs+
		" ORDER BY relevance DESC, created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

const selectJobs = `SELECT id, title, company, location, remote, description,
	requirements, apply_url, salary, posted_at, source, relevance, email_id,
	processed, created_at FROM jobs`

func scanJobs(rows *sql.Rows) ([]model.JobPosting, error) {
	var jobs []model.JobPosting
	for rows.Next() {
		var (
			p        model.JobPosting
			remote   int
			procFlag int
			reqsRaw  string
			postedAt sql.NullTime
		)
		err := rows.Scan(&p.ID, &p.Title, &p.Company, &p.Location, &remote,
			&p.Description, &reqsRaw, &p.ApplyURL, &p.Salary, &postedAt,
			&p.Source, &p.Relevance, &p.EmailID, &procFlag, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning job row: %w", err)
		}
		p.Remote = remote != 0
		p.Processed = procFlag != 0
		if postedAt.Valid {
			t := postedAt.Time
			p.PostedAt = &t
		}
		if err := json.Unmarshal([]byte(reqsRaw), &p.Requirements); err != nil {
			return nil, fmt.Errorf("unmarshal requirements for job %s: %w", p.ID, err)
		}
		jobs = append(jobs, p)
	}
	return jobs, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
