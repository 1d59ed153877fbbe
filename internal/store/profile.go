package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/amishk599/jobsift/internal/model"
)

// Ensure SQLiteStore implements model.ProfileStore.
var _ model.ProfileStore = (*SQLiteStore)(nil)

// Latest returns the current resume profile, or nil when none has been saved.
func (s *SQLiteStore) Latest(ctx context.Context) (*model.ResumeProfile, error) {
	var (
		p          model.ResumeProfile
		skills     string
		highlights string
		roles      string
		seniority  string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT skills, highlights, preferred_roles, seniority, analyzed_at
		 FROM resume_profile WHERE id = 1`).
		Scan(&skills, &highlights, &roles, &seniority, &p.AnalyzedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading resume profile: %w", err)
	}

	p.Seniority = model.Seniority(seniority)
	for _, pair := range []struct {
		raw string
		dst *[]string
	}{
		{skills, &p.Skills},
		{highlights, &p.Highlights},
		{roles, &p.PreferredRoles},
	} {
		if err := json.Unmarshal([]byte(pair.raw), pair.dst); err != nil {
			return nil, fmt.Errorf("unmarshal resume profile field: %w", err)
		}
	}
	return &p, nil
}

// Save upserts the single current profile row.
func (s *SQLiteStore) Save(ctx context.Context, p model.ResumeProfile) error {
	skills, err := json.Marshal(p.Skills)
	if err != nil {
		return fmt.Errorf("marshal skills: %w", err)
	}
	highlights, err := json.Marshal(p.Highlights)
	if err != nil {
		return fmt.Errorf("marshal highlights: %w", err)
	}
	roles, err := json.Marshal(p.PreferredRoles)
	if err != nil {
		return fmt.Errorf("marshal preferred roles: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO resume_profile (id, skills, highlights, preferred_roles, seniority, analyzed_at)
		 VALUES (1, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			skills = excluded.skills,
			highlights = excluded.highlights,
			preferred_roles = excluded.preferred_roles,
			seniority = excluded.seniority,
			analyzed_at = excluded.analyzed_at`,
		string(skills), string(highlights), string(roles), string(p.Seniority), p.AnalyzedAt)
	if err != nil {
		return fmt.Errorf("saving resume profile: %w", err)
	}
	return nil
}
