package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/amishk599/jobsift/internal/model"
)

// Ensure PostingExtractor implements model.Extractor.
var _ model.Extractor = (*PostingExtractor)(nil)

var extractSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"properties": map[string]any{
		"postings": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"title":        map[string]any{"type": "string"},
					"company":      map[string]any{"type": "string"},
					"location":     map[string]any{"type": "string"},
					"remote":       map[string]any{"type": "boolean"},
					"description":  map[string]any{"type": "string"},
					"requirements": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"apply_url":    map[string]any{"type": "string"},
					"salary":       map[string]any{"type": "string"},
					"posted_at":    map[string]any{"type": "string"},
					"source": map[string]any{
						"type": "string",
						"enum": []string{"linkedin", "indeed", "glassdoor", "wellfound", "company", "other"},
					},
				},
				"required": []string{
					"title", "company", "location", "remote", "description",
					"requirements", "apply_url", "salary", "posted_at", "source",
				},
			},
		},
	},
	"required": []string{"postings"},
}

// PostingExtractor turns one email into structured job posting drafts.
type PostingExtractor struct {
	provider LLMProvider
	logger   *slog.Logger
}

// NewPostingExtractor creates an extractor on the given provider.
func NewPostingExtractor(provider LLMProvider, logger *slog.Logger) *PostingExtractor {
	return &PostingExtractor{provider: provider, logger: logger}
}

type rawPostings struct {
	Postings []struct {
		Title        string   `json:"title"`
		Company      string   `json:"company"`
		Location     string   `json:"location"`
		Remote       bool     `json:"remote"`
		Description  string   `json:"description"`
		Requirements []string `json:"requirements"`
		ApplyURL     string   `json:"apply_url"`
		Salary       string   `json:"salary"`
		PostedAt     string   `json:"posted_at"`
		Source       string   `json:"source"`
	} `json:"postings"`
}

// ExtractJobs returns zero or more drafts for the message. Postings missing a
// title or company are dropped rather than persisted half-empty.
func (e *PostingExtractor) ExtractJobs(ctx context.Context, msg model.EmailMessage) ([]model.JobPostingDraft, error) {
	var promptBuf bytes.Buffer
	err := extractTemplate.Execute(&promptBuf, struct {
		From    string
		Subject string
		Body    string
	}{msg.From, msg.Subject, msg.Body})
	if err != nil {
		return nil, fmt.Errorf("render extract prompt: %w", err)
	}

	raw, err := e.provider.Complete(ctx, CompletionRequest{
		System:     "You are a precise structured data extractor for job postings.",
		Prompt:     promptBuf.String(),
		SchemaName: "job_postings",
		Schema:     extractSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("llm extract: %w", err)
	}

	var rp rawPostings
	if err := json.Unmarshal([]byte(raw), &rp); err != nil {
		return nil, fmt.Errorf("unmarshal extract response: %w", err)
	}

	drafts := make([]model.JobPostingDraft, 0, len(rp.Postings))
	for _, p := range rp.Postings {
		if p.Title == "" || p.Company == "" {
			e.logger.Debug("dropping incomplete posting", "email_id", msg.ID, "title", p.Title, "company", p.Company)
			continue
		}
		draft := model.JobPostingDraft{
			Title:        p.Title,
			Company:      p.Company,
			Location:     p.Location,
			Remote:       p.Remote,
			Description:  p.Description,
			Requirements: p.Requirements,
			ApplyURL:     p.ApplyURL,
			Salary:       p.Salary,
			Source:       p.Source,
		}
		if p.PostedAt != "" {
			if t, err := time.Parse(time.RFC3339, p.PostedAt); err == nil {
				draft.PostedAt = &t
			}
		}
		drafts = append(drafts, draft)
	}
	return drafts, nil
}
