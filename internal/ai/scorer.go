package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/amishk599/jobsift/internal/model"
)

// Ensure ProfileScorer implements model.RelevanceScorer.
var _ model.RelevanceScorer = (*ProfileScorer)(nil)

var scoreSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"properties": map[string]any{
		"relevance": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		"reason":    map[string]any{"type": "string"},
	},
	"required": []string{"relevance", "reason"},
}

// ProfileScorer rates a posting draft against the resume profile.
type ProfileScorer struct {
	provider LLMProvider
}

// NewProfileScorer creates a scorer on the given provider.
func NewProfileScorer(provider LLMProvider) *ProfileScorer {
	return &ProfileScorer{provider: provider}
}

type rawScore struct {
	Relevance float64 `json:"relevance"`
	Reason    string  `json:"reason"`
}

// Score returns the fit estimate in [0,1].
func (s *ProfileScorer) Score(ctx context.Context, draft model.JobPostingDraft, prof model.ResumeProfile) (float64, error) {
	var promptBuf bytes.Buffer
	err := scoreTemplate.Execute(&promptBuf, struct {
		Draft   model.JobPostingDraft
		Profile model.ResumeProfile
	}{draft, prof})
	if err != nil {
		return 0, fmt.Errorf("render score prompt: %w", err)
	}

	raw, err := s.provider.Complete(ctx, CompletionRequest{
		System:     "You are a pragmatic technical recruiter judging candidate/role fit.",
		Prompt:     promptBuf.String(),
		SchemaName: "relevance_score",
		Schema:     scoreSchema,
	})
	if err != nil {
		return 0, fmt.Errorf("llm score: %w", err)
	}

	var rs rawScore
	if err := json.Unmarshal([]byte(raw), &rs); err != nil {
		return 0, fmt.Errorf("unmarshal score response: %w", err)
	}
	return clamp01(rs.Relevance), nil
}
