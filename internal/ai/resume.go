package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/amishk599/jobsift/internal/model"
)

// Ensure ResumeAnalyzer implements model.ResumeSource.
var _ model.ResumeSource = (*ResumeAnalyzer)(nil)

var resumeSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"properties": map[string]any{
		"skills": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"highlights": map[string]any{
			"type":     "array",
			"items":    map[string]any{"type": "string"},
			"maxItems": 8,
		},
		"preferred_roles": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"seniority": map[string]any{
			"type": "string",
			"enum": []string{"entry", "mid", "senior", "staff", "executive"},
		},
	},
	"required": []string{"skills", "highlights", "preferred_roles", "seniority"},
}

// ResumeAnalyzer derives a candidate profile from the resume text on disk.
// The file is re-read on every Analyze so the operator can swap resumes
// without restarting the daemon.
type ResumeAnalyzer struct {
	provider   LLMProvider
	resumePath string
}

// NewResumeAnalyzer creates an analyzer for the resume at resumePath.
func NewResumeAnalyzer(provider LLMProvider, resumePath string) *ResumeAnalyzer {
	return &ResumeAnalyzer{provider: provider, resumePath: resumePath}
}

type rawProfile struct {
	Skills         []string `json:"skills"`
	Highlights     []string `json:"highlights"`
	PreferredRoles []string `json:"preferred_roles"`
	Seniority      string   `json:"seniority"`
}

// Analyze reads the resume document and summarizes it into a profile.
// AnalyzedAt is left zero; the caller owns the staleness clock.
func (a *ResumeAnalyzer) Analyze(ctx context.Context) (model.ResumeProfile, error) {
	doc, err := os.ReadFile(a.resumePath)
	if err != nil {
		return model.ResumeProfile{}, fmt.Errorf("read resume %s: %w", a.resumePath, err)
	}

	var promptBuf bytes.Buffer
	if err := resumeTemplate.Execute(&promptBuf, struct{ Resume string }{string(doc)}); err != nil {
		return model.ResumeProfile{}, fmt.Errorf("render resume prompt: %w", err)
	}

	raw, err := a.provider.Complete(ctx, CompletionRequest{
		System:     "You are a precise resume analyst.",
		Prompt:     promptBuf.String(),
		SchemaName: "resume_profile",
		Schema:     resumeSchema,
	})
	if err != nil {
		return model.ResumeProfile{}, fmt.Errorf("llm resume analysis: %w", err)
	}

	var rp rawProfile
	if err := json.Unmarshal([]byte(raw), &rp); err != nil {
		return model.ResumeProfile{}, fmt.Errorf("unmarshal resume response: %w", err)
	}

	return model.ResumeProfile{
		Skills:         rp.Skills,
		Highlights:     rp.Highlights,
		PreferredRoles: rp.PreferredRoles,
		Seniority:      model.Seniority(rp.Seniority),
	}, nil
}
