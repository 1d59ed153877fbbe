package ai

import (
	"context"
	"strings"
	"testing"

	"github.com/amishk599/jobsift/internal/model"
)

func TestScoreReturnsRelevance(t *testing.T) {
	provider := &stubProvider{response: `{"relevance":0.82,"reason":"strong skill overlap"}`}
	s := NewProfileScorer(provider)

	got, err := s.Score(context.Background(), model.JobPostingDraft{Title: "Go Engineer"}, model.ResumeProfile{})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got != 0.82 {
		t.Errorf("Score = %v, want 0.82", got)
	}
}

func TestScoreClampsOutOfRange(t *testing.T) {
	provider := &stubProvider{response: `{"relevance":-0.3,"reason":"noise"}`}
	s := NewProfileScorer(provider)

	got, err := s.Score(context.Background(), model.JobPostingDraft{}, model.ResumeProfile{})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got != 0 {
		t.Errorf("Score = %v, want clamped to 0", got)
	}
}

func TestScorePromptCarriesProfileAndDraft(t *testing.T) {
	provider := &stubProvider{response: `{"relevance":0.5,"reason":"ok"}`}
	s := NewProfileScorer(provider)

	draft := model.JobPostingDraft{Title: "Platform Engineer", Company: "Acme"}
	prof := model.ResumeProfile{
		Skills:    []string{"Go", "Kubernetes"},
		Seniority: model.SenioritySenior,
	}
	if _, err := s.Score(context.Background(), draft, prof); err != nil {
		t.Fatalf("Score: %v", err)
	}

	prompt := provider.requests[0].Prompt
	for _, want := range []string{"Platform Engineer", "Acme", "Go", "Kubernetes", "senior"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
