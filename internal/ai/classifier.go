package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/amishk599/jobsift/internal/model"
)

// Ensure BatchClassifier implements model.Classifier.
var _ model.Classifier = (*BatchClassifier)(nil)

// previewBytes caps how much body each email contributes to a batch prompt.
const previewBytes = 500

// classifySchema is enforced server-side via OpenAI structured outputs.
var classifySchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"properties": map[string]any{
		"verdicts": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"email_id":       map[string]any{"type": "string"},
					"is_job_related": map[string]any{"type": "boolean"},
					"confidence":     map[string]any{"type": "number", "minimum": 0, "maximum": 1},
				},
				"required": []string{"email_id", "is_job_related", "confidence"},
			},
		},
	},
	"required": []string{"verdicts"},
}

// BatchClassifier labels batches of emails job-related or not using an LLM.
type BatchClassifier struct {
	provider LLMProvider
	logger   *slog.Logger
}

// NewBatchClassifier creates a classifier on the given provider.
func NewBatchClassifier(provider LLMProvider, logger *slog.Logger) *BatchClassifier {
	return &BatchClassifier{provider: provider, logger: logger}
}

type classifyEmail struct {
	ID      string
	From    string
	Subject string
	Preview string
}

type rawVerdicts struct {
	Verdicts []struct {
		EmailID      string  `json:"email_id"`
		IsJobRelated bool    `json:"is_job_related"`
		Confidence   float64 `json:"confidence"`
	} `json:"verdicts"`
}

// ClassifyBatch labels all messages in one LLM call. A message the model
// fails to answer for comes back as not job-related with zero confidence,
// so it is skipped rather than guessed at.
func (c *BatchClassifier) ClassifyBatch(ctx context.Context, msgs []model.EmailMessage) ([]model.Classification, error) {
	if len(msgs) == 0 {
		return nil, nil
	}

	emails := make([]classifyEmail, 0, len(msgs))
	for _, m := range msgs {
		emails = append(emails, classifyEmail{
			ID:      m.ID,
			From:    m.From,
			Subject: m.Subject,
			Preview: m.Preview(previewBytes),
		})
	}

	var promptBuf bytes.Buffer
	if err := classifyTemplate.Execute(&promptBuf, struct{ Emails []classifyEmail }{emails}); err != nil {
		return nil, fmt.Errorf("render classify prompt: %w", err)
	}

	raw, err := c.provider.Complete(ctx, CompletionRequest{
		System:     "You are a precise email triage assistant for job search automation.",
		Prompt:     promptBuf.String(),
		SchemaName: "email_verdicts",
		Schema:     classifySchema,
	})
	if err != nil {
		return nil, fmt.Errorf("llm classify: %w", err)
	}

	var rv rawVerdicts
	if err := json.Unmarshal([]byte(raw), &rv); err != nil {
		return nil, fmt.Errorf("unmarshal classify response: %w", err)
	}

	byID := make(map[string]model.Classification, len(rv.Verdicts))
	for _, v := range rv.Verdicts {
		byID[v.EmailID] = model.Classification{
			EmailID:      v.EmailID,
			IsJobRelated: v.IsJobRelated,
			Confidence:   clamp01(v.Confidence),
		}
	}

	// Answers come back in input order with unanswered ids defaulting to a
	// negative verdict.
	out := make([]model.Classification, 0, len(msgs))
	for _, m := range msgs {
		v, ok := byID[m.ID]
		if !ok {
			c.logger.Warn("classifier returned no verdict for message", "email_id", m.ID)
			v = model.Classification{EmailID: m.ID}
		}
		out = append(out, v)
	}
	return out, nil
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
