package ai

import "context"

// CompletionRequest is one structured-output call: a prompt pair plus the
// JSON schema the response must conform to.
type CompletionRequest struct {
	System     string
	Prompt     string
	SchemaName string
	Schema     map[string]any
}

// LLMProvider sends a structured-output request to an LLM and returns the raw
// JSON text response. Used only inside this package.
type LLMProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
