package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestHTTPErrorMessage(t *testing.T) {
	bare := &HTTPError{StatusCode: 401}
	if got := bare.Error(); got != "HTTP 401" {
		t.Errorf("Error() = %q", got)
	}

	wrapped := &HTTPError{StatusCode: 429, Err: errors.New("telegram sendMessage")}
	if got := wrapped.Error(); got != "HTTP 429: telegram sendMessage" {
		t.Errorf("Error() = %q", got)
	}
}

func TestHTTPErrorUnwrapsThroughChains(t *testing.T) {
	inner := errors.New("modify labels")
	err := fmt.Errorf("fetching message m1: %w", &HTTPError{StatusCode: 503, Err: inner})

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 503 {
		t.Fatalf("expected HTTPError 503 in chain, got %v", err)
	}
	if !errors.Is(err, inner) {
		t.Error("wrapped cause should survive Unwrap")
	}
}
