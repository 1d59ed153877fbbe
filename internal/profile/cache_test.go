package profile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/amishk599/jobsift/internal/model"
)

type stubStore struct {
	profile *model.ResumeProfile
	saveErr error
	saved   int
}

func (s *stubStore) Latest(context.Context) (*model.ResumeProfile, error) {
	return s.profile, nil
}

func (s *stubStore) Save(_ context.Context, p model.ResumeProfile) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved++
	s.profile = &p
	return nil
}

type stubSource struct {
	profile model.ResumeProfile
	err     error
	calls   int
}

func (s *stubSource) Analyze(context.Context) (model.ResumeProfile, error) {
	s.calls++
	return s.profile, s.err
}

func newTestCache(t *testing.T, store *stubStore, source *stubSource, now time.Time) *Cache {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewCache(store, source, 7*24*time.Hour, logger)
	c.clock = func() time.Time { return now }
	return c
}

func TestCurrentUsesFreshCachedProfile(t *testing.T) {
	now := time.Date(2026, 8, 21, 12, 0, 0, 0, time.UTC)
	store := &stubStore{profile: &model.ResumeProfile{
		Skills:     []string{"Go"},
		AnalyzedAt: now.Add(-6 * 24 * time.Hour), // six days old, inside the week
	}}
	source := &stubSource{}
	c := newTestCache(t, store, source, now)

	got, err := c.Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if source.calls != 0 {
		t.Errorf("expected no re-analysis of a fresh profile, got %d calls", source.calls)
	}
	if len(got.Skills) != 1 || got.Skills[0] != "Go" {
		t.Errorf("unexpected profile: %+v", got)
	}
}

func TestCurrentReanalyzesStaleProfile(t *testing.T) {
	now := time.Date(2026, 8, 21, 12, 0, 0, 0, time.UTC)
	store := &stubStore{profile: &model.ResumeProfile{
		Skills:     []string{"Go"},
		AnalyzedAt: now.Add(-8 * 24 * time.Hour), // eight days old, past the week
	}}
	source := &stubSource{profile: model.ResumeProfile{Skills: []string{"Go", "Rust"}}}
	c := newTestCache(t, store, source, now)

	got, err := c.Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected one re-analysis, got %d", source.calls)
	}
	if !got.AnalyzedAt.Equal(now) {
		t.Errorf("AnalyzedAt = %v, want the analysis instant %v", got.AnalyzedAt, now)
	}
	if store.saved != 1 {
		t.Errorf("expected the fresh profile to be persisted, saved %d times", store.saved)
	}
}

func TestCurrentAnalyzesWhenNothingCached(t *testing.T) {
	now := time.Now()
	store := &stubStore{}
	source := &stubSource{profile: model.ResumeProfile{Skills: []string{"Go"}}}
	c := newTestCache(t, store, source, now)

	if _, err := c.Current(context.Background()); err != nil {
		t.Fatalf("Current: %v", err)
	}
	if source.calls != 1 {
		t.Errorf("expected one analysis, got %d", source.calls)
	}
}

func TestCurrentSaveFailureIsNonFatal(t *testing.T) {
	now := time.Now()
	store := &stubStore{saveErr: errors.New("disk full")}
	source := &stubSource{profile: model.ResumeProfile{Skills: []string{"Go"}}}
	c := newTestCache(t, store, source, now)

	got, err := c.Current(context.Background())
	if err != nil {
		t.Fatalf("Current must tolerate a cache-write failure, got %v", err)
	}
	if len(got.Skills) != 1 {
		t.Errorf("expected the in-memory profile despite the save failure, got %+v", got)
	}
}

func TestCurrentAnalysisFailureIsFatal(t *testing.T) {
	now := time.Now()
	store := &stubStore{}
	source := &stubSource{err: errors.New("llm down")}
	c := newTestCache(t, store, source, now)

	if _, err := c.Current(context.Background()); err == nil {
		t.Fatal("expected an error when the resume analysis fails with no cache")
	}
}
