// Package profile owns the resume profile staleness policy.
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/amishk599/jobsift/internal/model"
)

// Cache serves the current resume profile, re-analyzing lazily when the
// stored one is absent or older than maxAge.
type Cache struct {
	store  model.ProfileStore
	source model.ResumeSource
	maxAge time.Duration
	logger *slog.Logger
	clock  func() time.Time
}

// NewCache wires the cache with its store and analyzer.
func NewCache(store model.ProfileStore, source model.ResumeSource, maxAge time.Duration, logger *slog.Logger) *Cache {
	return &Cache{
		store:  store,
		source: source,
		maxAge: maxAge,
		logger: logger,
		clock:  time.Now,
	}
}

// Current returns a usable profile. A fresh cached profile is returned as-is;
// otherwise the resume is re-analyzed (blocking) and best-effort persisted.
// A cache-write failure is logged and non-fatal: the in-memory profile is
// still correct for this run.
func (c *Cache) Current(ctx context.Context) (model.ResumeProfile, error) {
	cached, err := c.store.Latest(ctx)
	if err != nil {
		// Degraded read; fall through to a fresh analysis.
		c.logger.Warn("profile cache read failed", "error", err)
	}

	now := c.clock()
	if cached != nil && !cached.StaleAfter(now, c.maxAge) {
		return *cached, nil
	}

	if cached == nil {
		c.logger.Info("no cached resume profile, analyzing")
	} else {
		c.logger.Info("resume profile stale, re-analyzing",
			"analyzed_at", cached.AnalyzedAt, "max_age", c.maxAge.String())
	}

	fresh, err := c.source.Analyze(ctx)
	if err != nil {
		return model.ResumeProfile{}, fmt.Errorf("analyzing resume: %w", err)
	}
	fresh.AnalyzedAt = now

	if err := c.store.Save(ctx, fresh); err != nil {
		c.logger.Warn("profile cache write failed, continuing with in-memory profile", "error", err)
	}
	return fresh, nil
}
