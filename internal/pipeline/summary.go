package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RunDailySummary executes one daily-summary run: the day's relevant
// postings plus a per-source breakdown, in the operator's civil day. The run
// is read-only, so there is no per-item isolation; any failure aborts the
// whole run and reaches the queue once.
func (o *Orchestrator) RunDailySummary(ctx context.Context, progress ProgressFunc) error {
	progress(10, "collecting today's postings")

	now := o.clock().In(o.config.Location)
	dayStart := timeAtMidnight(now)

	postings, err := o.jobs.RelevantSince(ctx, o.config.SummaryRelevance, dayStart)
	if err != nil {
		return fmt.Errorf("fetching daily jobs: %w", err)
	}
	progress(50, "collecting source stats")

	stats, err := o.jobs.SourceStats(ctx, dayStart, now, o.config.SummaryTopSources)
	if err != nil {
		return fmt.Errorf("fetching daily stats: %w", err)
	}
	progress(80, "sending summary")

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Daily summary for %s\n", now.Format("Mon Jan 2"))
	fmt.Fprintf(&b, "%d postings at or above %.0f%% relevance\n", len(postings), o.config.SummaryRelevance*100)

	for i, p := range postings {
		if i >= 10 {
			fmt.Fprintf(&b, "… and %d more\n", len(postings)-i)
			break
		}
		fmt.Fprintf(&b, "• %s — %s (%.0f%%)\n", p.Title, p.Company, p.Relevance*100)
	}

	if len(stats) > 0 {
		b.WriteString("\nBy source:\n")
		for _, st := range stats {
			source := st.Source
			if source == "" {
				source = "unknown"
			}
			fmt.Fprintf(&b, "• %s: %d\n", source, st.Count)
		}
	}

	if err := o.notifier.SendStatus(ctx, b.String()); err != nil {
		o.sink.NotificationSent(false)
		return fmt.Errorf("sending daily summary: %w", err)
	}
	o.sink.NotificationSent(true)

	progress(100, "done")
	o.logger.Info("daily summary complete", "postings", len(postings), "sources", len(stats))
	return nil
}

// timeAtMidnight returns the start of t's civil day in t's location.
func timeAtMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
