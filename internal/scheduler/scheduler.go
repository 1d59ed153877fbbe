// Package scheduler converts the cron policy into queue enqueues.
//
// All schedules are expressed in one IANA timezone (the operator's civil
// time) and evaluated there by robfig/cron; the queue itself stores UTC.
// Scheduling is pure policy: the scheduler never runs a pipeline, it only
// enqueues, and a rejected enqueue (already in flight) is desired
// backpressure.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/amishk599/jobsift/internal/model"
	"github.com/amishk599/jobsift/internal/queue"
)

// Enqueuer is the queue surface the scheduler needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind model.RunKind, payload string, trigger model.TriggerSource, priority int) (string, error)
}

// Housekeeper runs the low-frequency retention pruning trigger.
type Housekeeper func(ctx context.Context) error

// Window is a recurring local-time interval of whole hours, inclusive on
// both ends.
type Window struct {
	StartHour int
	EndHour   int
}

// Contains reports whether t's civil hour falls inside the window.
func (w Window) Contains(t time.Time) bool {
	h := t.Hour()
	return h >= w.StartHour && h <= w.EndHour
}

// Config drives the three cron triggers.
type Config struct {
	Timezone      string
	ScanWindow    Window
	SummaryHour   int
	SummaryMinute int
}

// Scheduler enqueues alert-scan, daily-summary, and housekeeping runs.
type Scheduler struct {
	config    Config
	enqueuer  Enqueuer
	housekeep Housekeeper
	logger    *slog.Logger
	loc       *time.Location
}

// New creates a scheduler. The timezone must be a valid IANA name.
func New(config Config, enqueuer Enqueuer, housekeep Housekeeper, logger *slog.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", config.Timezone, err)
	}
	return &Scheduler{
		config:    config,
		enqueuer:  enqueuer,
		housekeep: housekeep,
		logger:    logger,
		loc:       loc,
	}, nil
}

// Run installs the cron entries and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(cron.WithLocation(s.loc))

	scanSpec := fmt.Sprintf("0 %d-%d * * *", s.config.ScanWindow.StartHour, s.config.ScanWindow.EndHour)
	if _, err := c.AddFunc(scanSpec, func() {
		s.enqueue(ctx, model.RunKindAlertScan, model.PriorityNormal)
	}); err != nil {
		return fmt.Errorf("add scan schedule %q: %w", scanSpec, err)
	}

	summarySpec := fmt.Sprintf("%d %d * * *", s.config.SummaryMinute, s.config.SummaryHour)
	if _, err := c.AddFunc(summarySpec, func() {
		s.enqueue(ctx, model.RunKindDailySummary, model.PriorityLow)
	}); err != nil {
		return fmt.Errorf("add summary schedule %q: %w", summarySpec, err)
	}

	// Retention pruning, nightly at 03:30 local. Timing is uncritical.
	if _, err := c.AddFunc("30 3 * * *", func() {
		if err := s.housekeep(ctx); err != nil {
			s.logger.Error("housekeeping failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("add housekeeping schedule: %w", err)
	}

	s.logger.Info("scheduler started",
		"timezone", s.config.Timezone,
		"scan", scanSpec,
		"summary", summarySpec,
	)

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// enqueue pushes one run, swallowing the single-flight rejection.
func (s *Scheduler) enqueue(ctx context.Context, kind model.RunKind, priority int) {
	runID, err := s.enqueuer.Enqueue(ctx, kind, "", model.TriggerCron, priority)
	if errors.Is(err, queue.ErrAlreadyInFlight) {
		// A previous run is still going; skipping this tick is the point.
		s.logger.Debug("tick skipped, run in flight", "kind", kind, "run_id", runID)
		return
	}
	if err != nil {
		s.logger.Error("cron enqueue failed", "kind", kind, "error", err)
		return
	}
	s.logger.Info("cron enqueued run", "kind", kind, "run_id", runID)
}

// NextScanTime returns the next top-of-hour scan instant at or after now,
// respecting the business-hours window in loc. Pure function; also feeds the
// "next run" hint in completion messages.
func NextScanTime(now time.Time, w Window, loc *time.Location) time.Time {
	local := now.In(loc)

	next := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, loc).Add(time.Hour)
	if next.Hour() >= w.StartHour && next.Hour() <= w.EndHour {
		return next
	}

	day := next
	if next.Hour() > w.EndHour {
		day = day.AddDate(0, 0, 1)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), w.StartHour, 0, 0, 0, loc)
}
