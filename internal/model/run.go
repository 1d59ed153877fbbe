package model

import "time"

// RunKind identifies which pipeline a queued run executes.
type RunKind string

const (
	RunKindAlertScan    RunKind = "alert-scan"
	RunKindDailySummary RunKind = "daily-summary"
)

// RunStatus is the lifecycle state of a queued pipeline run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusActive    RunStatus = "active"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// TriggerSource records what enqueued a run.
type TriggerSource string

const (
	TriggerCron   TriggerSource = "cron"
	TriggerManual TriggerSource = "manual"
	TriggerRetry  TriggerSource = "retry"
)

// Run priorities. Higher dequeues first.
const (
	PriorityLow    = 0
	PriorityNormal = 5
	PriorityHigh   = 10
)

// PipelineRun is one queued execution of a pipeline kind.
// Lifecycle: queued -> active -> completed|failed. The queue guarantees at
// most one queued-or-active run per kind.
type PipelineRun struct {
	ID       string
	Kind     RunKind
	Trigger  TriggerSource
	Priority int
	Payload  string // kind-specific parameters, JSON

	Status   RunStatus
	Progress int    // percent, 0-100
	Step     string // short human-readable status
	Attempts int
	LastErr  string

	CreatedAt   time.Time
	StartedAt   *time.Time
	LeasedAt    *time.Time // refreshed by progress while active
	CompletedAt *time.Time
}

// BackoffKind selects how retry delays grow between attempts.
type BackoffKind string

const (
	BackoffFixed       BackoffKind = "fixed"
	BackoffExponential BackoffKind = "exponential"
)

// RetryPolicy is attached to each enqueued run rather than hard-coded in the
// worker, so different kinds can carry different ceilings.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     BackoffKind
	BaseDelay   time.Duration
}

// Delay returns how long to wait before the given attempt (1-based counts the
// attempt that just failed).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if p.Backoff != BackoffExponential || attempt <= 1 {
		return p.BaseDelay
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

// QueueStats is the operator-facing snapshot of the run queue.
type QueueStats struct {
	Queued    int
	Active    int
	Completed int
	Failed    int
}
