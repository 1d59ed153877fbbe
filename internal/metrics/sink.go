// Package metrics abstracts the daemon's counters behind a sink so the
// pipeline never depends on a metrics backend directly.
package metrics

import "time"

// Run outcomes reported to RunFinished.
const (
	OutcomeCompleted = "completed"
	OutcomeRetried   = "retried"
	OutcomeFailed    = "failed"
)

// Sink receives pipeline events. Implementations must be safe for
// concurrent use.
type Sink interface {
	RunFinished(kind string, outcome string, duration time.Duration)
	EmailProcessed(outcome string) // processed | skipped | failed
	PostingsExtracted(n int)
	PostingsRelevant(n int)
	NotificationSent(ok bool)
}
