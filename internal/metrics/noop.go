package metrics

import "time"

// NoopSink discards all events. Used when metrics are disabled.
type NoopSink struct{}

// NewNoopSink returns a NoopSink.
func NewNoopSink() *NoopSink { return &NoopSink{} }

func (n *NoopSink) RunFinished(kind string, outcome string, d time.Duration) {}
func (n *NoopSink) EmailProcessed(outcome string)                            {}
func (n *NoopSink) PostingsExtracted(count int)                              {}
func (n *NoopSink) PostingsRelevant(count int)                               {}
func (n *NoopSink) NotificationSent(ok bool)                                 {}
