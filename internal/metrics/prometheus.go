package metrics

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink on the Prometheus client library.
// All methods are fire-and-forget; registration errors are logged but never
// propagated.
type PrometheusSink struct {
	runsTotal          *prometheus.CounterVec
	runDuration        *prometheus.HistogramVec
	emailsTotal        *prometheus.CounterVec
	postingsExtracted  prometheus.Counter
	postingsRelevant   prometheus.Counter
	notificationsTotal *prometheus.CounterVec
}

// NewPrometheusSink creates and registers the daemon's collectors.
func NewPrometheusSink(reg prometheus.Registerer, logger *slog.Logger) *PrometheusSink {
	s := &PrometheusSink{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobsift_runs_total",
			Help: "Pipeline runs finished, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jobsift_run_duration_seconds",
			Help:    "Pipeline run duration in seconds.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"kind"}),
		emailsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobsift_emails_total",
			Help: "Emails handled by the per-email loop, by outcome.",
		}, []string{"outcome"}),
		postingsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobsift_postings_extracted_total",
			Help: "Job postings extracted from emails.",
		}),
		postingsRelevant: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobsift_postings_relevant_total",
			Help: "Extracted postings that met the relevance threshold.",
		}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobsift_notifications_total",
			Help: "Notification sends, by result.",
		}, []string{"result"}),
	}

	for name, c := range map[string]prometheus.Collector{
		"jobsift_runs_total":               s.runsTotal,
		"jobsift_run_duration_seconds":     s.runDuration,
		"jobsift_emails_total":             s.emailsTotal,
		"jobsift_postings_extracted_total": s.postingsExtracted,
		"jobsift_postings_relevant_total":  s.postingsRelevant,
		"jobsift_notifications_total":      s.notificationsTotal,
	} {
		if err := reg.Register(c); err != nil {
			logger.Warn("metrics registration failed", "collector", name, "error", err)
		}
	}
	return s
}

func (s *PrometheusSink) RunFinished(kind string, outcome string, d time.Duration) {
	s.runsTotal.WithLabelValues(kind, outcome).Inc()
	s.runDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (s *PrometheusSink) EmailProcessed(outcome string) {
	s.emailsTotal.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) PostingsExtracted(n int) {
	s.postingsExtracted.Add(float64(n))
}

func (s *PrometheusSink) PostingsRelevant(n int) {
	s.postingsRelevant.Add(float64(n))
}

func (s *PrometheusSink) NotificationSent(ok bool) {
	s.notificationsTotal.WithLabelValues(strconv.FormatBool(ok)).Inc()
}
