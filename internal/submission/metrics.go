package submission

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formhive_submissions_total",
			Help: "Total number of processed submissions",
		},
		[]string{"outcome"},
	)

	spamBlocked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formhive_spam_blocked_total",
			Help: "Submissions blocked by anti-abuse gates",
		},
		[]string{"gate"},
	)

	dispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "formhive_dispatch_duration_seconds",
			Help: "Duration of integration dispatch calls",
		},
		[]string{"integration"},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "formhive_integration_queue_depth",
			Help: "Pending jobs in the integration queue",
		},
	)
)

func recordSubmission(outcome string) {
	submissionsTotal.WithLabelValues(outcome).Inc()
}

func recordSpamBlocked(gate string) {
	spamBlocked.WithLabelValues(gate).Inc()
}

func recordDispatchDuration(integration string, duration time.Duration) {
	dispatchDuration.WithLabelValues(integration).Observe(duration.Seconds())
}

func setQueueDepth(depth int64) {
	queueDepth.Set(float64(depth))
}
