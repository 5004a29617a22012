// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proctor_http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "code"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "proctor_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	DowngradesSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proctor_status_downgrades_suppressed_total",
		Help: "Requests for active status ignored because the student was flagged or high-risk.",
	})

	Escalations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proctor_status_escalations_total",
		Help: "Status changes caused by a risk score update, by resulting status.",
	}, []string{"status"})

	ActivityEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proctor_activity_events_total",
		Help: "Activity events recorded, by event type.",
	}, []string{"type"})

	PollSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proctor_poll_skipped_total",
		Help: "Poll ticks dropped because the previous run was still in flight.",
	})
)
