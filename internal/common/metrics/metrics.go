// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AdminRequestsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_requests_completed_total",
			Help: "Total number of admin API requests completed",
		},
		[]string{"operation"},
	)

	AdminRequestsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_requests_failed_total",
			Help: "Total number of admin API requests failed",
		},
		[]string{"operation", "error_code"},
	)

	AdminRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "admin_request_duration_seconds",
			Help: "Duration of admin API request processing in seconds",
		},
		[]string{"operation"},
	)

	ApplicationsReviewed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expert_applications_reviewed_total",
			Help: "Total number of expert applications reviewed",
		},
		[]string{"decision"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of notifications attempted by channel and outcome",
		},
		[]string{"channel", "status"},
	)
)
