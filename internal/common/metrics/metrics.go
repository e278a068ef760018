// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DraftsSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_drafts_saved_total",
			Help: "Total number of draft saves by loan type",
		},
		[]string{"loan_type"},
	)

	ApplicationsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_applications_submitted_total",
			Help: "Total number of successful submissions by loan type",
		},
		[]string{"loan_type"},
	)

	ValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_validation_failures_total",
			Help: "Total number of submit rejections by loan type and field",
		},
		[]string{"loan_type", "field"},
	)

	FieldUpdatesApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_field_updates_applied_total",
			Help: "Total number of reconciled field updates by source",
		},
		[]string{"source"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of HTTP request handling in seconds",
		},
		[]string{"route"},
	)
)
