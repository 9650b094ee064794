// internal/common/metrics/metrics.go
package metrics

import (
	stderrors "errors"

	apperrors "appcc-workers/internal/common/errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	FormValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appcc_form_validations_total",
			Help: "Control form validation passes by result",
		},
		[]string{"result"},
	)

	FormFieldErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appcc_form_field_errors_total",
			Help: "Field validation errors by field type",
		},
		[]string{"field_type"},
	)

	FormSubmissions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "appcc_form_submissions_total",
			Help: "Control forms submitted successfully",
		},
	)
)

// RecordValidation counts one validation pass. fieldTypes lists the type of
// every field that failed; the signature gate is reported as "signature".
func RecordValidation(valid bool, fieldTypes []string) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	FormValidations.WithLabelValues(result).Inc()
	for _, ft := range fieldTypes {
		FormFieldErrors.WithLabelValues(ft).Inc()
	}
}

// ErrorCode extracts a bounded label value from err.
func ErrorCode(err error) string {
	var stdErr *apperrors.StandardError
	if stderrors.As(err, &stdErr) {
		return string(stdErr.Code)
	}
	return string(apperrors.ErrCodeInternalError)
}
