package cleaning

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for cleaning.
type Metrics struct {
	RequestsTotal     *prometheus.CounterVec
	PassesTotal       *prometheus.CounterVec
	PassDuration      *prometheus.HistogramVec
	DeletionsTotal    *prometheus.CounterVec
	DeleteErrorsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers Prometheus metrics for cleaning.
//
// This function uses sync.Once to ensure metrics are only registered once
// globally, preventing "duplicate metrics collector registration" panics.
//
// Metrics:
//   - bookmarkd_cleaning_requests_total{category,status} - clean requests by outcome
//   - bookmarkd_cleaning_passes_total{category,result} - finished passes
//   - bookmarkd_cleaning_pass_duration_seconds{category} - pass duration
//   - bookmarkd_cleaning_deletions_total{category,source} - entries deleted
//   - bookmarkd_cleaning_delete_errors_total{category} - failed deletions
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "bookmarkd_cleaning_requests_total",
					Help: "Total number of cleaning requests",
				},
				[]string{"category", "status"}, // "started" or "running"
			),

			PassesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "bookmarkd_cleaning_passes_total",
					Help: "Total number of finished cleaning passes",
				},
				[]string{"category", "result"}, // "success" or "error"
			),

			PassDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "bookmarkd_cleaning_pass_duration_seconds",
					Help:    "Duration of cleaning passes in seconds",
					Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
				},
				[]string{"category"},
			),

			DeletionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "bookmarkd_cleaning_deletions_total",
					Help: "Total number of bookmarks and history entries deleted",
				},
				[]string{"category", "source"}, // "pass" or "visit"
			),

			DeleteErrorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "bookmarkd_cleaning_delete_errors_total",
					Help: "Total number of failed deletions",
				},
				[]string{"category"},
			),
		}
	})

	return globalMetrics
}

// RecordRequest records a clean request and its status.
func (m *Metrics) RecordRequest(category string, status Status) {
	m.RequestsTotal.WithLabelValues(category, string(status)).Inc()
}

// RecordPass records a finished pass.
func (m *Metrics) RecordPass(category string, failed bool, durationSeconds float64) {
	result := "success"
	if failed {
		result = "error"
	}
	m.PassesTotal.WithLabelValues(category, result).Inc()
	m.PassDuration.WithLabelValues(category).Observe(durationSeconds)
}

// RecordDeletion records a successful deletion.
func (m *Metrics) RecordDeletion(category, source string) {
	m.DeletionsTotal.WithLabelValues(category, source).Inc()
}

// RecordDeleteError records a failed deletion.
func (m *Metrics) RecordDeleteError(category string) {
	m.DeleteErrorsTotal.WithLabelValues(category).Inc()
}
