// Package metrics provides Prometheus metrics for the estimation pipeline
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Estimate outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeInvalid     = "invalid"
	OutcomeParseFailed = "parse_failed"
	OutcomeLookupMiss  = "lookup_miss"
	OutcomeDataset     = "dataset_unavailable"
	OutcomeError       = "error"
)

var (
	EstimatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "costcalc_estimates_total",
			Help: "Total number of estimate requests by outcome",
		},
		[]string{"outcome"},
	)

	GeometryParseDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "costcalc_geometry_parse_seconds",
			Help:    "Time taken to parse an uploaded model and compute its volume",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)

	LookupMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "costcalc_lookup_misses_total",
			Help: "Total number of reference dataset lookups without a matching row",
		},
		[]string{"table"},
	)
)

// RecordEstimate counts one finished estimate.
func RecordEstimate(outcome string) {
	EstimatesTotal.WithLabelValues(outcome).Inc()
}

// RecordParse observes the duration of one geometry parse.
func RecordParse(d time.Duration) {
	GeometryParseDuration.Observe(d.Seconds())
}

// RecordLookupMiss counts a miss in the "material" or "moq" table.
func RecordLookupMiss(table string) {
	LookupMissesTotal.WithLabelValues(table).Inc()
}

// Timer is a helper for measuring duration
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
