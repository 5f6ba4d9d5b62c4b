// Package metrics exposes Prometheus metrics for calculation runs.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/warp/tax-engine/generic"
)

// ─── Calculation Metrics ────────────────────────────────────────────────────

// CalculationsTotal counts runs by tax year and outcome.
var CalculationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "taxengine",
	Subsystem: "calculation",
	Name:      "runs_total",
	Help:      "Total calculation runs by tax year and outcome.",
}, []string{"tax_year", "outcome"})

// CalculationDuration tracks end-to-end run latency.
var CalculationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "taxengine",
	Subsystem: "calculation",
	Name:      "duration_seconds",
	Help:      "Calculation run duration in seconds.",
	Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
}, []string{"tax_year"})

// NoticesTotal counts policy notices attached to summaries.
var NoticesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "taxengine",
	Subsystem: "calculation",
	Name:      "notices_total",
	Help:      "Total policy notices raised, by code.",
}, []string{"code"})

// ArchiveErrors counts failures to archive a run.
var ArchiveErrors = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "taxengine",
	Subsystem: "store",
	Name:      "archive_errors_total",
	Help:      "Total runs that could not be archived.",
})

// Outcome labels.
const (
	OutcomeOK          = "ok"
	OutcomeInput       = "input_error"
	OutcomeRule        = "rule_error"
	OutcomeConsistency = "consistency_error"
	OutcomeValidation  = "validation_error"
	OutcomeOther       = "error"
)

// Outcome classifies a run error into a metric label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case generic.IsInputError(err):
		return OutcomeInput
	case generic.IsRuleError(err):
		return OutcomeRule
	case generic.IsConsistencyError(err):
		return OutcomeConsistency
	case errors.Is(err, generic.ErrValidationFailed):
		return OutcomeValidation
	default:
		return OutcomeOther
	}
}

// ObserveRun records one finished run and its latency.
func ObserveRun(taxYear string, elapsed time.Duration, notices []generic.Notice, err error) {
	CountRun(taxYear, notices, err)
	CalculationDuration.WithLabelValues(taxYear).Observe(elapsed.Seconds())
}

// CountRun records a run whose individual latency is unknown (batch members).
func CountRun(taxYear string, notices []generic.Notice, err error) {
	CalculationsTotal.WithLabelValues(taxYear, Outcome(err)).Inc()
	for _, n := range notices {
		NoticesTotal.WithLabelValues(n.Code).Inc()
	}
}
