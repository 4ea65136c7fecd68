// Package metrics exposes Prometheus counters for validation runs.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"customer-statement-validator/internal/models"
	"customer-statement-validator/internal/reconciler"
	"customer-statement-validator/pkg/errors"
)

const namespace = "statement_validator"

// Outcome label values for runs
const (
	OutcomeClean    = "clean"
	OutcomeFindings = "findings"
	OutcomeFailed   = "failed"
)

// Collector records validation runs. It implements reconciler.Recorder.
type Collector struct {
	registry *prometheus.Registry
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	records  *prometheus.CounterVec
	findings *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var _ reconciler.Recorder = (*Collector)(nil)

// NewCollector creates a collector with its own registry
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Validation runs by input format and outcome.",
		}, []string{"format", "outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_errors_total",
			Help:      "Validation runs aborted by an error, by input format and error code.",
		}, []string{"format", "code"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records seen by the validation engine, by eligibility.",
		}, []string{"eligible"}),
		findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "findings_total",
			Help:      "Validation findings by kind.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "validation_duration_seconds",
			Help:      "Time spent in the validation engine.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"format"}),
	}

	c.registry.MustRegister(c.runs, c.failures, c.records, c.findings, c.duration)
	return c
}

// ObserveRun records a completed run
func (c *Collector) ObserveRun(format string, summary *reconciler.Summary) {
	if summary == nil {
		return
	}

	outcome := OutcomeClean
	if summary.FailedRecords > 0 {
		outcome = OutcomeFindings
	}

	c.runs.WithLabelValues(format, outcome).Inc()
	c.records.WithLabelValues(strconv.FormatBool(true)).Add(float64(summary.EligibleRecords))
	c.records.WithLabelValues(strconv.FormatBool(false)).Add(float64(summary.SkippedRecords))
	c.findings.WithLabelValues(models.DuplicateReference.Code()).Add(float64(summary.DuplicateRecords))
	c.findings.WithLabelValues(models.BalanceMismatch.Code()).Add(float64(summary.MismatchRecords))
	c.duration.WithLabelValues(format).Observe(summary.ProcessingDuration.Seconds())
}

// ObserveFailure records a run that ended in an error
func (c *Collector) ObserveFailure(format string, code errors.ErrorCode) {
	c.runs.WithLabelValues(format, OutcomeFailed).Inc()
	c.failures.WithLabelValues(format, string(code)).Inc()
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler serving the collector's metrics
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
