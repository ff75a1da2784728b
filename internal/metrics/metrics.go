package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the import metrics. A nil *Registry records nothing.
type Registry struct {
	reg             *prometheus.Registry
	Runs            *prometheus.CounterVec
	EntitiesCreated *prometheus.CounterVec
	RowWarnings     prometheus.Counter
	BatchFailures   *prometheus.CounterVec
	Repairs         *prometheus.CounterVec
	RunDurationSec  prometheus.Histogram
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_import_runs_total",
		Help: "Import runs by outcome.",
	}, []string{"outcome"})
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_import_entities_created_total",
		Help: "Records created by import runs, by kind.",
	}, []string{"kind"})
	warnings := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "order_import_row_warnings_total",
		Help: "Row-level warnings logged by import runs.",
	})
	batchFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_import_batch_failures_total",
		Help: "Bulk store calls that failed, by stage.",
	}, []string{"stage"})
	repairs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_import_repairs_total",
		Help: "Single-row fallback creates performed while preparing orders.",
	}, []string{"kind"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_import_run_duration_seconds",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	})

	r.MustRegister(runs, created, warnings, batchFailures, repairs, duration)
	return &Registry{
		reg:             r,
		Runs:            runs,
		EntitiesCreated: created,
		RowWarnings:     warnings,
		BatchFailures:   batchFailures,
		Repairs:         repairs,
		RunDurationSec:  duration,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

func (r *Registry) RunFinished(outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.Runs.WithLabelValues(outcome).Inc()
	r.RunDurationSec.Observe(elapsed.Seconds())
}

func (r *Registry) Created(kind string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.EntitiesCreated.WithLabelValues(kind).Add(float64(n))
}

func (r *Registry) RowWarning() {
	if r == nil {
		return
	}
	r.RowWarnings.Inc()
}

func (r *Registry) BatchFailed(stage string) {
	if r == nil {
		return
	}
	r.BatchFailures.WithLabelValues(stage).Inc()
}

func (r *Registry) Repaired(kind string) {
	if r == nil {
		return
	}
	r.Repairs.WithLabelValues(kind).Inc()
}
