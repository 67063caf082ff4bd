// Package metrics wires Prometheus instrumentation into the worker server
// and dispatcher. Unlike the teacher's package-level promauto vars, these
// are instance-scoped: a single process in this module can run both a
// worker server and a dispatcher in the same test binary, and duplicate
// registration on the default registry would panic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles the gauges/counters/histograms both the worker server
// and the dispatcher report against.
type Registry struct {
	reg *prometheus.Registry

	ActiveWorkers     prometheus.Gauge
	JobsDispatched    prometheus.Counter
	JobsFailed        prometheus.Counter
	JobsTimedOut      prometheus.Counter
	TrainDuration     prometheus.Histogram
	ScoreGateDiscards prometheus.Counter
	DatasetBytesSent  prometheus.Counter
}

// New builds a fresh registry. Callers that want process-default /metrics
// exposition can additionally register reg.Gatherer() with an HTTP
// handler; this module doesn't assume one exists (no HTTP server is in
// scope for the core).
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "traincoord_active_workers",
			Help: "Number of live worker child processes.",
		}),
		JobsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "traincoord_jobs_dispatched_total",
			Help: "Total number of TRAIN_MODEL requests sent.",
		}),
		JobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "traincoord_jobs_failed_total",
			Help: "Total number of jobs that failed (semantic or transient).",
		}),
		JobsTimedOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "traincoord_jobs_timed_out_total",
			Help: "Total number of jobs cancelled for exceeding the age timeout.",
		}),
		TrainDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "traincoord_train_duration_seconds",
			Help:    "Wall-clock duration of the worker's isolated training call for TRAIN_MODEL.",
			Buckets: prometheus.DefBuckets,
		}),
		ScoreGateDiscards: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "traincoord_score_gate_discards_total",
			Help: "Number of TRAIN_MODEL responses whose code was discarded by the score gate instead of fetched.",
		}),
		DatasetBytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "traincoord_dataset_bytes_sent_total",
			Help: "Total bytes sent serving REQUEST_SEND_DATASET.",
		}),
	}
	reg.MustRegister(r.ActiveWorkers, r.JobsDispatched, r.JobsFailed, r.JobsTimedOut,
		r.TrainDuration, r.ScoreGateDiscards, r.DatasetBytesSent)
	return r
}

// Gatherer exposes the underlying registry for an HTTP /metrics handler.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
