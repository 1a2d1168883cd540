package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts HTTP requests handled by the service.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of http requests handled by the service.",
		},
		[]string{"path", "method", "code"},
	)

	// PassesTotal counts dispatch passes by result (ok, fatal, locked).
	PassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_passes_total",
			Help: "Total number of dispatch passes, by result.",
		},
		[]string{"result"},
	)

	// JobDispatchesTotal counts per-job dispatch outcomes within passes.
	JobDispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_dispatches_total",
			Help: "Total number of job dispatch attempts, by engine and outcome.",
		},
		[]string{"engine", "outcome"},
	)

	// InconsistenciesTotal counts the two known partial-update windows: a
	// job accepted by the worker but still marked eligible (job_unmarked),
	// and a job marked in progress whose parts stayed eligible
	// (parts_unmarked). An external repair process watches these.
	InconsistenciesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_inconsistencies_total",
			Help: "Total number of partial status updates left behind by failed dispatches.",
		},
		[]string{"window"},
	)

	// EligibleJobsLastPass records the eligible batch size seen by the
	// most recent pass.
	EligibleJobsLastPass = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eligible_jobs_last_pass",
			Help: "Number of eligible jobs found by the most recent dispatch pass.",
		},
	)
)
