// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package metrics holds the cylinderd business and operational metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cylinder_actions_total",
		Help: "Lifecycle actions by outcome",
	}, []string{"action", "result", "code"}) // result=ok|warning|error

	forcedOverridesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cylinder_forced_overrides_total",
		Help: "Blocking results bypassed with force, by code",
	}, []string{"code"})

	lockWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cylinder_write_lock_wait_seconds",
		Help:    "Time spent waiting for the engine write lock",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	})

	lockTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cylinder_write_lock_timeouts_total",
		Help: "Write lock acquisitions abandoned on timeout or cancellation",
	})

	sweepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cylinder_lost_sweeps_total",
		Help: "Lost sweeps by outcome",
	}, []string{"outcome"}) // outcome=success|error

	lostReclassifiedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cylinder_lost_reclassified_total",
		Help: "Cylinders reclassified as LOST by the sweeper",
	})

	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cylinder_lost_sweep_duration_seconds",
		Help:    "Duration of one lost sweep",
		Buckets: prometheus.DefBuckets,
	})

	anomaliesCurrent = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cylinder_anomalies",
		Help: "Anomalies found by type (last detection run)",
	}, []string{"type"})

	importRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cylinder_import_records_total",
		Help: "Legacy records processed by import, by kind and outcome",
	}, []string{"kind", "outcome"}) // kind=cylinder|transaction outcome=stored|rejected|duplicate

	directoryReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cylinder_directory_reloads_total",
		Help: "Customer directory reloads by backend and result",
	}, []string{"backend", "result"})

	directorySize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cylinder_directory_customers",
		Help: "Customers known to the directory (last load)",
	}, []string{"backend"})
)

// IncAction counts one engine decision. code is empty unless result is error.
func IncAction(action, result, code string) {
	actionsTotal.WithLabelValues(action, result, code).Inc()
}

func IncForcedOverride(code string) { forcedOverridesTotal.WithLabelValues(code).Inc() }

// ObserveLockWait records a lock acquisition attempt.
func ObserveLockWait(seconds float64, acquired bool) {
	lockWaitSeconds.Observe(seconds)
	if !acquired {
		lockTimeoutsTotal.Inc()
	}
}

// RecordSweep records one lost sweep.
func RecordSweep(reclassified int, seconds float64, err error) {
	sweepDurationSeconds.Observe(seconds)
	if err != nil {
		sweepsTotal.WithLabelValues("error").Inc()
	} else {
		sweepsTotal.WithLabelValues("success").Inc()
	}
	lostReclassifiedTotal.Add(float64(reclassified))
}

// RecordAnomalies replaces the per-type anomaly gauge. Types missing from
// counts are reset to zero.
func RecordAnomalies(types []string, counts map[string]int) {
	for _, t := range types {
		anomaliesCurrent.WithLabelValues(t).Set(float64(counts[t]))
	}
}

func AddImportRecords(kind, outcome string, n int) {
	importRecordsTotal.WithLabelValues(kind, outcome).Add(float64(n))
}

// RecordDirectoryLoad records a directory (re)load and its size on success.
func RecordDirectoryLoad(backend string, customers int, err error) {
	if err != nil {
		directoryReloadsTotal.WithLabelValues(backend, "error").Inc()
		return
	}
	directoryReloadsTotal.WithLabelValues(backend, "success").Inc()
	directorySize.WithLabelValues(backend).Set(float64(customers))
}
