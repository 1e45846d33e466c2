// Package metrics holds the dashboard's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReconcilePasses counts full schedule reconciliation passes.
	ReconcilePasses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classboard_reconcile_passes_total",
		Help: "Schedule reconciliation passes served.",
	})

	// MarkOutcomes counts finished marking attempts by outcome.
	MarkOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classboard_mark_outcomes_total",
		Help: "Marking transaction outcomes.",
	}, []string{"outcome"})

	// CacheInvalidations counts attendance snapshot invalidations after
	// successful marks.
	CacheInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classboard_attendance_cache_invalidations_total",
		Help: "Attendance cache invalidations after successful marks.",
	})

	// WindowOpen reports whether the verification gate currently allows
	// marking.
	WindowOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "classboard_verification_window_open",
		Help: "1 when the current time falls inside a configured class period.",
	})
)
