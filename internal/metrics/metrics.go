// Package metrics exposes the service's Prometheus collectors. Counters are
// registered on the default registry via promauto and served by promhttp on
// /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BookingsCreated counts successful bookings by their initial status.
	BookingsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "booking_service",
		Name:      "bookings_created_total",
		Help:      "Number of inspections booked, by initial status.",
	}, []string{"status"})

	// SettlementEvents counts webhook settlement outcomes.
	// result is one of: applied, replay, duplicate, orphan.
	SettlementEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "booking_service",
		Name:      "settlement_events_total",
		Help:      "Number of gateway settlement events processed, by type and result.",
	}, []string{"type", "result"})

	// ReaperOutcomes counts stale-payment sweep resolutions.
	// outcome is one of: reaped, settled_success, error.
	ReaperOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "booking_service",
		Name:      "reaper_outcomes_total",
		Help:      "Number of stale payments resolved by the reaper, by outcome.",
	}, []string{"outcome"})
)
