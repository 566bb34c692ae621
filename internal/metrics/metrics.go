// Package metrics provides Prometheus metrics for the steamvault core.
// Labels are low-cardinality by construction: modes, tiers and reasons are
// closed enums; identities never appear in labels.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttemptsTotal counts terminal login outcomes by mode and result.
	LoginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "steamvault_login_attempts_total",
		Help: "Total number of terminal login outcomes, by mode and result.",
	}, []string{"mode", "result"})

	// LoginFailuresTotal counts login failures by mode and reason.
	LoginFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "steamvault_login_failures_total",
		Help: "Total number of failed login attempts, by mode and failure reason.",
	}, []string{"mode", "reason"})

	// PersonaLookupsTotal counts persona resolutions by result.
	PersonaLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "steamvault_persona_lookups_total",
		Help: "Total number of persona lookups, by result (resolved/timeout/canceled).",
	}, []string{"result"})

	// InventoryFetchesTotal counts per-tier inventory fetches by outcome.
	InventoryFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "steamvault_inventory_fetches_total",
		Help: "Total number of inventory tier executions, by tier and result.",
	}, []string{"tier", "result"})

	// InventoryItemsReturned observes the item count of successful fetches.
	InventoryItemsReturned = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "steamvault_inventory_items_returned",
		Help:    "Number of items returned by successful inventory retrievals.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})

	// CircuitBreakerState reports breaker state per component (0 closed,
	// 1 half-open, 2 open).
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "steamvault_circuit_breaker_state",
		Help: "Circuit breaker state per component: 0=closed, 1=half-open, 2=open.",
	}, []string{"component"})

	// HTTPRequestsTotal counts API requests by route and status class.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "steamvault_http_requests_total",
		Help: "Total number of API requests, by route and status class.",
	}, []string{"route", "status"})
)

// RecordLoginAttempt records one terminal login outcome.
func RecordLoginAttempt(mode string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	LoginAttemptsTotal.WithLabelValues(mode, result).Inc()
}

// RecordLoginFailure records one failed login with its reason.
func RecordLoginFailure(mode, reason string) {
	LoginFailuresTotal.WithLabelValues(mode, reason).Inc()
}

// RecordPersonaLookup records one persona resolution result.
func RecordPersonaLookup(result string) {
	PersonaLookupsTotal.WithLabelValues(result).Inc()
}

// RecordInventoryFetch records one tier execution.
func RecordInventoryFetch(tier, result string) {
	InventoryFetchesTotal.WithLabelValues(tier, result).Inc()
}

// RecordInventoryItems observes the size of a successful retrieval.
func RecordInventoryItems(count int) {
	InventoryItemsReturned.Observe(float64(count))
}

// SetCircuitBreakerState reports the current breaker state for a component.
func SetCircuitBreakerState(component, state string) {
	var v float64
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	CircuitBreakerState.WithLabelValues(component).Set(v)
}
