// Package metrics holds the Prometheus collectors of the interpretation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InterpretRequests counts interpretations by how they were answered.
	InterpretRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "racha_interpret_requests_total",
			Help: "Total number of expense interpretations by answer path",
		},
		[]string{"path"},
	)

	InterpretDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "racha_interpret_duration_seconds",
			Help:    "Expense interpretation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"path"},
	)

	// AICalls counts paid model calls by tier and outcome (ok, error, breaker_open).
	AICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "racha_ai_calls_total",
			Help: "Total number of AI tier calls",
		},
		[]string{"tier", "outcome"},
	)

	AISpendBRL = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "racha_ai_spend_brl_total",
			Help: "Total AI spend in BRL",
		},
		[]string{"tier"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "racha_cache_lookups_total",
			Help: "Cache lookups by layer (exact, semantic) and result (hit, miss, error)",
		},
		[]string{"layer", "result"},
	)

	BudgetRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "racha_budget_rejections_total",
			Help: "Paid calls refused because the daily budget would be exceeded",
		},
	)
)
