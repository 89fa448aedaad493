// Package metrics expone los contadores Prometheus del servicio.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExtractionsTotal cuenta extracciones por resultado (success o el kind del error)
	ExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smart_extract",
			Name:      "extractions_total",
			Help:      "Extraction requests by outcome.",
		},
		[]string{"outcome"},
	)

	// HealthTransitionsTotal cuenta transiciones de salud emitidas
	HealthTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smart_extract",
			Name:      "health_transitions_total",
			Help:      "Account health transitions reported to the registry.",
		},
		[]string{"status"},
	)

	// BestEffortFailuresTotal cuenta escrituras al registro que fallaron y se descartaron
	BestEffortFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smart_extract",
			Name:      "best_effort_failures_total",
			Help:      "Registry writes that failed and were swallowed.",
		},
		[]string{"op"},
	)

	// CommentFetchFailuresTotal cuenta fallos no fatales al pedir comentarios
	CommentFetchFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "smart_extract",
			Name:      "comment_fetch_failures_total",
			Help:      "Comment fetches that failed and were replaced by an empty list.",
		},
	)

	// RevivedAccountsTotal cuenta cuentas reactivadas por el reviver
	RevivedAccountsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "smart_extract",
			Name:      "revived_accounts_total",
			Help:      "Rate limited accounts returned to rotation after cooldown.",
		},
	)
)
