package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// GhbridgeClassificationsTotal tracks intent classifications by outcome
	GhbridgeClassificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghbridge_classifications_total",
			Help: "Total number of descriptions classified",
		},
		[]string{"outcome"},
	)

	// GhbridgeMaterializationsTotal tracks pattern materializations
	GhbridgeMaterializationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghbridge_materializations_total",
			Help: "Total number of pattern materializations",
		},
		[]string{"pattern", "outcome"},
	)

	// GhbridgeMaterializeSeconds tracks materialization latency
	GhbridgeMaterializeSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ghbridge_materialize_seconds",
			Help:    "Duration of pattern materializations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pattern"},
	)

	// GhbridgeCompatDecisionsTotal tracks connection pre-filter decisions
	GhbridgeCompatDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghbridge_compat_decisions_total",
			Help: "Total number of compatibility decisions by rule",
		},
		[]string{"rule", "compatible"},
	)

	// GhbridgeHostCallsTotal tracks requests sent to the canvas host
	GhbridgeHostCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghbridge_host_calls_total",
			Help: "Total number of host calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// GhbridgeKnowledgeReloadsTotal tracks knowledge base reloads
	GhbridgeKnowledgeReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghbridge_knowledge_reloads_total",
			Help: "Total number of knowledge base reloads",
		},
		[]string{"degraded"},
	)
)

func init() {
	// Register metrics with the default registry
	prometheus.MustRegister(GhbridgeClassificationsTotal)
	prometheus.MustRegister(GhbridgeMaterializationsTotal)
	prometheus.MustRegister(GhbridgeMaterializeSeconds)
	prometheus.MustRegister(GhbridgeCompatDecisionsTotal)
	prometheus.MustRegister(GhbridgeHostCallsTotal)
	prometheus.MustRegister(GhbridgeKnowledgeReloadsTotal)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
