// Package metrics registers the Prometheus collectors updated by the traversal
// engine and served by the control API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "listing_scout"

var (
	CompaniesVisited = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "companies_visited_total",
		Help:      "Companies marked visited and opened.",
	})

	JobEvaluations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_evaluations_total",
		Help:      "Relevance verdicts by stage.",
	}, []string{"stage", "verdict"})

	Applications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "applications_recorded_total",
		Help:      "Application records written by status.",
	}, []string{"status"})

	EmbeddingCache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "embedding_cache_total",
		Help:      "Embedding cache lookups by result.",
	}, []string{"result"})

	NavigationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "navigation_failures_total",
		Help:      "Navigation steps that timed out or failed.",
	}, []string{"step"})

	RunState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "run_state",
		Help:      "1 for the current traversal state, 0 otherwise.",
	}, []string{"state"})
)

func init() {
	prometheus.MustRegister(
		CompaniesVisited,
		JobEvaluations,
		Applications,
		EmbeddingCache,
		NavigationFailures,
		RunState,
	)
}

// SetState marks current as the only active state.
func SetState(current string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		RunState.WithLabelValues(s).Set(v)
	}
}
