package metrics

import "github.com/prometheus/client_golang/prometheus"

// Namespace prefixes every metric exported by the service.
const Namespace = "nearby"

// Sync outcomes used as the outcome label of SyncEventsTotal.
const (
	OutcomeApplied    = "applied"
	OutcomeStale      = "stale"
	OutcomeConflict   = "conflict"
	OutcomeNotIndexed = "not_indexed"
	OutcomeError      = "error"
)

// Projection synchronizer metrics.
var (
	SyncEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sync_events_total",
			Help:      "Provider events processed by the projection, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	SyncLagSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "sync_lag_seconds",
			Help:      "Delay between an event occurring and its projection being committed",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		},
	)

	SyncQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "sync_queue_depth",
			Help:      "Events waiting in each dispatcher partition",
		},
		[]string{"partition"},
	)

	SyncRedeliveriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sync_redeliveries_total",
			Help:      "Retryable event failures scheduled for redelivery",
		},
	)
)

// Search metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "search_requests_total",
			Help:      "Provider searches by result status",
		},
		[]string{"status"}, // "ok" / "invalid" / "error"
	)

	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "search_duration_seconds",
			Help:      "Provider search duration in seconds, data and count included",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	SearchRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "search_retries_total",
			Help:      "Searches retried after an index store failure",
		},
	)

	SearchCountOmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "search_count_omitted_total",
			Help:      "Searches answered without a total count under the best_effort policy",
		},
	)
)

var discoveryMetricsRegistered bool

// RegisterDiscoveryMetrics registers sync and search metrics. Must be called once from main.
func RegisterDiscoveryMetrics() {
	if discoveryMetricsRegistered {
		return
	}
	prometheus.MustRegister(SyncEventsTotal)
	prometheus.MustRegister(SyncLagSeconds)
	prometheus.MustRegister(SyncQueueDepth)
	prometheus.MustRegister(SyncRedeliveriesTotal)
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchRetriesTotal)
	prometheus.MustRegister(SearchCountOmittedTotal)
	discoveryMetricsRegistered = true
}
