package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragchat_turns_total",
			Help: "Conversation turns handled, by transport.",
		},
		[]string{"transport"},
	)

	TurnDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ragchat_turn_duration_seconds",
			Help:    "Time spent handling one conversation turn.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	RetrievalFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragchat_retrieval_failures_total",
			Help: "Retrieval calls that degraded, by reason.",
		},
		[]string{"reason"},
	)

	CompletionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragchat_completion_failures_total",
			Help: "Completion calls answered with a placeholder, by reason.",
		},
		[]string{"reason"},
	)

	EmbeddingCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragchat_embedding_cache_requests_total",
			Help: "Embedding cache lookups, by result.",
		},
		[]string{"result"},
	)

	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ragchat_ws_connections",
			Help: "Open websocket chat connections.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		TurnsTotal,
		TurnDuration,
		RetrievalFailures,
		CompletionFailures,
		EmbeddingCacheHits,
		WSConnections,
	)
}

// Handler expone el registry por defecto en formato Prometheus.
func Handler() http.Handler {
	return promhttp.Handler()
}
