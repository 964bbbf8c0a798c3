package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devconnector_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// StoreOperationLatency records document store latency by backend, operation and collection.
	StoreOperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "devconnector_store_operation_latency_seconds",
		Help:    "Document store operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend", "operation", "collection"})

	// CacheLookups counts cache-aside lookups by key family and result (hit or miss).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devconnector_cache_lookups_total",
		Help: "Total cache lookups by key family and result",
	}, []string{"family", "result"})

	// CacheRefreshes counts cached entries rewritten from the store, by reason.
	CacheRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devconnector_cache_refreshes_total",
		Help: "Total cache entries refreshed from the store by reason",
	}, []string{"reason"})

	// SaveConflicts counts version conflicts seen while saving posts.
	SaveConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devconnector_post_save_conflicts_total",
		Help: "Total optimistic concurrency conflicts by operation",
	}, []string{"operation"})

	// ActiveWebSockets tracks open event stream connections.
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "devconnector_active_websockets",
		Help: "Number of open websocket connections",
	})

	// WebSocketDrops counts messages dropped for slow or closed clients.
	WebSocketDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devconnector_websocket_drops_total",
		Help: "Total websocket messages dropped by reason",
	}, []string{"reason"})

	// PostEvents counts broadcast events published by type.
	PostEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devconnector_post_events_total",
		Help: "Total post events published by type",
	}, []string{"event_type"})
)

// StoreMetrics records latency for one store backend.
type StoreMetrics struct {
	backend string
}

// NewStoreMetrics returns a StoreMetrics for the named backend.
func NewStoreMetrics(backend string) *StoreMetrics {
	return &StoreMetrics{backend: backend}
}

// ObserveOperation records the latency of a store operation.
func (m *StoreMetrics) ObserveOperation(operation, collection string, start time.Time) {
	StoreOperationLatency.WithLabelValues(m.backend, operation, collection).Observe(time.Since(start).Seconds())
}

// TrackOperation returns a function that records latency when called (e.g. defer).
func (m *StoreMetrics) TrackOperation(operation, collection string) func() {
	start := time.Now()
	return func() {
		m.ObserveOperation(operation, collection, start)
	}
}
