package metrics

import "github.com/prometheus/client_golang/prometheus"

// PresenceMetrics holds Prometheus metrics for room member resolution.
type PresenceMetrics struct {
	Lookups       *prometheus.CounterVec
	CacheErrors   *prometheus.CounterVec
	SharedLookups prometheus.Counter
	Broadcasts    prometheus.Counter
}

// NewPresenceMetrics creates and registers presence metrics on the given registry.
func NewPresenceMetrics(reg prometheus.Registerer) *PresenceMetrics {
	m := &PresenceMetrics{
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "presence",
			Name:      "lookups_total",
			Help:      "Total number of room member resolutions, by the layer that answered.",
		}, []string{"source"}),
		CacheErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "presence",
			Name:      "cache_errors_total",
			Help:      "Total number of failed presence cache operations, by operation.",
		}, []string{"operation"}),
		SharedLookups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "presence",
			Name:      "shared_store_lookups_total",
			Help:      "Total number of store fallbacks answered by a concurrent in-flight lookup.",
		}),
		Broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "presence",
			Name:      "users_updates_total",
			Help:      "Total number of presence updates broadcast to rooms.",
		}),
	}

	reg.MustRegister(m.Lookups, m.CacheErrors, m.SharedLookups, m.Broadcasts)
	return m
}
