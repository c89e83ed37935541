package metrics

import "github.com/prometheus/client_golang/prometheus"

// WordMetrics holds Prometheus metrics for the shared word list.
type WordMetrics struct {
	WordsAdded *prometheus.CounterVec
}

// NewWordMetrics creates and registers word metrics on the given registry.
func NewWordMetrics(reg prometheus.Registerer) *WordMetrics {
	m := &WordMetrics{
		WordsAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "words_added_total",
			Help:      "Total number of add-word requests, by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(m.WordsAdded)
	return m
}
