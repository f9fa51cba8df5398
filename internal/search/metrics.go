package search

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics owned by the search engine.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	// queriesTotal counts searches by base collection and outcome
	// (hits|empty|error).
	queriesTotal *prometheus.CounterVec

	// durationSeconds records end-to-end search latency, embedding included.
	durationSeconds *prometheus.HistogramVec
}

// NewMetrics registers the search metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		queriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hiresync",
			Subsystem: "search",
			Name:      "queries_total",
			Help:      "Total number of hybrid searches, partitioned by collection and outcome.",
		}, []string{"collection", "outcome"}),

		durationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hiresync",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Latency of hybrid searches.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"collection"}),
	}
}

func (m *Metrics) observe(collection, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.queriesTotal.WithLabelValues(collection, outcome).Inc()
	m.durationSeconds.WithLabelValues(collection).Observe(d.Seconds())
}
