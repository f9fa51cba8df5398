package embedder

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics owned by the embedding layer.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	// requestsTotal counts embedding calls by backend, kind (dense|sparse)
	// and outcome (ok|error).
	requestsTotal *prometheus.CounterVec

	// durationSeconds records embedding latency by backend and kind.
	durationSeconds *prometheus.HistogramVec

	// cacheTotal counts dense cache lookups by result (hit|miss).
	cacheTotal *prometheus.CounterVec
}

// NewMetrics registers the embedding metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hiresync",
			Subsystem: "embedding",
			Name:      "requests_total",
			Help:      "Total number of embedding calls, partitioned by backend, kind, and outcome.",
		}, []string{"backend", "kind", "outcome"}),

		durationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hiresync",
			Subsystem: "embedding",
			Name:      "duration_seconds",
			Help:      "Latency of embedding calls.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"backend", "kind"}),

		cacheTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hiresync",
			Subsystem: "embedding",
			Name:      "cache_total",
			Help:      "Dense embedding cache lookups, partitioned by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) observe(backend, kind string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.requestsTotal.WithLabelValues(backend, kind, outcome).Inc()
	m.durationSeconds.WithLabelValues(backend, kind).Observe(d.Seconds())
}

func (m *Metrics) cache(result string) {
	if m == nil {
		return
	}
	m.cacheTotal.WithLabelValues(result).Inc()
}
