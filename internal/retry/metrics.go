package retry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus counters owned by retry policies.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	// retriesTotal counts sleeps taken after a transient failure, by operation.
	retriesTotal *prometheus.CounterVec

	// exhaustedTotal counts operations that failed on every attempt.
	exhaustedTotal *prometheus.CounterVec
}

// NewMetrics registers the retry counters against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		retriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hiresync",
			Subsystem: "retry",
			Name:      "retries_total",
			Help:      "Number of retries taken after a transient index-service failure, partitioned by operation.",
		}, []string{"op"}),

		exhaustedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hiresync",
			Subsystem: "retry",
			Name:      "exhausted_total",
			Help:      "Number of operations that failed after every retry attempt, partitioned by operation.",
		}, []string{"op"}),
	}
}

func (m *Metrics) retried(op string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(op).Inc()
}

func (m *Metrics) exhausted(op string) {
	if m == nil {
		return
	}
	m.exhaustedTotal.WithLabelValues(op).Inc()
}
