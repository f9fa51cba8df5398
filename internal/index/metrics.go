package index

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics owned by the sync engine.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	// syncTotal counts sync operations by base collection, op
	// (upsert|delete) and outcome (ok|skipped|failed).
	syncTotal *prometheus.CounterVec

	// syncDuration records sync latency by base collection and op.
	syncDuration *prometheus.HistogramVec

	// bulkFailed counts entities that failed inside bulk upserts.
	bulkFailed *prometheus.CounterVec
}

// NewMetrics registers the sync metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		syncTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hiresync",
			Subsystem: "index",
			Name:      "sync_total",
			Help:      "Total number of index sync operations, partitioned by collection, op, and outcome.",
		}, []string{"collection", "op", "outcome"}),

		syncDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hiresync",
			Subsystem: "index",
			Name:      "sync_duration_seconds",
			Help:      "Latency of index sync operations, including embedding.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"collection", "op"}),

		bulkFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hiresync",
			Subsystem: "index",
			Name:      "bulk_failed_total",
			Help:      "Entities that failed to index during bulk upserts.",
		}, []string{"collection"}),
	}
}

func (m *Metrics) observe(collection, op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.syncTotal.WithLabelValues(collection, op, outcome).Inc()
	m.syncDuration.WithLabelValues(collection, op).Observe(d.Seconds())
}

func (m *Metrics) bulkFailures(collection string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.bulkFailed.WithLabelValues(collection).Add(float64(n))
}
