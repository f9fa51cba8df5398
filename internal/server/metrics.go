package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// labelHandler partitions HTTP metrics by route pattern rather than raw
// URL path, so record ids do not explode label cardinality.
const labelHandler = "handler"

// serverMetrics holds the Prometheus metrics owned by the HTTP server.
// Search and similarity outcomes are recorded by their engines.
type serverMetrics struct {
	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, route pattern, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec

	// httpInFlight is the number of requests currently being served.
	httpInFlight prometheus.Gauge

	// rateLimited counts requests rejected by the rate limiter, per route.
	rateLimited *prometheus.CounterVec
}

// newServerMetrics registers the server metrics against reg.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hiresync",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hiresync",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),

		httpInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "hiresync",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of HTTP requests currently being served.",
		}),

		rateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hiresync",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected with 429 by the per-client rate limiter.",
		}, []string{labelHandler}),
	}
}

// rejected records a rate-limited request. The limiter runs inside the mux,
// so the matched pattern is already set.
func (m *serverMetrics) rejected(r *http.Request) {
	m.rateLimited.WithLabelValues(r.Pattern).Inc()
}

// instrument wraps the router. It must sit directly around the
// *http.ServeMux: the mux records the matched pattern on the request it is
// handed, and that pattern becomes the handler label.
func (m *serverMetrics) instrument(mux http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		rw, ok := w.(*responseWriter)
		if !ok {
			rw = &responseWriter{ResponseWriter: w, status: http.StatusOK}
		}

		start := time.Now()
		mux.ServeHTTP(rw, r)

		handler := r.Pattern
		if handler == "" {
			handler = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(r.Method, handler, strconv.Itoa(rw.status)).Inc()
		m.httpDurationSeconds.WithLabelValues(r.Method, handler).Observe(time.Since(start).Seconds())
	})
}
