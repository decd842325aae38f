package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// requestMetrics counts requests per route and status and tracks latency.
type requestMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	handler  http.Handler
}

// WithPrometheus registers request metrics on reg and serves them on
// GET /metrics. Intended for the long-running server; the Lambda front door
// reports through EMF instead.
func WithPrometheus(reg *prometheus.Registry) Option {
	return func(o *options) {
		m := &requestMetrics{
			requests: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "linesort_http_requests_total",
					Help: "HTTP requests by route and status code.",
				},
				[]string{"route", "code"},
			),
			duration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "linesort_http_request_duration_seconds",
					Help:    "HTTP request latency by route.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"route"},
			),
			handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		}
		reg.MustRegister(m.requests, m.duration)
		o.metrics = m
	}
}

// observe is a no-op on a nil receiver so the middleware can call it
// unconditionally.
func (m *requestMetrics) observe(path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	route := routeLabel(path)
	m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// routeLabel keeps label cardinality bounded to the known routes.
func routeLabel(path string) string {
	switch path {
	case "/sort", "/healthz", "/metrics":
		return path
	default:
		return "other"
	}
}
