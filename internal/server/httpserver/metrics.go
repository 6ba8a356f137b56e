package httpserver

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
}

func newMetrics(registry *prometheus.Registry) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mailtoken",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code",
		}, []string{"route", "method", "status"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mailtoken",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),

		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mailtoken",
			Subsystem: "tokens",
			Name:      "outcomes_total",
			Help:      "Token operations by operation and outcome",
		}, []string{"op", "outcome"}),
	}

	registry.MustRegister(m.requests, m.duration, m.outcomes)

	return m
}

func (m *metrics) outcome(op, outcome string) {
	m.outcomes.WithLabelValues(op, outcome).Inc()
}
