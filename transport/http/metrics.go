package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the gateway's Prometheus collectors
type Metrics struct {
	requests        *prometheus.CounterVec
	authOutcomes    *prometheus.CounterVec
	streamOutcomes  *prometheus.CounterVec
	relayedBytes    prometheus.Counter
	upstreamLatency prometheus.Histogram

	gatherer prometheus.Gatherer
}

// NewMetrics registers the collectors on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tollgate",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		authOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tollgate",
			Name:      "auth_outcomes_total",
			Help:      "Nonce and verify outcomes.",
		}, []string{"operation", "outcome"}),
		streamOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tollgate",
			Name:      "stream_outcomes_total",
			Help:      "Stream request outcomes.",
		}, []string{"outcome"}),
		relayedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tollgate",
			Name:      "stream_relayed_bytes_total",
			Help:      "Media bytes relayed to clients.",
		}),
		upstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tollgate",
			Name:      "stream_open_seconds",
			Help:      "Time from request to origin response headers, including ledger and metadata lookups.",
			Buckets:   prometheus.DefBuckets,
		}),
		gatherer: reg,
	}
	reg.MustRegister(
		m.requests,
		m.authOutcomes,
		m.streamOutcomes,
		m.relayedBytes,
		m.upstreamLatency,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
