// Package metrics exposes the service's Prometheus collectors. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps prometheus collectors for the feed service.
type Metrics struct {
	registry *prometheus.Registry

	cacheRequests    *prometheus.CounterVec
	upstreamFailures *prometheus.CounterVec
	fallbacks        *prometheus.CounterVec
	decodeOutcomes   *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
}

var upstreamBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40}

// New registers the collectors on a private registry. cacheSize, when
// non-nil, backs the cache_entries gauge.
func New(namespace string, cacheSize func() int) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,

		cacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_requests_total",
				Help:      "Cache lookups by domain and result",
			},
			[]string{"domain", "result"},
		),

		upstreamFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_failures_total",
				Help:      "Failed calls to content or generative upstreams",
			},
			[]string{"upstream"},
		),

		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fallbacks_total",
				Help:      "Responses built from static defaults",
			},
			[]string{"kind"},
		),

		decodeOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decode_repairs_total",
				Help:      "Generated JSON decodes by outcome",
			},
			[]string{"outcome"},
		),

		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_duration_seconds",
				Help:      "Upstream call latency",
				Buckets:   upstreamBuckets,
			},
			[]string{"upstream"},
		),
	}

	registry.MustRegister(
		m.cacheRequests,
		m.upstreamFailures,
		m.fallbacks,
		m.decodeOutcomes,
		m.upstreamDuration,
	)

	if cacheSize != nil {
		registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_entries",
				Help:      "Entries currently held in the response cache",
			},
			func() float64 { return float64(cacheSize()) },
		))
	}

	return m
}

// CacheLookup records a hit or a miss for domain.
func (m *Metrics) CacheLookup(domain string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheRequests.WithLabelValues(domain, result).Inc()
}

// UpstreamFailure counts a failed call.
func (m *Metrics) UpstreamFailure(upstream string) {
	if m == nil {
		return
	}
	m.upstreamFailures.WithLabelValues(upstream).Inc()
}

// Fallback counts a default served in place of generated content.
func (m *Metrics) Fallback(kind string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(kind).Inc()
}

// DecodeOutcome counts one decode by its outcome label.
func (m *Metrics) DecodeOutcome(outcome string) {
	if m == nil {
		return
	}
	m.decodeOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveUpstream records the latency of one call.
func (m *Metrics) ObserveUpstream(upstream string, d time.Duration) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(upstream).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry, mostly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
