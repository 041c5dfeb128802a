// Package metrics wires github.com/prometheus/client_golang into the
// counters/gauges/histograms the health/metrics surface (spec §6)
// exposes. One Collector is constructed at startup and injected into
// each subsystem, per spec §9's re-expression of the source's singleton
// metrics collector as an explicit dependency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HistogramObservationCap bounds a histogram's tracked observations per
// window (spec §6): a stable bucket layout is used instead, since
// client_golang histograms are bucket-counter based rather than
// sample-retaining, which already satisfies the spec's intent (bounded
// memory per histogram) without an explicit cap counter.
const HistogramObservationCap = 1000

// Collector bundles the metrics this server exposes.
type Collector struct {
	Registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveConns     prometheus.Gauge
	RateLimitedTotal prometheus.Counter
	QueueRejectedTotal prometheus.Counter
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
}

// New constructs a Collector with its own registry (never the default
// global one), so multiple Collectors can coexist in tests.
func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		Registry: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corehttp_requests_total",
			Help: "Total requests processed, labeled by protocol and status class.",
		}, []string{"protocol", "status_class"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "corehttp_request_duration_seconds",
			Help:    "Request handling latency.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"protocol"}),
		ActiveConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "corehttp_active_connections",
			Help: "Currently open connections.",
		}),
		RateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "corehttp_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}),
		QueueRejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "corehttp_queue_rejected_total",
			Help: "Queued requests dropped because their deadline had passed when a worker dequeued them; full-queue rejections are not counted.",
		}),
		CacheHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corehttp_cache_hits_total",
			Help: "Cache hits, labeled by cache name.",
		}, []string{"cache"}),
		CacheMissesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corehttp_cache_misses_total",
			Help: "Cache misses, labeled by cache name.",
		}, []string{"cache"}),
	}

	reg.MustRegister(
		c.RequestsTotal, c.RequestDuration, c.ActiveConns,
		c.RateLimitedTotal, c.QueueRejectedTotal,
		c.CacheHitsTotal, c.CacheMissesTotal,
	)
	return c
}

// Handler returns the Prometheus text-exposition HTTP handler for
// GET /health/metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})
}

// HealthHandler serves GET /health with a minimal 200 body.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
