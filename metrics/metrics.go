// Package metrics registers the Prometheus collectors the core's caches,
// single-flight maps, provider calls, and quota gate report against.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quietridge/copilot-core/cache"
)

// Registry holds every collector the core reports to.
type Registry struct {
	CacheHits      *prometheus.GaugeVec
	CacheMisses    *prometheus.GaugeVec
	CacheEvictions *prometheus.GaugeVec

	FlightCoalesced *prometheus.CounterVec

	ProviderCallDuration *prometheus.HistogramVec

	QuotaRejections *prometheus.CounterVec
}

// New builds and registers a Registry against prometheus's default registerer.
func New() *Registry {
	r := &Registry{
		CacheHits: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "copilot_cache_hits_total",
				Help: "Cumulative fresh cache hits by cache name.",
			},
			[]string{"cache"},
		),
		CacheMisses: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "copilot_cache_misses_total",
				Help: "Cumulative cache misses (absent or stale) by cache name.",
			},
			[]string{"cache"},
		),
		CacheEvictions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "copilot_cache_evictions_total",
				Help: "Cumulative entries evicted by the bounded-size policy, by cache name.",
			},
			[]string{"cache"},
		),
		FlightCoalesced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "copilot_singleflight_coalesced_total",
				Help: "Calls that joined an in-flight producer instead of starting a new one, by map name.",
			},
			[]string{"map"},
		),
		ProviderCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "copilot_provider_call_duration_seconds",
				Help:    "Provider call duration by provider name and outcome.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15, 30},
			},
			[]string{"provider", "outcome"},
		),
		QuotaRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "copilot_quota_rejections_total",
				Help: "Requests rejected by the Quota Gate, by billing tier.",
			},
			[]string{"tier"},
		),
	}

	prometheus.MustRegister(
		r.CacheHits,
		r.CacheMisses,
		r.CacheEvictions,
		r.FlightCoalesced,
		r.ProviderCallDuration,
		r.QuotaRejections,
	)

	return r
}

// Handler returns the promhttp handler to mount at GET /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}

// SampleCache pushes a cache's cumulative counters into the gauges for name.
// Caches track their own hit/miss/eviction totals (cache.Cache.Stats); this
// just republishes the snapshot under Prometheus.
func (r *Registry) SampleCache(name string, s cache.Stats) {
	r.CacheHits.WithLabelValues(name).Set(float64(s.Hits))
	r.CacheMisses.WithLabelValues(name).Set(float64(s.Misses))
	r.CacheEvictions.WithLabelValues(name).Set(float64(s.Evictions))
}

// ObserveProviderCall records how long a provider call took and how it ended.
func (r *Registry) ObserveProviderCall(provider, outcome string, seconds float64) {
	r.ProviderCallDuration.WithLabelValues(provider, outcome).Observe(seconds)
}

// RecordQuotaRejection increments the rejection counter for a billing tier.
func (r *Registry) RecordQuotaRejection(tier string) {
	r.QuotaRejections.WithLabelValues(tier).Inc()
}

// RecordFlightCoalesced increments the coalesced-call counter for a named
// single-flight map, e.g. when Acquire reports a caller joined an
// already-outstanding producer instead of starting a new one.
func (r *Registry) RecordFlightCoalesced(mapName string) {
	r.FlightCoalesced.WithLabelValues(mapName).Inc()
}
