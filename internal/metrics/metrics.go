// Package metrics registers the Prometheus metrics for the market-data engine.
package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the aggregation engine.
type Metrics struct {
	// Resolver
	FetchAttempts   *prometheus.CounterVec // labels: provider, outcome (ok|error|empty)
	PolicyDenials   *prometheus.CounterVec // labels: provider, purpose
	ResolveDuration prometheus.Histogram
	StaleServes     prometheus.Counter
	ResolveFailures *prometheus.CounterVec // labels: kind (upstream_unavailable|compliance_blocked)

	// Cache
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Bucketing / indicators
	CandlesBucketed     prometheus.Counter
	IndicatorComputeDur prometheus.Histogram
	IndicatorsTotal     *prometheus.CounterVec // labels: kind

	// Live feed
	FeedReconnects   prometheus.Counter
	FeedDroppedTicks prometheus.Counter
	FeedTicksTotal   prometheus.Counter
}

// New registers and returns all metrics on the default registry.
func New() *Metrics {
	m := &Metrics{
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketd_fetch_attempts_total",
			Help: "Upstream fetch attempts by provider and outcome",
		}, []string{"provider", "outcome"}),
		PolicyDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketd_policy_denials_total",
			Help: "Candidates skipped by the compliance policy before any network I/O",
		}, []string{"provider", "purpose"}),
		ResolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "marketd_resolve_duration_seconds",
			Help:    "End-to-end resolve latency including fallback attempts",
			Buckets: prometheus.DefBuckets,
		}),
		StaleServes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketd_stale_serves_total",
			Help: "Resolves answered from an expired cache entry after all live providers failed",
		}),
		ResolveFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketd_resolve_failures_total",
			Help: "Resolves that exhausted the provider chain and the cache",
		}, []string{"kind"}),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketd_cache_hits_total",
			Help: "Fresh cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketd_cache_misses_total",
			Help: "Cache misses or expired entries triggering a live fetch",
		}),

		CandlesBucketed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketd_candles_bucketed_total",
			Help: "Candles produced by the tick bucketer",
		}),
		IndicatorComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "marketd_indicator_compute_duration_seconds",
			Help:    "Indicator computation latency per request",
			Buckets: []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001},
		}),
		IndicatorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketd_indicators_total",
			Help: "Indicator values computed by kind",
		}, []string{"kind"}),

		FeedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketd_feed_reconnects_total",
			Help: "Live feed WebSocket reconnection attempts",
		}),
		FeedDroppedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketd_feed_dropped_ticks_total",
			Help: "Live feed ticks dropped (buffer full or unparseable)",
		}),
		FeedTicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketd_feed_ticks_total",
			Help: "Live feed ticks received",
		}),
	}

	prometheus.MustRegister(
		m.FetchAttempts,
		m.PolicyDenials,
		m.ResolveDuration,
		m.StaleServes,
		m.ResolveFailures,
		m.CacheHits,
		m.CacheMisses,
		m.CandlesBucketed,
		m.IndicatorComputeDur,
		m.IndicatorsTotal,
		m.FeedReconnects,
		m.FeedDroppedTicks,
		m.FeedTicksTotal,
	)

	return m
}

// Serve starts the /metrics endpoint on addr. Blocks; run in a goroutine.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	log.Printf("[metrics] serving on %s", addr)
	if err := srv.ListenAndServe(); err != nil {
		log.Printf("[metrics] server error: %v", err)
	}
}
