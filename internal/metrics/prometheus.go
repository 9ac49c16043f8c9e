// Package metrics exposes Prometheus instrumentation for the cache,
// rate limiter, revocation store, and ranking engine. Init must be
// called once at startup; before that every Record function is a
// no-op, which keeps unit tests free of registry setup.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics wraps the collectors for skillforge core metrics.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	cacheEvictions *prometheus.CounterVec
	cacheEntries   prometheus.GaugeFunc
	cacheMemory    prometheus.GaugeFunc

	rateLimitDecisions *prometheus.CounterVec

	revocationChecks *prometheus.CounterVec

	leaderboardRecomputes *prometheus.CounterVec
	leaderboardDuration   *prometheus.HistogramVec

	broadcasts *prometheus.CounterVec
}

// Default histogram buckets for leaderboard computation (in seconds).
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}

var promMetrics *PrometheusMetrics

// StatsFunc reports cache occupancy for the gauge collectors.
type StatsFunc func() (size int, approxMemory int64)

// Init initializes the Prometheus metrics subsystem. stats may be nil
// when no cache gauges are wanted.
func Init(namespace string, stats StatsFunc) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	pm := &PrometheusMetrics{
		registry: registry,

		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total cache facade hits",
		}),

		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total cache facade misses (including fail-open reads)",
		}),

		cacheEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Total cache entries removed by expiry or capacity pressure",
		}, []string{"reason"}),

		rateLimitDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_decisions_total",
			Help:      "Rate limit admissions and rejections per endpoint class",
		}, []string{"class", "decision"}),

		revocationChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revocation_checks_total",
			Help:      "Token revocation lookups by result",
		}, []string{"result"}),

		leaderboardRecomputes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leaderboard_recomputes_total",
			Help:      "Full leaderboard computations per scope kind",
		}, []string{"scope"}),

		leaderboardDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "leaderboard_compute_duration_seconds",
			Help:      "Leaderboard computation latency",
			Buckets:   defaultBuckets,
		}, []string{"scope"}),

		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Real-time leaderboard broadcasts by status",
		}, []string{"status"}),
	}

	if stats != nil {
		pm.cacheEntries = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Current number of live cache entries",
		}, func() float64 {
			size, _ := stats()
			return float64(size)
		})
		pm.cacheMemory = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_memory_bytes",
			Help:      "Approximate memory held by cache entries",
		}, func() float64 {
			_, mem := stats()
			return float64(mem)
		})
		registry.MustRegister(pm.cacheEntries, pm.cacheMemory)
	}

	registry.MustRegister(
		pm.cacheHits,
		pm.cacheMisses,
		pm.cacheEvictions,
		pm.rateLimitDecisions,
		pm.revocationChecks,
		pm.leaderboardRecomputes,
		pm.leaderboardDuration,
		pm.broadcasts,
	)

	promMetrics = pm
}

// Handler returns the /metrics HTTP handler. Init must have been
// called first.
func Handler() http.Handler {
	if promMetrics == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(promMetrics.registry, promhttp.HandlerOpts{})
}

func RecordCacheHit() {
	if promMetrics != nil {
		promMetrics.cacheHits.Inc()
	}
}

func RecordCacheMiss() {
	if promMetrics != nil {
		promMetrics.cacheMisses.Inc()
	}
}

// RecordCacheEviction records an eviction; reason is "expired" or
// "capacity".
func RecordCacheEviction(reason string) {
	if promMetrics != nil {
		promMetrics.cacheEvictions.WithLabelValues(reason).Inc()
	}
}

// RecordRateLimit records an admission decision; decision is "admit",
// "reject", or "fail_open".
func RecordRateLimit(class, decision string) {
	if promMetrics != nil {
		promMetrics.rateLimitDecisions.WithLabelValues(class, decision).Inc()
	}
}

// RecordRevocationCheck records a lookup; result is "revoked",
// "valid", or "fail_open".
func RecordRevocationCheck(result string) {
	if promMetrics != nil {
		promMetrics.revocationChecks.WithLabelValues(result).Inc()
	}
}

// RecordLeaderboardCompute records one full computation and its
// duration; scope is the scope kind ("overall", "project", "category").
func RecordLeaderboardCompute(scope string, seconds float64) {
	if promMetrics != nil {
		promMetrics.leaderboardRecomputes.WithLabelValues(scope).Inc()
		promMetrics.leaderboardDuration.WithLabelValues(scope).Observe(seconds)
	}
}

// RecordBroadcast records a broadcast attempt; status is "ok" or
// "error".
func RecordBroadcast(status string) {
	if promMetrics != nil {
		promMetrics.broadcasts.WithLabelValues(status).Inc()
	}
}
