// Package metrics 定义推荐服务的 Prometheus 指标（promauto 注册到默认 registry）。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 推荐请求
	ResolveRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoprec_resolve_requests_total",
			Help: "Total number of recommendation requests by requested strategy and served algorithm",
		},
		[]string{"strategy", "algorithm"},
	)

	ResolveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shoprec_resolve_duration_seconds",
			Help:    "Recommendation resolve latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"strategy"},
	)

	ValidationErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shoprec_validation_errors_total",
			Help: "Total number of rejected recommendation requests",
		},
	)

	Degradations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoprec_degradations_total",
			Help: "Total number of strategies that fell back to trending",
		},
		[]string{"strategy", "reason"},
	)

	// 缓存
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shoprec_cache_hits_total",
			Help: "Total number of recommendation cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shoprec_cache_misses_total",
			Help: "Total number of recommendation cache misses",
		},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoprec_cache_errors_total",
			Help: "Total number of swallowed cache errors",
		},
		[]string{"op"},
	)

	// 召回源
	RecallSourceErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoprec_recall_source_errors_total",
			Help: "Total number of failed candidate sources",
		},
		[]string{"source"},
	)

	// 熔断
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shoprec_breaker_state",
			Help: "Catalog circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// 追踪
	FeedbackEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoprec_feedback_events_total",
			Help: "Total number of tracked click/purchase events by algorithm",
		},
		[]string{"event", "algorithm"},
	)

	FeedbackErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoprec_feedback_errors_total",
			Help: "Total number of swallowed feedback collector errors",
		},
		[]string{"collector"},
	)

	// HTTP
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoprec_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"route", "status"},
	)
)

// RecordResolve 记录一次推荐请求。
func RecordResolve(strategy, algorithm string, duration time.Duration) {
	ResolveRequests.WithLabelValues(strategy, algorithm).Inc()
	ResolveDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordCache 记录缓存命中/未命中。
func RecordCache(hit bool) {
	if hit {
		CacheHits.Inc()
		return
	}
	CacheMisses.Inc()
}

// RecordDegradation 记录一次降级到 trending。
func RecordDegradation(strategy, reason string) {
	Degradations.WithLabelValues(strategy, reason).Inc()
}
