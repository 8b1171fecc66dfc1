package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP请求指标
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gtranslate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_class"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gtranslate_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"method", "path", "status_class"},
	)

	HTTPInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gtranslate_http_inflight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// 上游调用指标
	UpstreamAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gtranslate_upstream_attempts_total",
			Help: "Total upstream attempts by outcome",
		},
		[]string{"outcome"},
	)

	UpstreamAttemptDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gtranslate_upstream_attempt_duration_seconds",
			Help:    "Upstream attempt latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		},
	)

	// 凭证指标
	CredentialEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gtranslate_credential_evictions_total",
			Help: "Credentials evicted from a set",
		},
		[]string{"set"},
	)

	CredentialLoadFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gtranslate_credential_load_failures_total",
			Help: "Failed credential set loads",
		},
		[]string{"set"},
	)

	// 翻译缓存指标
	TranslationCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gtranslate_translation_cache_hits_total",
			Help: "Translation cache hits",
		},
	)

	TranslationCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gtranslate_translation_cache_misses_total",
			Help: "Translation cache misses",
		},
	)

	TranslationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gtranslate_translations_total",
			Help: "Completed single-text translations by outcome",
		},
		[]string{"outcome"},
	)

	// 熔断器状态: 0=closed 1=half-open 2=open
	CircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gtranslate_circuit_state",
			Help: "Circuit breaker state per upstream host (0 closed, 1 half-open, 2 open)",
		},
		[]string{"host"},
	)

	// 请求合并指标
	CoalescedRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gtranslate_coalesced_requests_total",
			Help: "Client requests served from an in-flight duplicate",
		},
	)

	RateLimitKeysGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gtranslate_ratelimit_keys",
			Help: "Per-key rate limiters currently tracked",
		},
	)
)
