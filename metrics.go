package wapi

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the request lifecycle and
// the response cache. All methods are safe on a nil receiver.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	cacheStores        *prometheus.CounterVec
	cacheSize          prometheus.Gauge
	cacheInvalidations *prometheus.CounterVec

	deduplicationDrops *prometheus.CounterVec

	listenerNotifications *prometheus.CounterVec

	errorsTotal *prometheus.CounterVec

	registry prometheus.Registerer
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using supplied registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	mc := &MetricsCollector{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "wapi_requests_total",
				Help: "Total number of resolved requests by outcome",
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wapi_request_duration_seconds",
				Help:    "Duration of network exchanges in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestsInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "wapi_requests_in_flight",
				Help: "Number of network exchanges currently in flight",
			},
			[]string{"method", "endpoint"},
		),
		cacheHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "wapi_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"content"},
		),
		cacheMisses: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "wapi_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"content"},
		),
		cacheStores: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "wapi_cache_stores_total",
				Help: "Total number of responses written to the cache",
			},
			[]string{"content"},
		),
		cacheSize: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "wapi_cache_entries",
				Help: "Current number of responses held by the cache across all content names",
			},
		),
		cacheInvalidations: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "wapi_cache_invalidations_total",
				Help: "Total number of content invalidations",
			},
			[]string{"content"},
		),
		deduplicationDrops: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "wapi_deduplication_drops_total",
				Help: "Total number of requests dropped because an identical one was in flight",
			},
			[]string{"method", "endpoint"},
		),
		listenerNotifications: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "wapi_listener_notifications_total",
				Help: "Total number of listener callbacks invoked",
			},
			[]string{"kind"},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "wapi_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type", "method", "endpoint"},
		),
		registry: registry,
	}

	promauto.With(registry).NewGauge(prometheus.GaugeOpts{
		Name:        "wapi_build_info",
		Help:        "Build metadata of the wapi client; always 1",
		ConstLabels: prometheus.Labels(GetVersionInfo()),
	}).Set(1)

	return mc
}

// RecordRequest records request count and duration.
func (mc *MetricsCollector) RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}

	statusCodeStr := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(method, statusCodeStr, endpoint).Inc()
	mc.requestDuration.WithLabelValues(method, statusCodeStr, endpoint).Observe(duration.Seconds())
}

// RecordRequestStart increments in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, endpoint).Inc()
}

// RecordRequestEnd decrements in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, endpoint).Dec()
}

// RecordCacheHit increments cache hit counter.
func (mc *MetricsCollector) RecordCacheHit(content string) {
	if mc == nil {
		return
	}

	mc.cacheHits.WithLabelValues(content).Inc()
}

// RecordCacheMiss increments cache miss counter.
func (mc *MetricsCollector) RecordCacheMiss(content string) {
	if mc == nil {
		return
	}

	mc.cacheMisses.WithLabelValues(content).Inc()
}

// RecordCacheStore increments the cache write counter.
func (mc *MetricsCollector) RecordCacheStore(content string) {
	if mc == nil {
		return
	}

	mc.cacheStores.WithLabelValues(content).Inc()
}

// RecordCacheSize sets the number of cached responses.
func (mc *MetricsCollector) RecordCacheSize(size int) {
	if mc == nil {
		return
	}

	mc.cacheSize.Set(float64(size))
}

// RecordCacheInvalidation increments the invalidation counter.
func (mc *MetricsCollector) RecordCacheInvalidation(content string) {
	if mc == nil {
		return
	}

	mc.cacheInvalidations.WithLabelValues(content).Inc()
}

// RecordDeduplicationDrop increments the dropped-duplicate counter.
func (mc *MetricsCollector) RecordDeduplicationDrop(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.deduplicationDrops.WithLabelValues(method, endpoint).Inc()
}

// RecordListenerNotifications adds n callbacks of the given kind.
func (mc *MetricsCollector) RecordListenerNotifications(kind string, n int) {
	if mc == nil || n <= 0 {
		return
	}

	mc.listenerNotifications.WithLabelValues(kind).Add(float64(n))
}

// RecordError increments error counter by type.
func (mc *MetricsCollector) RecordError(errorType, method, endpoint string) {
	if mc == nil {
		return
	}

	mc.errorsTotal.WithLabelValues(errorType, method, endpoint).Inc()
}

// GetRegistry returns the registerer the collector was created with.
func (mc *MetricsCollector) GetRegistry() prometheus.Registerer {
	if mc == nil {
		return nil
	}
	return mc.registry
}
