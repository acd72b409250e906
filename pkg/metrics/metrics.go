package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FlowMetrics records counters for the onboarding flow and its upstream calls.
type FlowMetrics struct {
	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	ratesFailures    prometheus.Counter
	scans            *prometheus.CounterVec
	breadcrumbs      *prometheus.CounterVec
}

// NewFlowMetrics registers the flow metrics on the provided registerer.
// A nil registerer yields a no-op instance, which the tests rely on.
func NewFlowMetrics(reg prometheus.Registerer) *FlowMetrics {
	if reg == nil {
		return &FlowMetrics{}
	}
	upstreamRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_requests_total",
		Help: "Upstream API calls by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})
	upstreamDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upstream_request_duration_seconds",
		Help:    "Duration of upstream API calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
	cacheHits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_cache_hits_total",
		Help: "Session cache hits by logical key.",
	}, []string{"key"})
	cacheMisses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_cache_misses_total",
		Help: "Session cache misses by logical key.",
	}, []string{"key"})
	ratesFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_normalization_failures_total",
		Help: "Rate responses rejected during normalization.",
	})
	scans := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "code_scans_total",
		Help: "QR scans by outcome.",
	}, []string{"outcome"})
	breadcrumbs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_breadcrumbs_total",
		Help: "Analytics breadcrumbs emitted by event name.",
	}, []string{"event"})
	reg.MustRegister(upstreamRequests, upstreamDuration, cacheHits, cacheMisses, ratesFailures, scans, breadcrumbs)
	return &FlowMetrics{
		upstreamRequests: upstreamRequests,
		upstreamDuration: upstreamDuration,
		cacheHits:        cacheHits,
		cacheMisses:      cacheMisses,
		ratesFailures:    ratesFailures,
		scans:            scans,
		breadcrumbs:      breadcrumbs,
	}
}

// ObserveUpstream records one upstream call with its outcome and duration.
func (m *FlowMetrics) ObserveUpstream(endpoint, outcome string, duration time.Duration) {
	if m == nil || m.upstreamRequests == nil {
		return
	}
	m.upstreamRequests.WithLabelValues(normalizeLabel(endpoint), normalizeLabel(outcome)).Inc()
	m.upstreamDuration.WithLabelValues(normalizeLabel(endpoint)).Observe(duration.Seconds())
}

// IncCacheHit increments the hit counter for the logical key.
func (m *FlowMetrics) IncCacheHit(key string) {
	if m == nil || m.cacheHits == nil {
		return
	}
	m.cacheHits.WithLabelValues(normalizeLabel(key)).Inc()
}

// IncCacheMiss increments the miss counter for the logical key.
func (m *FlowMetrics) IncCacheMiss(key string) {
	if m == nil || m.cacheMisses == nil {
		return
	}
	m.cacheMisses.WithLabelValues(normalizeLabel(key)).Inc()
}

// IncRatesFailure counts a rate response rejected during normalization.
func (m *FlowMetrics) IncRatesFailure() {
	if m == nil || m.ratesFailures == nil {
		return
	}
	m.ratesFailures.Inc()
}

// IncScan counts a scan attempt by outcome.
func (m *FlowMetrics) IncScan(outcome string) {
	if m == nil || m.scans == nil {
		return
	}
	m.scans.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncBreadcrumb counts an emitted analytics breadcrumb.
func (m *FlowMetrics) IncBreadcrumb(event string) {
	if m == nil || m.breadcrumbs == nil {
		return
	}
	m.breadcrumbs.WithLabelValues(normalizeLabel(event)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
