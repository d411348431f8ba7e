// Package metrics defines the Prometheus metrics for generation and keyword tracking.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pinforge"

// Metrics holds all Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	GenerationsTotal   *prometheus.CounterVec
	ImageCallsTotal    *prometheus.CounterVec
	ProviderCallSecs   *prometheus.HistogramVec
	ProviderRetries    *prometheus.CounterVec
	KeywordRefreshes   *prometheus.CounterVec
	PinterestCacheHits *prometheus.CounterVec
}

// New creates and registers the metrics with reg, or the default registerer when nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		GenerationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "requests_total",
			Help:      "Article generation requests by outcome",
		}, []string{"outcome"}),
		ImageCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "image_calls_total",
			Help:      "Image slots by model and result",
		}, []string{"model", "result"}),
		ProviderCallSecs: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_duration_seconds",
			Help:      "Latency of provider calls",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
		}, []string{"provider", "kind"}),
		ProviderRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "retries_total",
			Help:      "Retried provider calls",
		}, []string{"provider"}),
		KeywordRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "keywords",
			Name:      "refreshes_total",
			Help:      "Keyword metric refreshes by result",
		}, []string{"result"}),
		PinterestCacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pinterest",
			Name:      "cache_lookups_total",
			Help:      "Pinterest search cache lookups by result",
		}, []string{"result"}),
	}
}

// Generation records the outcome of one generation request.
func (m *Metrics) Generation(outcome string) {
	if m == nil {
		return
	}
	m.GenerationsTotal.WithLabelValues(outcome).Inc()
}

// ImageCall records one finished image slot.
func (m *Metrics) ImageCall(model string, ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.ImageCallsTotal.WithLabelValues(model, result).Inc()
}

// ObserveCall records the latency of one provider call.
func (m *Metrics) ObserveCall(provider, kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.ProviderCallSecs.WithLabelValues(provider, kind).Observe(d.Seconds())
}

// Retry records a retried provider call.
func (m *Metrics) Retry(provider string) {
	if m == nil {
		return
	}
	m.ProviderRetries.WithLabelValues(provider).Inc()
}

// KeywordRefresh records one keyword refresh.
func (m *Metrics) KeywordRefresh(ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.KeywordRefreshes.WithLabelValues(result).Inc()
}

// CacheLookup records a Pinterest cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.PinterestCacheHits.WithLabelValues(result).Inc()
}
