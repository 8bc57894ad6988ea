package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Provider names used as label values.
const (
	ProviderStripe     = "stripe"
	ProviderIdentity   = "identity"
	ProviderCompletion = "completion"
)

// ProviderMetrics records calls made to hosted providers.
type ProviderMetrics struct {
	duration *prometheus.HistogramVec
	failure  *prometheus.CounterVec
}

// NewProviderMetrics registers the provider call metrics on the provided registerer.
func NewProviderMetrics(reg prometheus.Registerer) *ProviderMetrics {
	if reg == nil {
		return &ProviderMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "provider_call_duration_seconds",
		Help:    "Duration of calls to upstream providers in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "operation"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "provider_call_failures",
		Help: "Failed calls to upstream providers.",
	}, []string{"provider", "operation"})
	reg.MustRegister(duration, failure)
	return &ProviderMetrics{
		duration: duration,
		failure:  failure,
	}
}

// Observe records one call; a non-nil err also counts as a failure.
func (p *ProviderMetrics) Observe(provider, operation string, started time.Time, err error) {
	if p == nil || p.duration == nil {
		return
	}
	provider = normalizeLabel(provider)
	operation = normalizeLabel(operation)
	p.duration.WithLabelValues(provider, operation).Observe(time.Since(started).Seconds())
	if err != nil {
		p.failure.WithLabelValues(provider, operation).Inc()
	}
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
