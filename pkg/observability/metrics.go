package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics emitted by the authorization
// pipeline.
type Metrics struct {
	// Decision metrics
	DecisionsTotal *prometheus.CounterVec

	// Stage metrics
	StageDuration *prometheus.HistogramVec

	// Permission cache metrics
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	// Version store metrics
	VersionBumpsTotal prometheus.Counter
}

// NewMetrics creates and registers the pipeline metrics on the given
// registry. Passing nil registers on the default registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_decisions_total",
				Help: "Authorization decisions by outcome and denial code",
			},
			[]string{"outcome", "code"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authcore_stage_duration_seconds",
				Help:    "Pipeline stage duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authcore_permission_cache_hits_total",
			Help: "Permission cache hits",
		}),
		CacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authcore_permission_cache_misses_total",
			Help: "Permission cache misses",
		}),
		VersionBumpsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authcore_version_bumps_total",
			Help: "Permission version increments",
		}),
	}

	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	registry.MustRegister(
		m.DecisionsTotal,
		m.StageDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.VersionBumpsTotal,
	)
	return m
}

// RecordDecision counts an authorization decision. code is empty for
// allows.
func (m *Metrics) RecordDecision(allowed bool, code string) {
	if m == nil {
		return
	}
	outcome := "allow"
	if !allowed {
		outcome = "deny"
	}
	m.DecisionsTotal.WithLabelValues(outcome, code).Inc()
}

// ObserveStage records the duration of a pipeline stage.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// RecordCacheHit counts a permission cache hit or miss.
func (m *Metrics) RecordCacheHit(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.Inc()
	} else {
		m.CacheMissesTotal.Inc()
	}
}

// RecordVersionBump counts a permission version increment.
func (m *Metrics) RecordVersionBump() {
	if m == nil {
		return
	}
	m.VersionBumpsTotal.Inc()
}
