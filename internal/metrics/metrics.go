// Package metrics exposes pipeline counters and gauges to Prometheus.
//
// Every method is safe on a nil *Metrics so the pipeline can run with
// metrics disabled without guarding each call.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "assetprep"

// Metrics holds the collectors for one manager.
type Metrics struct {
	registry *prometheus.Registry

	StageCompletions *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	StagePending     *prometheus.GaugeVec
	StageInFlight    *prometheus.GaugeVec
	Admissions       *prometheus.CounterVec
	BudgetCeiling    prometheus.Gauge
	BudgetCommitted  prometheus.Gauge
	GlobalState      prometheus.Gauge
	LazyLoads        *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		StageCompletions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_completions_total",
				Help:      "Stage tasks observed complete, by outcome",
			},
			[]string{"stage", "outcome"},
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_task_duration_seconds",
				Help:      "Time from dispatch to observed completion of a stage task",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~40s
			},
			[]string{"stage"},
		),
		StagePending: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stage_pending",
				Help:      "Assets queued for a stage",
			},
			[]string{"stage"},
		),
		StageInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stage_in_flight",
				Help:      "Stage tasks running on the worker pool",
			},
			[]string{"stage"},
		),
		Admissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "budget_decisions_total",
				Help:      "Preload admission decisions, by reason",
			},
			[]string{"reason"},
		),
		BudgetCeiling: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "budget_ceiling_bytes",
				Help:      "Configured VRAM ceiling",
			},
		),
		BudgetCommitted: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "budget_committed_bytes",
				Help:      "Estimated bytes committed to preloaded assets",
			},
		),
		GlobalState: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "global_state",
				Help:      "Global pipeline state ordinal (0 uninitialized .. 4 ready)",
			},
		),
		LazyLoads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lazy_loads_total",
				Help:      "On-demand materializations of skipped assets, by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCompletion records one finished stage task.
func (m *Metrics) ObserveCompletion(stage, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.StageCompletions.WithLabelValues(stage, outcome).Inc()
	m.StageDuration.WithLabelValues(stage).Observe(seconds)
}

// SetQueue records the pending and in-flight depth of a stage.
func (m *Metrics) SetQueue(stage string, pending, inFlight int) {
	if m == nil {
		return
	}
	m.StagePending.WithLabelValues(stage).Set(float64(pending))
	m.StageInFlight.WithLabelValues(stage).Set(float64(inFlight))
}

// ObserveAdmission records an admission decision and the committed total.
func (m *Metrics) ObserveAdmission(reason string, committed float64) {
	if m == nil {
		return
	}
	m.Admissions.WithLabelValues(reason).Inc()
	m.BudgetCommitted.Set(committed)
}

// SetCeiling records the budget ceiling.
func (m *Metrics) SetCeiling(bytes float64) {
	if m == nil {
		return
	}
	m.BudgetCeiling.Set(bytes)
}

// SetGlobalState records the global state ordinal.
func (m *Metrics) SetGlobalState(ordinal int) {
	if m == nil {
		return
	}
	m.GlobalState.Set(float64(ordinal))
}

// ObserveLazyLoad records an on-demand materialization.
func (m *Metrics) ObserveLazyLoad(outcome string) {
	if m == nil {
		return
	}
	m.LazyLoads.WithLabelValues(outcome).Inc()
}
