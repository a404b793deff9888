package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Sink collects controller metrics. A nil *Sink is a no-op, so callers can
// skip wiring metrics entirely.
type Sink struct {
	evaluations *prometheus.CounterVec
	duration    prometheus.Histogram
	batterySoc  prometheus.Gauge
	targetSoc   prometheus.Gauge
	costEUR     prometheus.Gauge
	avgPrice    prometheus.Gauge
}

// NewSink registers the controller collectors on reg, reusing collectors
// that were registered earlier (tests re-register on the same registry).
func NewSink(reg prometheus.Registerer) (*Sink, error) {
	evaluations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "batteryctl_evaluations_total",
		Help: "Control evaluations by outcome",
	}, []string{"outcome"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "batteryctl_optimize_duration_seconds",
		Help:    "Time spent in one plan computation",
		Buckets: prometheus.DefBuckets,
	})
	batterySoc := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "batteryctl_battery_soc_percent",
		Help: "Battery state of charge from the last evaluation",
	})
	targetSoc := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "batteryctl_target_soc_percent",
		Help: "Target SOC from the last decision",
	})
	costEUR := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "batteryctl_projected_cost_eur",
		Help: "Projected grid cost over the forecast horizon",
	})
	avgPrice := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "batteryctl_average_price_eur_per_kwh",
		Help: "Time weighted average effective price of the forecast",
	})

	if err := reg.Register(evaluations); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			evaluations = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(duration); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			duration = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	for _, g := range []*prometheus.Gauge{&batterySoc, &targetSoc, &costEUR, &avgPrice} {
		if err := reg.Register(*g); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				*g = are.ExistingCollector.(prometheus.Gauge)
			} else {
				return nil, err
			}
		}
	}

	return &Sink{
		evaluations: evaluations,
		duration:    duration,
		batterySoc:  batterySoc,
		targetSoc:   targetSoc,
		costEUR:     costEUR,
		avgPrice:    avgPrice,
	}, nil
}

// RecordEvaluation counts one evaluation with its outcome label
// ("applied", "held", "skipped", "dry_run" or "error").
func (s *Sink) RecordEvaluation(outcome string) {
	if s == nil {
		return
	}
	s.evaluations.WithLabelValues(outcome).Inc()
}

// ObserveOptimizeDuration records how long one plan computation took.
func (s *Sink) ObserveOptimizeDuration(d time.Duration) {
	if s == nil {
		return
	}
	s.duration.Observe(d.Seconds())
}

// RecordPlan updates the plan gauges.
func (s *Sink) RecordPlan(batterySoc float64, targetSoc int, projectedCost, avgPrice float64) {
	if s == nil {
		return
	}
	s.batterySoc.Set(batterySoc)
	s.targetSoc.Set(float64(targetSoc))
	s.costEUR.Set(projectedCost)
	s.avgPrice.Set(avgPrice)
}
