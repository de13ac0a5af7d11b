package dispatch

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsSubsystem = "dispatch"

type loopMetrics struct {
	submitted prometheus.Counter
	executed  prometheus.Counter
	panics    prometheus.Counter
	dropped   prometheus.Counter
	pending   prometheus.Gauge
	duration  prometheus.Histogram
}

func newLoopMetrics(cfg loopConfig) *loopMetrics {
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{
			Namespace:   cfg.namespace,
			Subsystem:   metricsSubsystem,
			Name:        name,
			Help:        help,
			ConstLabels: cfg.constLabels,
		}
	}

	m := &loopMetrics{
		submitted: prometheus.NewCounter(prometheus.CounterOpts(opts(
			"tasks_submitted_total", "Tasks accepted by the loop."))),
		executed: prometheus.NewCounter(prometheus.CounterOpts(opts(
			"tasks_executed_total", "Tasks run on the loop goroutine."))),
		panics: prometheus.NewCounter(prometheus.CounterOpts(opts(
			"task_panics_total", "Tasks that panicked."))),
		dropped: prometheus.NewCounter(prometheus.CounterOpts(opts(
			"tasks_dropped_total", "Tasks discarded because the loop was closed before they ran."))),
		pending: prometheus.NewGauge(prometheus.GaugeOpts(opts(
			"tasks_pending", "Tasks waiting to run."))),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   cfg.namespace,
			Subsystem:   metricsSubsystem,
			Name:        "task_duration_seconds",
			Help:        "Time spent running a single task, including observer notification.",
			ConstLabels: cfg.constLabels,
			Buckets:     prometheus.ExponentialBuckets(0.000001, 4, 12),
		}),
	}

	if cfg.registerer != nil {
		m.submitted = register(cfg.registerer, m.submitted)
		m.executed = register(cfg.registerer, m.executed)
		m.panics = register(cfg.registerer, m.panics)
		m.dropped = register(cfg.registerer, m.dropped)
		m.pending = register(cfg.registerer, m.pending)
		m.duration = register(cfg.registerer, m.duration)
	}
	return m
}

// register returns the collector already registered under the same
// descriptor, if any, so several loops can share one registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	return c
}
