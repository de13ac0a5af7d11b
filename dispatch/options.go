package dispatch

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/delaneyj/liveprop/dispatch"

// LoopOption configures a Loop.
type LoopOption func(*loopConfig)

type loopConfig struct {
	// logger receives task panics and dropped-task warnings.
	// Default: slog.Default()
	logger *slog.Logger

	// registerer receives the loop metrics. Nil leaves them unregistered.
	registerer prometheus.Registerer

	// namespace is the metrics namespace (default: "liveprop").
	namespace string

	// constLabels are added to every loop metric.
	constLabels prometheus.Labels

	// tracerProvider creates the per-task spans.
	// Default: otel.GetTracerProvider()
	tracerProvider trace.TracerProvider
}

func defaultLoopConfig() loopConfig {
	return loopConfig{
		logger:         slog.Default(),
		namespace:      "liveprop",
		tracerProvider: otel.GetTracerProvider(),
	}
}

// WithLoopLogger sets the logger used for task panics and dropped tasks.
func WithLoopLogger(logger *slog.Logger) LoopOption {
	return func(c *loopConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRegisterer registers the loop metrics with reg.
func WithRegisterer(reg prometheus.Registerer) LoopOption {
	return func(c *loopConfig) {
		c.registerer = reg
	}
}

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) LoopOption {
	return func(c *loopConfig) {
		c.namespace = namespace
	}
}

// WithConstLabels sets constant labels for all loop metrics, e.g. to tell
// several loops apart in one registry.
func WithConstLabels(labels prometheus.Labels) LoopOption {
	return func(c *loopConfig) {
		c.constLabels = labels
	}
}

// WithTracerProvider sets the provider used for per-task spans.
func WithTracerProvider(tp trace.TracerProvider) LoopOption {
	return func(c *loopConfig) {
		if tp != nil {
			c.tracerProvider = tp
		}
	}
}
