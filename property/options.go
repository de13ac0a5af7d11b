package property

import (
	"log/slog"

	"github.com/delaneyj/liveprop/dispatch"
)

// Option configures a property.
type Option func(*options)

type options struct {
	dispatcher dispatch.Dispatcher
	onError    ErrorHandler
	logger     *slog.Logger
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithDispatcher sets the main context a Live property posts to. Without it
// posts go to dispatch.Default() as it is at the time of the post.
func WithDispatcher(d dispatch.Dispatcher) Option {
	return func(o *options) {
		o.dispatcher = d
	}
}

// WithErrorHandler sets the handler for observer failures.
func WithErrorHandler(fn ErrorHandler) Option {
	return func(o *options) {
		o.onError = fn
	}
}

// WithLogger sets the logger observer failures are reported to when there is
// no ErrorHandler. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
