// Package property provides values that notify observers when they change.
//
// Property is the read-only core: a value plus a list of observers. Mutable
// adds SetValue, which notifies only when the new value differs from the
// stored one, and SetValueForced, which always notifies. Live adds PostValue
// and PostValueForced, which may be called from any goroutine and apply the
// change on the main execution context (see package dispatch).
//
// Threading rules:
//   - Mutable is single-goroutine: Value, Observe, SetValue and
//     SetValueForced must not be called concurrently. This is not checked.
//   - Live is owned by the main context: call Value and the Set methods only
//     from there. Post methods are safe from any goroutine. Reading Value from
//     another goroutine while a post is pending is a data race.
//
// Notification:
//   - Observers run synchronously on the goroutine applying the change, in
//     the order they were registered.
//   - Observers registered during a notification are not called for it.
//   - An observer cancelled during a notification is skipped if it has not
//     run yet.
//   - A panicking observer does not stop the rest. After the burst the
//     failures are handed to the ErrorHandler, or logged when there is none.
//   - Setting the value from inside an observer is allowed and recurses.
//     Observers later in the outer notification receive the value as it is
//     when they are called, not the one that started it. Two observers setting each other's properties forever will overflow
//     the stack.
//
// Typical use keeps the Mutable private and exposes it as an Observable:
//
//	type Player struct {
//	    volume *property.Live[float64]
//	}
//
//	func (p *Player) Volume() property.Observable[float64] { return p.volume }
//
//	conn := player.Volume().Observe(func(v float64) { slider.Set(v) })
//	defer conn.Cancel()
package property

import (
	"log/slog"

	"github.com/delaneyj/liveprop/signal"
)

// Observable is the read side of a property.
type Observable[T any] interface {
	// Value returns the current value.
	Value() T

	// Observe registers onChanged and returns the handle that unregisters
	// it. Dropping the handle unregisters it too.
	Observe(onChanged func(T)) *signal.Connection
}

// ErrorHandler receives the joined observer failures of one notification.
type ErrorHandler func(err error)

// Property holds a value and its observers. It has no exported mutators; see
// Mutable and Live.
type Property[T any] struct {
	value     T
	onChanged signal.Signal[T]
	onError   ErrorHandler
	logger    *slog.Logger
}

var (
	_ Observable[int] = (*Property[int])(nil)
	_ Observable[int] = (*Mutable[int])(nil)
	_ Observable[int] = (*Live[int])(nil)
)

func (p *Property[T]) Value() T {
	return p.value
}

func (p *Property[T]) Observe(onChanged func(T)) *signal.Connection {
	return p.onChanged.Connect(onChanged)
}

// Observers returns the number of registered observers.
func (p *Property[T]) Observers() int {
	return p.onChanged.Len()
}

func (p *Property[T]) init(initial T, o options) {
	p.value = initial
	p.onError = o.onError
	p.logger = o.logger
}

// notify hands every observer the value stored when it is called. An observer
// that sets the value during a notification is seen by the ones after it.
func (p *Property[T]) notify() {
	err := p.onChanged.EmitFunc(p.Value)
	if err == nil {
		return
	}
	if p.onError != nil {
		p.onError(err)
		return
	}
	logger := p.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("property observer failed", "error", err)
}
