// Package dispatch hands work to a single serialized main execution context.
//
// A Dispatcher either accepts a task for later execution on its main context
// (TrySubmit returns true) or refuses it because no main context is active, in
// which case the caller runs the task itself. Loop is the in-process main
// context; Inline is the dispatcher used when there is none.
package dispatch

import "sync/atomic"

// Dispatcher accepts tasks for a main execution context.
//
// TrySubmit must not block. When it returns true the task runs later, exactly
// once, on the main context, after every task previously accepted from the
// same goroutine. When it returns false the task has not been retained.
type Dispatcher interface {
	TrySubmit(task func()) bool
}

// Inline is a Dispatcher with no main context. Every task is refused, so
// Submit runs it on the calling goroutine.
type Inline struct{}

func (Inline) TrySubmit(func()) bool { return false }

// Func adapts a function to the Dispatcher interface. It is handy for
// wrapping the queue of an event loop owned by something else.
type Func func(task func()) bool

func (f Func) TrySubmit(task func()) bool {
	if f == nil {
		return false
	}
	return f(task)
}

// Submit hands task to d, or runs it inline when d is nil or refuses it.
func Submit(d Dispatcher, task func()) {
	if d == nil || !d.TrySubmit(task) {
		task()
	}
}

type holder struct {
	d Dispatcher
}

var defaultDispatcher atomic.Pointer[holder]

// Default returns the process-wide dispatcher registered with SetDefault, or
// Inline when none is registered.
func Default() Dispatcher {
	if h := defaultDispatcher.Load(); h != nil && h.d != nil {
		return h.d
	}
	return Inline{}
}

// SetDefault registers d as the process-wide dispatcher and returns a function
// restoring the previous one. Passing nil unregisters.
func SetDefault(d Dispatcher) (restore func()) {
	prev := defaultDispatcher.Swap(&holder{d: d})
	return func() {
		defaultDispatcher.Store(prev)
	}
}
