package property

import "github.com/delaneyj/liveprop/dispatch"

// Live is a Mutable whose changes can be requested from any goroutine.
//
// PostValue and PostValueForced hand the change to the main context, where it
// is applied with the same semantics as SetValue and SetValueForced. Posts
// from one goroutine are applied in the order they were made. When there is
// no main context the change is applied inline before the post returns.
//
// Posts cannot be retracted. Cancelling an observer only stops future
// notifications from reaching it; a pending post still changes the value.
type Live[T any] struct {
	Mutable[T]
	dispatcher dispatch.Dispatcher
}

// NewLive returns a Live comparing values with ==. The interface caveat of
// New applies.
func NewLive[T comparable](initial T, opts ...Option) *Live[T] {
	return NewLiveFunc(initial, equalComparable[T], opts...)
}

// NewLiveFunc returns a Live comparing values with equal. A nil equal falls
// back to reflect.DeepEqual.
func NewLiveFunc[T any](initial T, equal func(a, b T) bool, opts ...Option) *Live[T] {
	o := applyOptions(opts)
	l := &Live[T]{dispatcher: o.dispatcher}
	l.equal = equal
	l.init(initial, o)
	return l
}

// PostValue applies SetValue(v) on the main context.
func (l *Live[T]) PostValue(v T) {
	l.post(func() { l.SetValue(v) })
}

// PostValueForced applies SetValueForced(v) on the main context.
func (l *Live[T]) PostValueForced(v T) {
	l.post(func() { l.SetValueForced(v) })
}

// PostUpdate applies Update(fn) on the main context, so fn sees the value as
// it is when the change is applied, not when it was posted.
func (l *Live[T]) PostUpdate(fn func(T) T) {
	l.post(func() { l.Update(fn) })
}

func (l *Live[T]) post(task func()) {
	d := l.dispatcher
	if d == nil {
		d = dispatch.Default()
	}
	dispatch.Submit(d, task)
}
