package property

import "reflect"

// Mutable is a settable Property. The zero value holds the zero T, has no
// observers and compares values with reflect.DeepEqual.
//
// Keep it private to its owner and hand out Observable instead.
type Mutable[T any] struct {
	Property[T]
	equal func(a, b T) bool
}

// New returns a Mutable comparing values with ==. For an interface T, ==
// panics when both dynamic values are of the same uncomparable type such as a
// slice or map; use NewFunc or SetValueForced for those.
func New[T comparable](initial T, opts ...Option) *Mutable[T] {
	return NewFunc(initial, equalComparable[T], opts...)
}

// NewFunc returns a Mutable comparing values with equal. A nil equal falls
// back to reflect.DeepEqual.
func NewFunc[T any](initial T, equal func(a, b T) bool, opts ...Option) *Mutable[T] {
	m := &Mutable[T]{equal: equal}
	m.init(initial, applyOptions(opts))
	return m
}

// SetValue stores v and notifies the observers, unless v equals the current
// value.
func (m *Mutable[T]) SetValue(v T) {
	if m.equals(m.value, v) {
		return
	}
	m.SetValueForced(v)
}

// SetValueForced stores v and notifies the observers without comparing. Use
// it when T has no suitable or cheap equality.
func (m *Mutable[T]) SetValueForced(v T) {
	m.value = v
	m.notify()
}

// Update sets the value to fn applied to the current value.
func (m *Mutable[T]) Update(fn func(T) T) {
	m.SetValue(fn(m.value))
}

func (m *Mutable[T]) equals(a, b T) bool {
	if m.equal != nil {
		return m.equal(a, b)
	}
	return reflect.DeepEqual(a, b)
}

func equalComparable[T comparable](a, b T) bool {
	return a == b
}
