// Package signal is a minimal ordered signal/slot implementation.
//
// A Signal holds an ordered list of slots. Emit calls every connected slot in
// connection order, synchronously, on the calling goroutine. Connect returns a
// Connection handle; cancelling it, closing it, or letting it become
// unreachable disconnects the slot.
package signal

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// PanicError is recorded when a slot panics during Emit.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("signal: slot panicked: %v", e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

type slot[T any] struct {
	id        uint64
	fn        func(T)
	connected atomic.Bool
}

// Signal is an ordered list of slots. The zero value is ready to use.
//
// Slots connected while an Emit is in progress are not called for that Emit.
// A slot cancelled while an Emit is in progress is skipped if it has not been
// reached yet.
type Signal[T any] struct {
	mu     sync.Mutex // guards slots and nextID; Cancel may run on any goroutine
	slots  []*slot[T]
	nextID uint64
}

// Connect appends fn to the slot list.
func (s *Signal[T]) Connect(fn func(T)) *Connection {
	if fn == nil {
		return &Connection{}
	}

	s.mu.Lock()
	s.nextID++
	sl := &slot[T]{id: s.nextID, fn: fn}
	sl.connected.Store(true)
	s.slots = append(s.slots, sl)
	s.mu.Unlock()

	disconnect := func() {
		if sl.connected.Swap(false) {
			s.remove(sl.id)
		}
	}
	c := &Connection{
		disconnect: disconnect,
		connected:  &sl.connected,
	}
	// The cleanup must not reference c or it would never run.
	c.cleanup = runtime.AddCleanup(c, func(d func()) { d() }, disconnect)
	return c
}

func (s *Signal[T]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sl := range s.slots {
		if sl.id == id {
			s.slots = append(s.slots[:i], s.slots[i+1:]...)
			return
		}
	}
}

// Emit calls every connected slot with v in connection order. A panicking slot
// does not stop the others; all recovered panics are returned joined.
func (s *Signal[T]) Emit(v T) error {
	return s.EmitFunc(func() T { return v })
}

// EmitFunc is Emit with the argument read from get right before each slot is
// called, so a slot sees changes made by the slots before it.
func (s *Signal[T]) EmitFunc(get func() T) error {
	s.mu.Lock()
	if len(s.slots) == 0 {
		s.mu.Unlock()
		return nil
	}
	snapshot := make([]*slot[T], len(s.slots))
	copy(snapshot, s.slots)
	s.mu.Unlock()

	var errs []error
	for _, sl := range snapshot {
		if !sl.connected.Load() {
			continue
		}
		if err := call(sl.fn, get()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func call[T any](fn func(T), v T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	fn(v)
	return nil
}

// Len returns the number of connected slots.
func (s *Signal[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}
