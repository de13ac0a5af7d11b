package dispatch

import (
	"testing"

	"github.com/petermattis/goid"
	"github.com/stretchr/testify/assert"
)

func TestInlineRefusesEverything(t *testing.T) {
	ran := false
	assert.False(t, Inline{}.TrySubmit(func() { ran = true }))
	assert.False(t, ran)
}

func TestSubmit(t *testing.T) {
	tests := []struct {
		name       string
		dispatcher Dispatcher
		wantInline bool
	}{
		{"nil dispatcher", nil, true},
		{"inline", Inline{}, true},
		{"nil func", Func(nil), true},
		{"refusing func", Func(func(func()) bool { return false }), true},
		{"accepting func", Func(func(func()) bool { return true }), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ran := false
			Submit(tt.dispatcher, func() { ran = true })
			assert.Equal(t, tt.wantInline, ran)
		})
	}
}

func TestSubmitInlineRunsOnCallingGoroutine(t *testing.T) {
	caller := goid.Get()
	var ranOn int64
	done := make(chan struct{})

	go func() {
		defer close(done)
		caller = goid.Get()
		Submit(Inline{}, func() { ranOn = goid.Get() })
	}()
	<-done

	assert.Equal(t, caller, ranOn)
}

func TestDefault(t *testing.T) {
	assert.IsType(t, Inline{}, Default())

	loop := NewLoop()
	defer loop.Close()

	restore := SetDefault(loop)
	assert.Same(t, loop, Default())

	restoreNil := SetDefault(nil)
	assert.IsType(t, Inline{}, Default())
	restoreNil()
	assert.Same(t, loop, Default())

	restore()
	assert.IsType(t, Inline{}, Default())
}
