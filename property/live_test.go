package property_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/delaneyj/liveprop/dispatch"
	"github.com/delaneyj/liveprop/property"
	"github.com/petermattis/goid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostValueRunsObserverOnMainContext(t *testing.T) {
	loop := dispatch.NewLoop()
	defer loop.Close()

	p := property.NewLive(0, property.WithDispatcher(loop))
	main := goid.Get()

	var ranOn int64
	var got int
	conn := p.Observe(func(v int) {
		ranOn = goid.Get()
		got = v
		assert.True(t, loop.IsMainContext())
	})
	defer conn.Cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.PostValue(1)
	}()
	wg.Wait()

	// Nothing happens until the main context processes its queue.
	assert.Equal(t, 0, p.Value())
	assert.Zero(t, ranOn)

	_, err := loop.Drain()
	require.NoError(t, err)
	assert.Equal(t, main, ranOn)
	assert.Equal(t, 1, got)
	assert.Equal(t, 1, p.Value())
}

func TestSetValueOnMainGoroutineIsSynchronous(t *testing.T) {
	loop := dispatch.NewLoop()
	defer loop.Close()

	p := property.NewLive(0, property.WithDispatcher(loop))
	main := goid.Get()

	var ranOn int64
	conn := p.Observe(func(v int) {
		ranOn = goid.Get()
		assert.Equal(t, 1, v)
	})
	defer conn.Cancel()

	p.SetValue(1)
	assert.Equal(t, main, ranOn)
	assert.Equal(t, 0, loop.Pending())
}

func TestPostValueWithoutMainContextRunsInline(t *testing.T) {
	tests := []struct {
		name string
		opts []property.Option
	}{
		{"default dispatcher", nil},
		{"inline dispatcher", []property.Option{property.WithDispatcher(dispatch.Inline{})}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := property.NewLive(0, tt.opts...)

			var ranOn, postedFrom int64
			var got []int
			conn := p.Observe(func(v int) {
				ranOn = goid.Get()
				got = append(got, v)
			})
			defer conn.Cancel()

			done := make(chan struct{})
			go func() {
				defer close(done)
				postedFrom = goid.Get()
				p.PostValue(7)
				// Already applied when PostValue returns.
				assert.Equal(t, []int{7}, got)
				p.PostValue(7)
				p.PostValueForced(7)
			}()
			<-done

			assert.Equal(t, postedFrom, ranOn)
			assert.Equal(t, []int{7, 7}, got)
			assert.Equal(t, 7, p.Value())
		})
	}
}

func TestPostsFromOneGoroutineKeepOrder(t *testing.T) {
	loop := dispatch.NewLoop()
	defer loop.Close()

	p := property.NewLive(0, property.WithDispatcher(loop))
	rec := &recorder[int]{}
	conn := p.Observe(rec.record)
	defer conn.Cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.PostValue(1)
		p.PostValue(2)
	}()
	<-done

	_, err := loop.Drain()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, rec.values)
}

func TestPostValueKeepsConditionalSemantics(t *testing.T) {
	loop := dispatch.NewLoop()
	defer loop.Close()

	p := property.NewLive(0, property.WithDispatcher(loop))
	rec := &recorder[int]{}
	conn := p.Observe(rec.record)
	defer conn.Cancel()

	p.PostValue(0)
	p.PostValue(5)
	p.PostValue(5)
	p.PostValueForced(5)

	n, err := loop.Drain()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []int{5, 5}, rec.values)
}

func TestPostValueUsesDefaultDispatcherAtPostTime(t *testing.T) {
	p := property.NewLive("")
	rec := &recorder[string]{}
	conn := p.Observe(rec.record)
	defer conn.Cancel()

	p.PostValue("inline")
	assert.Equal(t, []string{"inline"}, rec.values)

	loop := dispatch.NewLoop()
	defer loop.Close()
	restore := dispatch.SetDefault(loop)
	defer restore()

	p.PostValue("queued")
	assert.Equal(t, "inline", p.Value())
	assert.Equal(t, 1, loop.Pending())

	_, err := loop.Drain()
	require.NoError(t, err)
	assert.Equal(t, []string{"inline", "queued"}, rec.values)
}

func TestPostAfterLoopClosedFallsBackInline(t *testing.T) {
	loop := dispatch.NewLoop()
	p := property.NewLive(0, property.WithDispatcher(loop))
	rec := &recorder[int]{}
	conn := p.Observe(rec.record)
	defer conn.Cancel()

	p.PostValue(1)
	require.NoError(t, loop.Close())
	assert.Empty(t, rec.values, "pending post is discarded")

	p.PostValue(2)
	assert.Equal(t, []int{2}, rec.values)
}

func TestCancelDoesNotRetractPendingPost(t *testing.T) {
	loop := dispatch.NewLoop()
	defer loop.Close()

	p := property.NewLive(0, property.WithDispatcher(loop))
	rec := &recorder[int]{}
	conn := p.Observe(rec.record)

	p.PostValue(9)
	conn.Cancel()

	_, err := loop.Drain()
	require.NoError(t, err)
	assert.Empty(t, rec.values)
	assert.Equal(t, 9, p.Value())
}

func TestPostUpdateFromManyGoroutines(t *testing.T) {
	loop := dispatch.NewLoop()
	p := property.NewLive(0, property.WithDispatcher(loop))

	notified := 0
	conn := p.Observe(func(int) { notified++ })
	defer conn.Cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- loop.Run(context.Background()) }()

	const workers, perWorker = 16, 100
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				p.PostUpdate(func(v int) int { return v + 1 })
			}
		}()
	}
	wg.Wait()
	loop.TrySubmit(func() { loop.Close() })

	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not finish")
	}

	assert.Equal(t, workers*perWorker, p.Value())
	assert.Equal(t, workers*perWorker, notified)
}

func TestLiveOnRunningLoop(t *testing.T) {
	loop := dispatch.NewLoop()
	p := property.NewLive(0, property.WithDispatcher(loop))

	loopGoroutine := make(chan int64, 1)
	var ranOn []int64
	var got []int
	conn := p.Observe(func(v int) {
		ranOn = append(ranOn, goid.Get())
		got = append(got, v)
	})
	defer conn.Cancel()

	runDone := make(chan error, 1)
	go func() {
		loopGoroutine <- goid.Get()
		runDone <- loop.Run(context.Background())
	}()

	const workers = 4
	var wg sync.WaitGroup
	for w := 1; w <= workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.PostValueForced(w)
		}()
	}
	wg.Wait()
	loop.TrySubmit(func() { loop.Close() })
	require.NoError(t, <-runDone)

	id := <-loopGoroutine
	require.Len(t, ranOn, workers)
	for _, r := range ranOn {
		assert.Equal(t, id, r)
	}
	assert.ElementsMatch(t, []int{1, 2, 3, 4}, got)
}

func TestZeroValueLive(t *testing.T) {
	var p property.Live[map[string]int]
	rec := &recorder[map[string]int]{}
	conn := p.Observe(rec.record)
	defer conn.Cancel()

	p.PostValue(map[string]int{"a": 1})
	p.PostValue(map[string]int{"a": 1})
	assert.Len(t, rec.values, 1)
}
