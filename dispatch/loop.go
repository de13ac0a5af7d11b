package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/petermattis/goid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrRunning is returned when another goroutine is already processing
	// the loop.
	ErrRunning = errors.New("dispatch: loop is already being processed")

	// ErrClosed is returned by Run on a closed loop.
	ErrClosed = errors.New("dispatch: loop is closed")
)

// Loop is an in-process main execution context. Any goroutine may submit
// tasks; they run one at a time, in submission order, on whichever goroutine
// is processing the loop with Run or Drain. Only one goroutine processes the
// loop at a time.
//
// A Loop is active from NewLoop until Close. Tasks submitted before anyone
// processes the loop wait in the queue. Close discards pending tasks, and
// TrySubmit refuses new ones afterwards, so Submit falls back to running them
// inline. Anything captured by a discarded task is never touched again;
// posting to a value whose owner is being torn down is the caller's problem.
type Loop struct {
	mu     sync.Mutex // guards queue, closed and the pending gauge
	queue  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}

	runMu sync.Mutex
	owner atomic.Int64

	logger  *slog.Logger
	metrics *loopMetrics
	tracer  trace.Tracer
}

// NewLoop returns an active loop.
func NewLoop(opts ...LoopOption) *Loop {
	cfg := defaultLoopConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Loop{
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		logger:  cfg.logger,
		metrics: newLoopMetrics(cfg),
		tracer:  cfg.tracerProvider.Tracer(tracerName),
	}
}

// TrySubmit queues task and returns true, or returns false once the loop is
// closed. It never blocks. A nil task is accepted and ignored.
func (l *Loop) TrySubmit(task func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	if task == nil {
		l.mu.Unlock()
		return true
	}
	l.queue = append(l.queue, task)
	l.metrics.pending.Inc()
	l.mu.Unlock()

	l.metrics.submitted.Inc()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Run processes tasks on the calling goroutine until ctx is done or the loop
// is closed. It returns ctx.Err() in the first case and nil in the second.
func (l *Loop) Run(ctx context.Context) error {
	if !l.runMu.TryLock() {
		return ErrRunning
	}
	defer l.runMu.Unlock()

	if l.isClosed() {
		return ErrClosed
	}

	l.owner.Store(goid.Get())
	defer l.owner.Store(0)

	for {
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			task, ok := l.next()
			if !ok {
				break
			}
			l.execute(ctx, task)
		}

		select {
		case <-l.wake:
		case <-l.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunFor runs the loop for at most d. Reaching the deadline is not an error.
func (l *Loop) RunFor(d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	err := l.Run(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// Drain runs queued tasks on the calling goroutine until the queue is empty,
// including tasks queued by the tasks it runs, and returns how many ran.
func (l *Loop) Drain() (int, error) {
	if !l.runMu.TryLock() {
		return 0, ErrRunning
	}
	defer l.runMu.Unlock()

	l.owner.Store(goid.Get())
	defer l.owner.Store(0)

	ctx := context.Background()
	n := 0
	for {
		task, ok := l.next()
		if !ok {
			return n, nil
		}
		l.execute(ctx, task)
		n++
	}
}

// Close stops the loop from accepting tasks and discards the pending ones.
// A Run in progress returns after its current task. Close is idempotent.
func (l *Loop) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	dropped := len(l.queue)
	l.queue = nil
	l.metrics.pending.Sub(float64(dropped))
	close(l.done)
	l.mu.Unlock()

	if dropped > 0 {
		l.metrics.dropped.Add(float64(dropped))
		l.logger.Warn("dispatch loop closed with pending tasks", "dropped", dropped)
	}
	return nil
}

// IsMainContext reports whether the caller is the goroutine currently
// processing the loop.
func (l *Loop) IsMainContext() bool {
	id := l.owner.Load()
	return id != 0 && id == goid.Get()
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Done is closed when the loop is closed.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) == 0 {
		return nil, false
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	if len(l.queue) == 0 {
		l.queue = nil
	}
	l.metrics.pending.Dec()
	return task, true
}

// execute runs a single task. A panic is recovered and logged.
func (l *Loop) execute(ctx context.Context, task func()) {
	_, span := l.tracer.Start(ctx, "dispatch.task")
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			l.metrics.panics.Inc()
			span.SetStatus(codes.Error, fmt.Sprint(r))
			l.logger.Error("dispatch panic",
				"panic", r,
				"stack", string(debug.Stack()))
		}
		l.metrics.duration.Observe(time.Since(start).Seconds())
		l.metrics.executed.Inc()
		span.End()
	}()

	task()
}
