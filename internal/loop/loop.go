// Package loop provides the dashboard's single callback queue.
//
// Every mutation of view state is posted to a Loop and executed, one at a
// time and in arrival order, on the goroutine that called Run. Timers post
// their callback to the same queue when they fire, so a timer never runs
// concurrently with a message handler.
package loop

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Loop runs posted callbacks sequentially.
type Loop struct {
	queue  *Queue[func()]
	logger *slog.Logger

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	closed bool

	processed atomic.Int64
	panics    atomic.Int64
}

// Stats contains loop statistics.
type Stats struct {
	Pending   int
	Processed int64
	Panics    int64
	Timers    int
}

// New creates a Loop.
func New(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		queue:  NewQueue[func()](64),
		logger: logger,
		timers: make(map[*time.Timer]struct{}),
	}
}

// Post enqueues fn. Returns false if the loop is closed.
func (l *Loop) Post(fn func()) bool {
	return l.queue.Push(fn)
}

// AfterFunc posts fn to the loop once d has elapsed. Closing the loop
// stops pending timers.
func (l *Loop) AfterFunc(d time.Duration, fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		l.mu.Lock()
		delete(l.timers, timer)
		l.mu.Unlock()

		l.Post(fn)
	})
	l.timers[timer] = struct{}{}
}

// Run executes callbacks until the loop is closed or ctx is done.
// Callbacks already queued when the loop closes are still executed.
func (l *Loop) Run(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		select {
		case <-ctx.Done():
			l.Close()
		case <-stop:
		}
	}()

	for {
		fn, ok := l.queue.Pop()
		if !ok {
			return ctx.Err()
		}
		l.execute(fn)
	}
}

// execute runs fn, containing any panic so one bad update cannot stop the loop.
func (l *Loop) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.panics.Add(1)
			l.logger.Error("callback panicked", "panic", r)
		}
	}()

	fn()
	l.processed.Add(1)
}

// Close stops accepting callbacks and cancels pending timers.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	for timer := range l.timers {
		timer.Stop()
	}
	l.timers = nil
	l.mu.Unlock()

	l.queue.Close()
}

// Stats returns current statistics.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	timers := len(l.timers)
	l.mu.Unlock()

	return Stats{
		Pending:   l.queue.Len(),
		Processed: l.processed.Load(),
		Panics:    l.panics.Load(),
		Timers:    timers,
	}
}
