// Package uiloop provides the single-threaded event context that owns all
// widget, speech and browser state. Work from other goroutines reaches that
// state only by posting closures onto a Scheduler.
package uiloop

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/neboloop/hitomi/internal/crashlog"
)

// Scheduler runs closures one at a time on a single logical thread.
type Scheduler interface {
	// Post queues fn. It returns false when the scheduler has shut down and
	// fn will never run.
	Post(fn func()) bool
	// PostDelayed runs fn after d unless the returned timer is stopped first.
	PostDelayed(d time.Duration, fn func()) *Timer
	// Now is the scheduler's clock.
	Now() time.Time
}

// Timer is a cancellable delayed task. A nil Timer is valid and inert.
type Timer struct {
	cancelled atomic.Bool
	fired     atomic.Bool
	halt      func()
}

// Stop prevents the task from running. It reports whether the task was still
// pending.
func (t *Timer) Stop() bool {
	if t == nil {
		return false
	}
	if t.fired.Load() || t.cancelled.Swap(true) {
		return false
	}
	if t.halt != nil {
		t.halt()
	}
	return true
}

// Pending reports whether the task has neither run nor been stopped.
func (t *Timer) Pending() bool {
	return t != nil && !t.fired.Load() && !t.cancelled.Load()
}

func (t *Timer) wrap(fn func()) func() {
	return func() {
		if t.cancelled.Load() || t.fired.Swap(true) {
			return
		}
		fn()
	}
}

// safeRun keeps a panicking task from taking the loop down with it.
func safeRun(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			crashlog.LogPanic("uiloop", r, nil)
		}
	}()
	fn()
}

// Loop is a goroutine-backed Scheduler with an unbounded FIFO queue.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	done   chan struct{}
	closed bool
	exited chan struct{}
}

// New starts a loop goroutine.
func New() *Loop {
	l := &Loop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.exited)
	for {
		select {
		case <-l.done:
			return
		case <-l.wake:
		}
		for {
			l.mu.Lock()
			if l.closed || len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			fn := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()
			safeRun(fn)
		}
	}
}

// Post implements Scheduler.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// PostDelayed implements Scheduler.
func (l *Loop) PostDelayed(d time.Duration, fn func()) *Timer {
	t := &Timer{}
	run := t.wrap(fn)
	tm := time.AfterFunc(d, func() { l.Post(run) })
	t.halt = func() { tm.Stop() }
	return t
}

// Now implements Scheduler.
func (l *Loop) Now() time.Time { return time.Now() }

// Do runs fn on the loop and waits for it. It must not be called from the
// loop itself. It returns false if the loop is closed.
func (l *Loop) Do(fn func()) bool {
	ran := make(chan struct{})
	if !l.Post(func() {
		defer close(ran)
		fn()
	}) {
		return false
	}
	select {
	case <-ran:
		return true
	case <-l.exited:
		return false
	}
}

// Close stops the loop. Queued and future tasks are dropped.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.queue = nil
	l.mu.Unlock()
	close(l.done)
	<-l.exited
}
