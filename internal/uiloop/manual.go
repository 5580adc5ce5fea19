package uiloop

import (
	"sort"
	"sync"
	"time"
)

// Manual is a deterministic Scheduler driven by the caller. Tasks run only
// inside RunPending or Advance, on the calling goroutine.
type Manual struct {
	mu     sync.Mutex
	runMu  sync.Mutex
	now    time.Time
	seq    int
	queue  []func()
	timers []*manualTimer
	closed bool
}

type manualTimer struct {
	when  time.Time
	seq   int
	timer *Timer
	run   func()
}

// NewManual returns a Manual clock starting at an arbitrary fixed instant.
func NewManual() *Manual {
	return &Manual{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Post implements Scheduler.
func (m *Manual) Post(fn func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.queue = append(m.queue, fn)
	return true
}

// PostDelayed implements Scheduler.
func (m *Manual) PostDelayed(d time.Duration, fn func()) *Timer {
	t := &Timer{}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		t.cancelled.Store(true)
		return t
	}
	m.seq++
	m.timers = append(m.timers, &manualTimer{when: m.now.Add(d), seq: m.seq, timer: t, run: t.wrap(fn)})
	return t
}

// Now implements Scheduler.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// RunPending runs queued tasks, including ones queued while running, and
// returns how many ran. Timers are not advanced.
func (m *Manual) RunPending() int {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	return m.drain()
}

func (m *Manual) drain() int {
	n := 0
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return n
		}
		fn := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		safeRun(fn)
		n++
	}
}

// Advance moves the clock forward by d, firing due timers in order and
// draining the queue after each.
func (m *Manual) Advance(d time.Duration) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	m.drain()
	for {
		m.mu.Lock()
		next := m.nextDue(target)
		if next == nil {
			m.now = target
			m.mu.Unlock()
			break
		}
		m.now = next.when
		m.mu.Unlock()
		safeRun(next.run)
		m.drain()
	}
	m.drain()
}

// nextDue pops the earliest live timer due at or before target. Callers hold mu.
func (m *Manual) nextDue(target time.Time) *manualTimer {
	live := m.timers[:0]
	for _, t := range m.timers {
		if t.timer.Pending() {
			live = append(live, t)
		}
	}
	m.timers = live
	if len(m.timers) == 0 {
		return nil
	}
	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].when.Equal(m.timers[j].when) {
			return m.timers[i].seq < m.timers[j].seq
		}
		return m.timers[i].when.Before(m.timers[j].when)
	})
	first := m.timers[0]
	if first.when.After(target) {
		return nil
	}
	m.timers = m.timers[1:]
	return first
}

// PendingTimers counts timers that have neither fired nor been stopped.
func (m *Manual) PendingTimers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if t.timer.Pending() {
			n++
		}
	}
	return n
}

// Close drops queued work; later posts are rejected.
func (m *Manual) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.queue = nil
	for _, t := range m.timers {
		t.timer.cancelled.Store(true)
	}
	m.timers = nil
}
