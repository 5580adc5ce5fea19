package uiloop

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestLoopRunsTasksInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := New()
	defer l.Close()

	var got []int
	for i := 0; i < 50; i++ {
		i := i
		require.True(t, l.Post(func() { got = append(got, i) }))
	}
	var snapshot []int
	require.True(t, l.Do(func() { snapshot = append(snapshot, got...) }))
	require.Len(t, snapshot, 50)
	for i, v := range snapshot {
		assert.Equal(t, i, v)
	}
}

func TestLoopSelfPostDoesNotDeadlock(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := New()
	defer l.Close()

	done := make(chan struct{})
	l.Post(func() {
		l.Post(func() { close(done) })
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("nested post never ran")
	}
}

func TestLoopDelayedAndStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := New()
	defer l.Close()

	fired := make(chan struct{}, 2)
	l.PostDelayed(10*time.Millisecond, func() { fired <- struct{}{} })
	stopped := l.PostDelayed(10*time.Millisecond, func() { fired <- struct{}{} })
	assert.True(t, stopped.Stop())
	assert.False(t, stopped.Stop())

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("delayed task never ran")
	}
	select {
	case <-fired:
		t.Fatal("stopped task ran")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLoopRecoversPanics(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := New()
	defer l.Close()

	l.Post(func() { panic("boom") })
	ok := false
	require.True(t, l.Do(func() { ok = true }))
	assert.True(t, ok)
}

func TestLoopCloseRejectsPosts(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := New()
	l.Close()
	l.Close()
	assert.False(t, l.Post(func() {}))
	assert.False(t, l.Do(func() {}))
}

func TestManualAdvanceFiresInOrder(t *testing.T) {
	m := NewManual()
	var got []string
	m.PostDelayed(300*time.Millisecond, func() { got = append(got, "c") })
	m.PostDelayed(100*time.Millisecond, func() { got = append(got, "a") })
	m.PostDelayed(100*time.Millisecond, func() {
		got = append(got, "b")
		m.Post(func() { got = append(got, "b-posted") })
	})
	start := m.Now()

	m.Advance(99 * time.Millisecond)
	assert.Empty(t, got)

	m.Advance(time.Millisecond)
	assert.Equal(t, []string{"a", "b", "b-posted"}, got)
	assert.Equal(t, 1, m.PendingTimers())

	m.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "b-posted", "c"}, got)
	assert.Equal(t, start.Add(1100*time.Millisecond), m.Now())
}

func TestManualTimerScheduledDuringAdvance(t *testing.T) {
	m := NewManual()
	var at []time.Duration
	start := m.Now()
	m.PostDelayed(50*time.Millisecond, func() {
		at = append(at, m.Now().Sub(start))
		m.PostDelayed(50*time.Millisecond, func() { at = append(at, m.Now().Sub(start)) })
	})
	m.Advance(time.Second)
	assert.Equal(t, []time.Duration{50 * time.Millisecond, 100 * time.Millisecond}, at)
}

func TestManualStopAndClose(t *testing.T) {
	m := NewManual()
	ran := false
	tm := m.PostDelayed(time.Millisecond, func() { ran = true })
	tm.Stop()
	m.Advance(time.Second)
	assert.False(t, ran)
	assert.Zero(t, m.PendingTimers())

	m.Close()
	assert.False(t, m.Post(func() {}))
	assert.False(t, m.PostDelayed(0, func() {}).Pending())
}

func TestManualConcurrentPosts(t *testing.T) {
	m := NewManual()
	var wg sync.WaitGroup
	count := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Post(func() { count++ })
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, m.RunPending())
	assert.Equal(t, 20, count)
}

func TestNilTimer(t *testing.T) {
	var tm *Timer
	assert.False(t, tm.Stop())
	assert.False(t, tm.Pending())
}
