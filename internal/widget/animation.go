package widget

import (
	"math"
	"time"

	"github.com/neboloop/hitomi/internal/uiloop"
)

// animation drives a normalized 0..1 progress on the UI loop, one frame per
// tick. A cancelled animation never runs its completion.
type animation struct {
	sched     uiloop.Scheduler
	start     time.Time
	duration  time.Duration
	interval  time.Duration
	frame     func(t float64)
	onEnd     func()
	timer     *uiloop.Timer
	cancelled bool
}

func startAnimation(s uiloop.Scheduler, d, interval time.Duration, frame func(float64), onEnd func()) *animation {
	a := &animation{
		sched:    s,
		start:    s.Now(),
		duration: d,
		interval: interval,
		frame:    frame,
		onEnd:    onEnd,
	}
	a.timer = s.PostDelayed(interval, a.step)
	return a
}

func (a *animation) step() {
	if a.cancelled {
		return
	}
	t := 1.0
	if a.duration > 0 {
		t = math.Min(1, float64(a.sched.Now().Sub(a.start))/float64(a.duration))
	}
	a.frame(t)
	if a.cancelled {
		return
	}
	if t < 1 {
		a.timer = a.sched.PostDelayed(a.interval, a.step)
		return
	}
	if a.onEnd != nil {
		a.onEnd()
	}
}

func (a *animation) cancel() {
	if a == nil {
		return
	}
	a.cancelled = true
	a.timer.Stop()
}

// travelDuration scales with distance: 170ms + 0.7ms/px, kept in [lo, hi].
func travelDuration(distance float64, lo, hi time.Duration) time.Duration {
	d := 170*time.Millisecond + time.Duration(distance*0.7*float64(time.Millisecond))
	return min(max(d, lo), hi)
}

// travelArcDP is the arc height in dp for a travel of the given pixel distance.
func travelArcDP(distance float64) float64 {
	return math.Max(18, math.Min(42, math.Round(distance/10)))
}

// arc is the parabolic-looking vertical offset at progress t.
func arc(t, amplitude float64) float64 {
	return math.Sin(math.Pi*t) * amplitude
}
