// Package widget owns the floating widget family: the widget itself, its
// chat bubble, the edge tab, keyboard avoidance and gesture handling. All
// methods must be called on the UI loop.
package widget

import (
	"math"
	"time"

	"github.com/neboloop/hitomi/internal/geometry"
	"github.com/neboloop/hitomi/internal/logging"
	"github.com/neboloop/hitomi/internal/uiloop"
)

// Timing holds the gesture and animation timings.
type Timing struct {
	LongPress      time.Duration
	DragThreshold  int
	KeyboardChecks []time.Duration
	DragRetry      time.Duration
	BubbleSettle   time.Duration
	Hop            time.Duration
	TravelMin      time.Duration
	TravelMax      time.Duration
	FrameInterval  time.Duration
}

// DefaultTiming returns the stock timings.
func DefaultTiming() Timing {
	return Timing{
		LongPress:      420 * time.Millisecond,
		DragThreshold:  8,
		KeyboardChecks: []time.Duration{80 * time.Millisecond, 220 * time.Millisecond},
		DragRetry:      120 * time.Millisecond,
		BubbleSettle:   120 * time.Millisecond,
		Hop:            260 * time.Millisecond,
		TravelMin:      180 * time.Millisecond,
		TravelMax:      420 * time.Millisecond,
		FrameInterval:  16 * time.Millisecond,
	}
}

// KeyboardProbe reports where the on-screen keyboard is. Either method may
// report ok=false when the platform cannot answer.
type KeyboardProbe interface {
	ImeInset() (inset int, ok bool)
	VisibleFrameBottom() (bottom int, ok bool)
}

// Options configures a Widget.
type Options struct {
	Scheduler uiloop.Scheduler
	Frame     Frame
	Surface   Surface
	Keyboard  KeyboardProbe
	// MeasureBubble returns the bubble's laid-out height in pixels; values
	// <= 0 fall back to the default height.
	MeasureBubble func() int
	Timing        Timing
	// Start is the initial position; zero means Frame.Home().
	Start *geometry.Point
}

// Widget is the widget family's state machine.
type Widget struct {
	sched   uiloop.Scheduler
	frame   Frame
	surface Surface
	probe   KeyboardProbe
	measure func() int
	timing  Timing

	state        State
	bubble       BubbleState
	lift         KeyboardLift
	inputFocused bool
	listening    bool
	edgeTab      EdgeTab

	hop     *animation
	travel  *animation
	pending []*uiloop.Timer
	closed  bool
}

// New builds a widget at its start position and renders it once.
func New(opts Options) *Widget {
	if opts.Timing.LongPress == 0 {
		opts.Timing = DefaultTiming()
	}
	if opts.Surface == nil {
		opts.Surface = SurfaceFunc(func(Layout) {})
	}
	w := &Widget{
		sched:   opts.Scheduler,
		frame:   opts.Frame,
		surface: opts.Surface,
		probe:   opts.Keyboard,
		measure: opts.MeasureBubble,
		timing:  opts.Timing,
	}
	start := w.frame.Home()
	if opts.Start != nil {
		start = *opts.Start
	}
	w.state.Pos = w.frame.ClampWidget(start)
	w.render()
	return w
}

// State returns a copy of the widget state.
func (w *Widget) State() State { return w.state }

// Bubble returns the current bubble placement.
func (w *Widget) Bubble() BubbleState { return w.bubble }

// Lift returns the keyboard lift bookkeeping.
func (w *Widget) Lift() KeyboardLift { return w.lift }

// Frame returns the screen frame.
func (w *Widget) Frame() Frame { return w.frame }

// BubbleVisible reports whether the chat bubble is showing.
func (w *Widget) BubbleVisible() bool { return w.bubble.Visible }

// InputFocused reports whether the bubble's text input has focus.
func (w *Widget) InputFocused() bool { return w.inputFocused }

// Layout returns what the surface was last asked to draw.
func (w *Widget) Layout() Layout {
	return Layout{
		Widget:          w.state,
		WidgetVisible:   w.state.Mode != ModeHidden,
		Bubble:          w.bubble,
		EdgeTab:         w.edgeTab,
		InputFocused:    w.inputFocused,
		PinnedMic:       w.listening && !w.state.QuickActions && w.state.Mode != ModeHidden,
		HideTowardRight: w.frame.CloserToRight(w.state.Pos),
	}
}

func (w *Widget) render() {
	if w.closed {
		return
	}
	w.surface.Render(w.Layout())
}

func (w *Widget) bubbleHeight() int {
	if w.measure != nil {
		if h := w.measure(); h > 0 {
			return h
		}
	}
	return w.frame.Px(BubbleHeightDP)
}

// positionBubble re-derives the bubble from the widget. It is a no-op while
// the widget is hidden.
func (w *Widget) positionBubble() {
	if w.state.Mode == ModeHidden {
		return
	}
	p := w.frame.PlaceBubble(w.state.Pos, w.bubbleHeight(), w.keyboard())
	w.bubble.Pos = p.Pos
	w.bubble.TailOnTop = p.TailOnTop
	w.bubble.TailShift = p.TailShift
}

// positionEdgeTab keeps the edge tab aligned with the widget.
func (w *Widget) positionEdgeTab() {
	w.edgeTab.Pos = w.frame.PlaceEdgeTab(w.state.Pos, w.state.HiddenRight)
}

// Reposition re-runs placement for the whole family and renders.
func (w *Widget) Reposition() {
	w.positionBubble()
	w.positionEdgeTab()
	w.render()
}

// MoveTo places the widget at p clamped on screen and updates everything
// attached to it synchronously.
func (w *Widget) MoveTo(p geometry.Point) {
	if w.state.Mode == ModeHidden || w.state.Mode.Traveling() {
		return
	}
	w.state.Pos = w.frame.ClampWidget(p)
	w.Reposition()
}

// SetDragging enters or leaves the dragging mode. Entering is only possible
// from rest; it cancels a running keyboard hop so the two never fight.
func (w *Widget) SetDragging(on bool) {
	switch {
	case on && w.state.Mode == ModeResting:
		w.hop.cancel()
		w.hop = nil
		w.state.Mode = ModeDragging
	case !on && w.state.Mode == ModeDragging:
		w.state.Mode = ModeResting
	}
}

// SetListening updates the pinned mic indicator.
func (w *Widget) SetListening(on bool) {
	if w.listening == on {
		return
	}
	w.listening = on
	w.render()
}

// ShowQuickActions opens or closes the quick-action row. The widget shifts
// left while the row is open so the buttons stay on screen.
func (w *Widget) ShowQuickActions(show bool) {
	if w.state.QuickActions == show || w.state.Mode == ModeHidden {
		return
	}
	w.state.QuickActions = show
	shift := w.frame.Px(QuickActionDP)
	if show {
		shift = -shift
	}
	w.state.Pos.X = geometry.Clamp(w.state.Pos.X+shift, 0, geometry.MaxOrigin(w.frame.Screen.W, w.frame.Box().W))
	w.Reposition()
}

// ToggleBubble shows or hides the chat bubble. Showing it while the widget
// is hidden restores the widget instead.
func (w *Widget) ToggleBubble(show bool) {
	if show && w.state.Mode == ModeHidden {
		w.RestoreFromEdge()
		return
	}
	w.bubble.Visible = show
	if show {
		w.ShowQuickActions(false)
		w.positionBubble()
		w.render()
		w.FocusInput()
		w.later(0, w.EnsureKeyboardAvoidance)
		w.later(w.timing.BubbleSettle, w.EnsureKeyboardAvoidance)
		return
	}
	w.inputFocused = false
	w.render()
	w.RestoreFromKeyboardLift(true)
}

// FocusInput gives the bubble input focus and starts keyboard rechecks.
func (w *Widget) FocusInput() {
	if !w.bubble.Visible {
		return
	}
	w.inputFocused = true
	w.render()
	w.ScheduleKeyboardAvoidance()
}

// BlurInput drops input focus and lowers the widget back to where it was.
func (w *Widget) BlurInput() {
	if !w.inputFocused {
		return
	}
	w.inputFocused = false
	w.render()
	w.RestoreFromKeyboardLift(true)
}

// later schedules fn and keeps its handle so Close can cancel it.
func (w *Widget) later(d time.Duration, fn func()) {
	if w.closed {
		return
	}
	live := w.pending[:0]
	for _, t := range w.pending {
		if t.Pending() {
			live = append(live, t)
		}
	}
	w.pending = append(live, w.sched.PostDelayed(d, fn))
}

// hopTo animates the widget's Y along an arc; each frame stays on screen.
func (w *Widget) hopTo(targetY int) {
	startY := w.state.Pos.Y
	if startY == targetY {
		return
	}
	w.hop.cancel()
	delta := float64(targetY - startY)
	amp := w.frame.Density.PxF(hopArcDP)
	w.hop = startAnimation(w.sched, w.timing.Hop, w.timing.FrameInterval, func(t float64) {
		y := int(math.Round(float64(startY) + delta*t - arc(t, amp)))
		w.state.Pos.Y = geometry.Clamp(y, 0, w.frame.MaxWidgetY())
		w.Reposition()
	}, nil)
}

// travelTo animates both axes. With offscreenX the X coordinate is not
// clamped so the widget can slide past an edge.
func (w *Widget) travelTo(target geometry.Point, offscreenX bool, onEnd func()) {
	w.travel.cancel()
	start := w.state.Pos
	if start == target {
		if onEnd != nil {
			onEnd()
		}
		return
	}
	dx := float64(target.X - start.X)
	dy := float64(target.Y - start.Y)
	dist := math.Hypot(dx, dy)
	amp := w.frame.Density.PxF(travelArcDP(dist))
	d := travelDuration(dist, w.timing.TravelMin, w.timing.TravelMax)
	w.travel = startAnimation(w.sched, d, w.timing.FrameInterval, func(t float64) {
		x := int(math.Round(float64(start.X) + dx*t))
		if !offscreenX {
			x = geometry.Clamp(x, 0, geometry.MaxOrigin(w.frame.Screen.W, w.frame.Box().W))
		}
		y := int(math.Round(float64(start.Y) + dy*t - arc(t, amp)))
		w.state.Pos = geometry.Point{X: x, Y: geometry.Clamp(y, 0, w.frame.MaxWidgetY())}
		w.Reposition()
	}, onEnd)
}

// Close cancels animations and scheduled rechecks. Nothing renders after.
func (w *Widget) Close() {
	w.hop.cancel()
	w.travel.cancel()
	for _, t := range w.pending {
		t.Stop()
	}
	w.pending = nil
	w.closed = true
	logging.Debugf("[widget] closed at %+v", w.state.Pos)
}
