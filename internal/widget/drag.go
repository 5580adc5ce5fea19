package widget

import (
	"github.com/neboloop/hitomi/internal/geometry"
	"github.com/neboloop/hitomi/internal/uiloop"
)

// Action is a pointer event kind.
type Action int

const (
	ActionDown Action = iota
	ActionMove
	ActionUp
	ActionCancel
)

// PointerEvent is one raw touch sample. Raw coordinates are screen pixels;
// Local coordinates are relative to the widget's touch box.
type PointerEvent struct {
	Action Action
	RawX   float64
	RawY   float64
	LocalX float64
	LocalY float64
}

// HitTester decides whether a local point lands on a visible part of the
// widget image.
type HitTester interface {
	Opaque(x, y float64) bool
}

// DragController turns pointer events into drag, tap and long-press
// gestures on a Widget.
type DragController struct {
	w     *Widget
	hit   HitTester
	sched uiloop.Scheduler

	tracking    bool
	dragging    bool
	longPressed bool
	downX       float64
	downY       float64
	downPos     geometry.Point
	longPress   *uiloop.Timer
}

// NewDragController binds gestures to w. A nil hit tester treats the whole
// box as opaque.
func NewDragController(w *Widget, hit HitTester) *DragController {
	return &DragController{w: w, hit: hit, sched: w.sched}
}

// Handle processes ev and reports whether the gesture was claimed. Events
// that arrive without a claimed down are ignored.
func (d *DragController) Handle(ev PointerEvent) bool {
	switch ev.Action {
	case ActionDown:
		return d.down(ev)
	case ActionMove:
		if !d.tracking {
			return false
		}
		d.move(ev)
		return true
	case ActionUp:
		if !d.tracking {
			return false
		}
		d.up()
		return true
	case ActionCancel:
		if !d.tracking {
			return false
		}
		d.reset()
		return true
	}
	return false
}

func (d *DragController) down(ev PointerEvent) bool {
	if d.hit != nil && !d.hit.Opaque(ev.LocalX, ev.LocalY) {
		return false
	}
	mode := d.w.state.Mode
	if mode == ModeHidden || mode.Traveling() {
		return false
	}
	d.reset()
	d.tracking = true
	d.downX, d.downY = ev.RawX, ev.RawY
	d.downPos = d.w.state.Pos
	d.longPress = d.sched.PostDelayed(d.w.timing.LongPress, func() {
		if d.tracking && !d.dragging {
			d.longPressed = true
			d.w.ShowQuickActions(!d.w.state.QuickActions)
		}
	})
	return true
}

func (d *DragController) move(ev PointerEvent) {
	dx := int(ev.RawX - d.downX)
	dy := int(ev.RawY - d.downY)
	if !d.dragging {
		limit := d.w.timing.DragThreshold
		if abs(dx) <= limit && abs(dy) <= limit {
			return
		}
		d.longPress.Stop()
		if d.w.state.Mode != ModeResting {
			return
		}
		d.dragging = true
		if d.w.state.QuickActions {
			d.w.ShowQuickActions(false)
			// The row shift moved the widget; drag from where it is now.
			d.downPos = d.w.state.Pos
			d.downX, d.downY = ev.RawX, ev.RawY
			dx, dy = 0, 0
		}
		d.w.SetDragging(true)
	}
	d.w.MoveTo(d.downPos.Add(dx, dy))
}

func (d *DragController) up() {
	d.longPress.Stop()
	dragged, longPressed := d.dragging, d.longPressed
	d.reset()
	switch {
	case longPressed:
	case !dragged:
		if d.w.state.QuickActions {
			d.w.ShowQuickActions(false)
		} else {
			d.w.ToggleBubble(!d.w.bubble.Visible)
		}
	case d.w.bubble.Visible && d.w.inputFocused:
		d.w.ScheduleKeyboardAvoidance()
	}
}

func (d *DragController) reset() {
	d.longPress.Stop()
	d.longPress = nil
	if d.dragging {
		d.w.SetDragging(false)
	}
	d.tracking = false
	d.dragging = false
	d.longPressed = false
}

// Dragging reports whether a drag gesture is in progress.
func (d *DragController) Dragging() bool { return d.dragging }

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// PaneDrag moves the browser pane by its handle; it has no tap or long-press
// semantics.
type PaneDrag struct {
	frame    Frame
	tracking bool
	downX    float64
	downY    float64
	downPos  geometry.Point
}

// NewPaneDrag returns a pane drag handler for frame.
func NewPaneDrag(frame Frame) *PaneDrag { return &PaneDrag{frame: frame} }

// Handle returns the pane position after ev and whether ev was claimed.
func (p *PaneDrag) Handle(ev PointerEvent, current geometry.Point) (geometry.Point, bool) {
	switch ev.Action {
	case ActionDown:
		p.tracking = true
		p.downX, p.downY = ev.RawX, ev.RawY
		p.downPos = current
		return current, true
	case ActionMove:
		if !p.tracking {
			return current, false
		}
		next := p.downPos.Add(int(ev.RawX-p.downX), int(ev.RawY-p.downY))
		return p.frame.ClampPane(next), true
	case ActionUp, ActionCancel:
		claimed := p.tracking
		p.tracking = false
		return current, claimed
	}
	return current, false
}
