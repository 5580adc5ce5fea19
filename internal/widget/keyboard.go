package widget

import (
	"math"

	"github.com/neboloop/hitomi/internal/geometry"
)

// keyboard estimates the keyboard's top boundary: the system inset when
// available, else the visible display frame, else a fixed guess.
func (w *Widget) keyboard() Keyboard {
	screenH := w.frame.Screen.H
	kb := Keyboard{Top: screenH - w.frame.Px(keyboardGuessDP)}
	if w.probe == nil {
		return kb
	}
	if inset, ok := w.probe.ImeInset(); ok && inset > 0 {
		kb.Inset = inset
		kb.Top = screenH - inset
		return kb
	}
	if bottom, ok := w.probe.VisibleFrameBottom(); ok && bottom > 0 && bottom < screenH {
		kb.Top = bottom
	}
	return kb
}

// keyboardOpen applies the same slack the lift logic uses.
func (w *Widget) keyboardOpen(kb Keyboard) bool {
	return kb.Top < w.frame.Screen.H-w.frame.Px(keyboardSlackDP)
}

// ScheduleKeyboardAvoidance re-checks the keyboard at each configured delay.
func (w *Widget) ScheduleKeyboardAvoidance() {
	for _, d := range w.timing.KeyboardChecks {
		w.later(d, w.EnsureKeyboardAvoidance)
	}
}

// LayoutChanged is the hook for inset or layout changes while the bubble
// input has focus.
func (w *Widget) LayoutChanged() {
	if !w.bubble.Visible || !w.inputFocused {
		return
	}
	if w.state.Dragging() {
		w.ScheduleKeyboardAvoidance()
		return
	}
	if w.keyboardOpen(w.keyboard()) {
		w.EnsureKeyboardAvoidance()
	}
}

// EnsureKeyboardAvoidance lifts the widget when the widget or its bubble
// extends below the keyboard. The pre-lift Y is recorded once per lift.
// While dragging, the check is re-queued instead.
func (w *Widget) EnsureKeyboardAvoidance() {
	if w.closed || !w.bubble.Visible || !w.inputFocused {
		return
	}
	if w.state.Mode == ModeHidden || w.state.Mode.Traveling() {
		return
	}
	if w.state.Dragging() {
		w.later(w.timing.DragRetry, w.EnsureKeyboardAvoidance)
		return
	}
	kb := w.keyboard()
	if !w.keyboardOpen(kb) {
		return
	}
	w.positionBubble()
	w.render()

	bottom := w.state.Pos.Y + w.frame.Box().H
	bottom = max(bottom, w.bubble.Pos.Y+w.bubbleHeight())
	if bottom <= kb.Top {
		return
	}
	lift := bottom - kb.Top + w.frame.Px(liftMarginDP)
	if w.bubble.TailOnTop {
		lift += int(math.Round(float64(w.frame.Screen.H) * tailUpExtraFactor))
	}
	target := geometry.Clamp(w.state.Pos.Y-lift, 0, w.frame.MaxWidgetY())
	if !w.lift.Active {
		w.lift = KeyboardLift{Active: true, OriginalY: w.state.Pos.Y}
	}
	w.hopTo(target)
}

// RestoreFromKeyboardLift returns the widget to its pre-lift Y.
func (w *Widget) RestoreFromKeyboardLift(animated bool) {
	if !w.lift.Active {
		return
	}
	target := w.lift.OriginalY
	w.lift = KeyboardLift{}
	if animated {
		w.hopTo(target)
		return
	}
	w.hop.cancel()
	w.state.Pos.Y = geometry.Clamp(target, 0, w.frame.MaxWidgetY())
	w.Reposition()
}
