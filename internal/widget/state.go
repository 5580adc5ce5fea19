package widget

import "github.com/neboloop/hitomi/internal/geometry"

// Mode is the widget's motion state. Dragging and being hidden at an edge
// are distinct modes, so the two can never hold at once.
type Mode int

const (
	ModeResting Mode = iota
	ModeDragging
	ModeHiding
	ModeHidden
	ModeRestoring
)

func (m Mode) String() string {
	switch m {
	case ModeResting:
		return "resting"
	case ModeDragging:
		return "dragging"
	case ModeHiding:
		return "hiding"
	case ModeHidden:
		return "hidden"
	case ModeRestoring:
		return "restoring"
	default:
		return "unknown"
	}
}

// Traveling is true while a hide or restore animation is moving the widget
// and its X may lie off screen.
func (m Mode) Traveling() bool { return m == ModeHiding || m == ModeRestoring }

// State is the authoritative widget state.
type State struct {
	Pos          geometry.Point
	Mode         Mode
	HiddenRight  bool
	Restore      *geometry.Point
	QuickActions bool
}

// Dragging reports whether a drag gesture owns the widget.
func (s State) Dragging() bool { return s.Mode == ModeDragging }

// HiddenAtEdge reports whether the widget is parked behind its edge tab.
func (s State) HiddenAtEdge() bool { return s.Mode == ModeHidden }

// BubbleState is derived from State, the measured bubble height and the
// keyboard; it is never authoritative on its own.
type BubbleState struct {
	Visible   bool
	Pos       geometry.Point
	TailOnTop bool
	TailShift int
}

// KeyboardLift remembers where the widget was before the keyboard pushed it
// up. OriginalY is meaningful only while Active.
type KeyboardLift struct {
	Active    bool
	OriginalY int
}

// EdgeTab is the restore handle shown while the widget is hidden.
type EdgeTab struct {
	Visible bool
	Pos     geometry.Point
}

// Layout is everything a Surface needs to draw one frame.
type Layout struct {
	Widget          State
	WidgetVisible   bool
	Bubble          BubbleState
	EdgeTab         EdgeTab
	InputFocused    bool
	PinnedMic       bool
	HideTowardRight bool
}

// Surface draws the widget family. Render is called on the UI loop after
// every state change, synchronously.
type Surface interface {
	Render(Layout)
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func(Layout)

// Render implements Surface.
func (f SurfaceFunc) Render(l Layout) { f(l) }
