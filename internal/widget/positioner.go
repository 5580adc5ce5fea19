package widget

import (
	"math"

	"github.com/neboloop/hitomi/internal/geometry"
)

// Layout constants in dp.
const (
	BoxDP             = 124
	BubbleWidthDP     = 260
	BubbleXOffsetDP   = 74
	BubbleGapDP       = 8
	BubbleHeightDP    = 220
	EdgeTabWidthDP    = 56
	EdgeTabHeightDP   = 112
	EdgeTabSliceDP    = 10
	QuickActionDP     = 24
	PaneWidthDP       = 240
	PaneHeightDP      = 190
	paneGapDP         = 10
	paneEdgeDP        = 8
	paneMarginDP      = 4
	paneLiftDP        = 24
	keyboardGapDP     = 6
	keyboardSlackDP   = 40
	keyboardGuessDP   = 270
	liftMarginDP      = 14
	hopArcDP          = 22
	tailMarginDP      = 16
	tailWidthDP       = 18
	offscreenPadDP    = 6
	homeXDP           = 18
	homeYDP           = 220
	belowThreshold    = 0.4
	tailUpExtraFactor = 0.06
)

// Frame is the screen the widget family is placed on.
type Frame struct {
	Density geometry.Density
	Screen  geometry.Size
}

// Px converts dp to pixels for this frame.
func (f Frame) Px(dp int) int { return f.Density.Px(dp) }

// Box is the widget's touch box.
func (f Frame) Box() geometry.Size {
	b := f.Px(BoxDP)
	return geometry.Size{W: b, H: b}
}

// ClampWidget keeps the widget box on screen.
func (f Frame) ClampWidget(p geometry.Point) geometry.Point {
	return geometry.ClampToScreen(p, f.Box(), f.Screen)
}

// MaxWidgetY is the largest on-screen widget Y.
func (f Frame) MaxWidgetY() int {
	return geometry.MaxOrigin(f.Screen.H, f.Box().H)
}

// Home is the default widget position.
func (f Frame) Home() geometry.Point {
	return geometry.Point{X: f.Px(homeXDP), Y: f.Px(homeYDP)}
}

// Keyboard describes the on-screen keyboard as last probed. Inset is the
// system-reported IME inset (0 when unknown or closed); Top is the estimated
// top boundary of the keyboard.
type Keyboard struct {
	Inset int
	Top   int
}

// Reported is true when the system inset API reported an open keyboard.
func (k Keyboard) Reported() bool { return k.Inset > 0 }

// BubblePlacement is where the bubble goes relative to the widget.
type BubblePlacement struct {
	Pos       geometry.Point
	TailOnTop bool
	// TailShift moves the tail horizontally from the bubble's center.
	TailShift int
}

// PlaceBubble positions the bubble below the widget when the widget's center
// sits in the top 40% of the screen, above it otherwise, and above it
// whenever the below slot would run into a reported keyboard.
func (f Frame) PlaceBubble(widget geometry.Point, bubbleH int, kb Keyboard) BubblePlacement {
	box := f.Box().H
	bubbleW := f.Px(BubbleWidthDP)
	gap := f.Px(BubbleGapDP)
	screenH := f.Screen.H

	centerY := widget.Y + box/2
	below := centerY < int(math.Round(float64(screenH)*belowThreshold))
	if kb.Reported() && below {
		if widget.Y+box+gap+bubbleH > kb.Top-f.Px(keyboardGapDP) {
			below = false
		}
	}
	y := widget.Y - bubbleH - gap
	if below {
		y = widget.Y + box + gap
	}

	x := geometry.Clamp(widget.X-f.Px(BubbleXOffsetDP), 0, geometry.MaxOrigin(f.Screen.W, bubbleW))
	bottomMax := geometry.MaxOrigin(screenH, bubbleH)
	if kb.Reported() && kb.Top < screenH-f.Px(keyboardSlackDP) {
		bottomMax = max(0, min(bottomMax, kb.Top-bubbleH-f.Px(keyboardGapDP)))
	}
	y = geometry.Clamp(y, 0, bottomMax)

	return BubblePlacement{
		Pos:       geometry.Point{X: x, Y: y},
		TailOnTop: below,
		TailShift: f.tailShift(widget.X, x),
	}
}

// tailShift re-centers the bubble tail on the widget's horizontal center,
// kept inside the bubble's margins.
func (f Frame) tailShift(widgetX, bubbleX int) int {
	bubbleW := f.Px(BubbleWidthDP)
	tailW := f.Px(tailWidthDP)
	target := widgetX + f.Box().W/2 - bubbleX
	lo := f.Px(tailMarginDP) + tailW/2
	hi := bubbleW - f.Px(tailMarginDP) - tailW/2
	return geometry.Clamp(target, lo, hi) - bubbleW/2
}

// PaneSize is the browser pane's default size.
func (f Frame) PaneSize() geometry.Size {
	return geometry.Size{W: f.Px(PaneWidthDP), H: f.Px(PaneHeightDP)}
}

// PlacePane puts the browser pane to the right of the widget, or to the left
// when that would overflow, slightly raised and clamped on screen.
func (f Frame) PlacePane(widget geometry.Point, pane geometry.Size) geometry.Point {
	if pane.W <= 0 || pane.H <= 0 {
		pane = f.PaneSize()
	}
	gap := f.Px(paneGapDP)
	x := widget.X + f.Box().W + gap
	if x+pane.W > f.Screen.W-f.Px(paneEdgeDP) {
		x = widget.X - pane.W - gap
	}
	margin := f.Px(paneMarginDP)
	x = geometry.Clamp(x, margin, max(margin, f.Screen.W-pane.W-margin))
	y := geometry.Clamp(widget.Y-f.Px(paneLiftDP), 0, geometry.MaxOrigin(f.Screen.H, pane.H))
	return geometry.Point{X: x, Y: y}
}

// ClampPane keeps a dragged pane on screen using its default size.
func (f Frame) ClampPane(p geometry.Point) geometry.Point {
	return geometry.ClampToScreen(p, f.PaneSize(), f.Screen)
}

// CloserToRight reports whether the widget's center is in the right half.
func (f Frame) CloserToRight(widget geometry.Point) bool {
	return widget.X+f.Box().W/2 >= f.Screen.W/2
}

// PlaceEdgeTab centers the restore tab on the widget's vertical span with
// only a sliver protruding from the chosen edge.
func (f Frame) PlaceEdgeTab(widget geometry.Point, right bool) geometry.Point {
	tabW, tabH := f.Px(EdgeTabWidthDP), f.Px(EdgeTabHeightDP)
	slice := f.Px(EdgeTabSliceDP)
	y := geometry.Clamp(widget.Y+(f.Box().H-tabH)/2, 0, geometry.MaxOrigin(f.Screen.H, tabH))
	x := -(tabW - slice)
	if right {
		x = f.Screen.W - slice
	}
	return geometry.Point{X: x, Y: y}
}

// OffscreenX is the X that parks the widget fully past the chosen edge.
func (f Frame) OffscreenX(right bool) int {
	if right {
		return f.Screen.W + f.Px(offscreenPadDP)
	}
	return -(f.Box().W + f.Px(offscreenPadDP))
}
