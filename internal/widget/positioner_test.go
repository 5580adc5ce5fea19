package widget

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/neboloop/hitomi/internal/geometry"
)

func testFrame() Frame {
	return Frame{Density: 1, Screen: geometry.Size{W: 400, H: 800}}
}

func TestPlaceBubble(t *testing.T) {
	f := testFrame()
	tests := []struct {
		name      string
		widget    geometry.Point
		kb        Keyboard
		want      geometry.Point
		tailOnTop bool
	}{
		{"below in top band", geometry.Point{X: 50, Y: 50}, Keyboard{}, geometry.Point{X: 0, Y: 182}, true},
		{"above lower down", geometry.Point{X: 100, Y: 500}, Keyboard{}, geometry.Point{X: 26, Y: 272}, false},
		{"x clamps right", geometry.Point{X: 276, Y: 500}, Keyboard{}, geometry.Point{X: 140, Y: 272}, false},
		{"keyboard forces above", geometry.Point{X: 50, Y: 200}, Keyboard{Inset: 300, Top: 500}, geometry.Point{X: 0, Y: 0}, false},
		{"unreported keyboard ignored", geometry.Point{X: 50, Y: 200}, Keyboard{Top: 500}, geometry.Point{X: 0, Y: 332}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := f.PlaceBubble(tt.widget, f.Px(BubbleHeightDP), tt.kb)
			assert.Equal(t, tt.want, p.Pos)
			assert.Equal(t, tt.tailOnTop, p.TailOnTop)
		})
	}
}

func TestTailTracksWidgetCenter(t *testing.T) {
	f := testFrame()
	// Bubble is unclamped here, so the widget center sits 74+62 px into it.
	p := f.PlaceBubble(geometry.Point{X: 100, Y: 500}, 220, Keyboard{})
	assert.Equal(t, 74+62-130, p.TailShift)

	// Bubble pinned at the left edge: the tail follows the widget instead.
	p = f.PlaceBubble(geometry.Point{X: 0, Y: 500}, 220, Keyboard{})
	assert.Equal(t, 62-130, p.TailShift)

	assert.Equal(t, 16+9-130, f.tailShift(-100, 0))
	assert.Equal(t, 130-16-9, f.tailShift(400, 0))
}

func TestPlacePane(t *testing.T) {
	f := Frame{Density: 1, Screen: geometry.Size{W: 1000, H: 800}}
	pane := f.PaneSize()

	assert.Equal(t, geometry.Point{X: 184, Y: 76}, f.PlacePane(geometry.Point{X: 50, Y: 100}, pane))
	// Overflowing the right edge flips to the left.
	assert.Equal(t, geometry.Point{X: 550, Y: 76}, f.PlacePane(geometry.Point{X: 800, Y: 100}, pane))
	// Vertical offset clamps at the top.
	assert.Equal(t, 0, f.PlacePane(geometry.Point{X: 50, Y: 10}, pane).Y)
	// Zero size falls back to the default pane.
	assert.Equal(t, geometry.Point{X: 184, Y: 76}, f.PlacePane(geometry.Point{X: 50, Y: 100}, geometry.Size{}))
}

func TestPlaceEdgeTab(t *testing.T) {
	f := testFrame()
	w := geometry.Point{X: 50, Y: 100}
	assert.Equal(t, geometry.Point{X: -46, Y: 106}, f.PlaceEdgeTab(w, false))
	assert.Equal(t, geometry.Point{X: 390, Y: 106}, f.PlaceEdgeTab(w, true))
	assert.Equal(t, 0, f.PlaceEdgeTab(geometry.Point{X: 0, Y: 0}, false).Y)
}

func TestOffscreenAndSides(t *testing.T) {
	f := testFrame()
	assert.Equal(t, -130, f.OffscreenX(false))
	assert.Equal(t, 406, f.OffscreenX(true))
	assert.False(t, f.CloserToRight(geometry.Point{X: 50}))
	assert.True(t, f.CloserToRight(geometry.Point{X: 200}))
	assert.Equal(t, geometry.Point{X: 276, Y: 676}, f.ClampWidget(geometry.Point{X: 9999, Y: 9999}))
}
