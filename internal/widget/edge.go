package widget

import (
	"github.com/neboloop/hitomi/internal/geometry"
	"github.com/neboloop/hitomi/internal/logging"
)

// HideToEdge slides the widget off the nearer screen edge and shows the
// edge tab once it arrives.
func (w *Widget) HideToEdge() {
	if w.state.Mode != ModeResting {
		return
	}
	restore := w.state.Pos
	w.state.Restore = &restore
	w.state.HiddenRight = w.frame.CloserToRight(w.state.Pos)
	w.state.Mode = ModeHiding
	w.hop.cancel()
	target := geometry.Point{X: w.frame.OffscreenX(w.state.HiddenRight), Y: w.state.Pos.Y}
	logging.Debugf("[widget] hiding to %s edge", edgeName(w.state.HiddenRight))
	w.travelTo(target, true, w.finishHide)
}

func (w *Widget) finishHide() {
	if w.bubble.Visible {
		w.ToggleBubble(false)
	}
	w.hop.cancel()
	w.lift = KeyboardLift{}
	w.state.QuickActions = false
	w.state.Mode = ModeHidden
	// Parked against the edge; the widget is not drawn while hidden.
	w.state.Pos = w.frame.ClampWidget(w.state.Pos)
	w.positionEdgeTab()
	w.edgeTab.Visible = true
	w.render()
}

// RestoreFromEdge brings a hidden widget back to where it was hidden from.
func (w *Widget) RestoreFromEdge() {
	if w.state.Mode != ModeHidden {
		return
	}
	w.edgeTab.Visible = false
	restore := w.frame.Home()
	if w.state.Restore != nil {
		restore = *w.state.Restore
	}
	target := w.frame.ClampWidget(restore)
	w.state.Pos = geometry.Point{X: w.frame.OffscreenX(w.state.HiddenRight), Y: target.Y}
	w.state.Mode = ModeRestoring
	w.render()
	w.travelTo(target, true, func() {
		w.state.Mode = ModeResting
		w.state.Restore = nil
		w.Reposition()
	})
}

func edgeName(right bool) string {
	if right {
		return "right"
	}
	return "left"
}
