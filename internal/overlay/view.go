package overlay

import (
	"github.com/neboloop/hitomi/internal/browser"
	"github.com/neboloop/hitomi/internal/widget"
)

// Status lines shown under the transcript.
const (
	ListeningLine  = "Listening..."
	PreviewPrefix  = "Listening: "
	ThinkingLine   = "Thinking..."
	paragraphBreak = "\n\n"
)

// View is one frame of the whole overlay.
type View struct {
	Widget     widget.Layout
	Pane       browser.PaneState
	Transcript string
	Input      string
	Thinking   bool
	Listening  bool
}

// Surface draws overlay frames. Draw runs on the UI loop after every change.
type Surface interface {
	Draw(View)
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func(View)

// Draw implements Surface.
func (f SurfaceFunc) Draw(v View) { f(v) }

// View composes the current frame.
func (o *Overlay) View() View {
	return View{
		Widget:     o.layout,
		Pane:       o.pane.State(),
		Transcript: o.bubbleText(),
		Input:      o.input,
		Thinking:   o.chat.InFlight(),
		Listening:  o.speech.Enabled(),
	}
}

// bubbleText is the transcript plus the listening and thinking status.
func (o *Overlay) bubbleText() string {
	text := o.chat.Transcript()
	sep := func() string {
		if text == "" {
			return ""
		}
		return paragraphBreak
	}
	preview := ""
	if p := o.speech.Preview(); p != "" {
		preview = PreviewPrefix + p
	}
	switch {
	case o.speech.Enabled():
		text += sep() + ListeningLine
		if preview != "" {
			text += "\n" + preview
		}
	case preview != "":
		text += sep() + preview
	}
	if o.chat.InFlight() {
		text += paragraphBreak + ThinkingLine
	}
	return text
}
