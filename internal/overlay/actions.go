package overlay

import (
	"errors"

	"github.com/neboloop/hitomi/internal/lifecycle"
	"github.com/neboloop/hitomi/internal/logging"
	"github.com/neboloop/hitomi/internal/speech"
	"github.com/neboloop/hitomi/internal/widget"
)

// Notices shown by the quick actions.
const (
	NoticeListeningOn   = "Always listening enabled"
	NoticeListeningOff  = "Always listening disabled"
	NoticeMicPermission = "Allow microphone permission in Hitomi app first."
	NoticeNoRecognizer  = "Speech recognition is unavailable on this device."
)

// HandlePointer feeds a touch on the widget to the gesture controller.
func (o *Overlay) HandlePointer(ev widget.PointerEvent) bool {
	if o.closed {
		return false
	}
	return o.drag.Handle(ev)
}

// HandlePanePointer feeds a touch on the browser title bar to the pane.
func (o *Overlay) HandlePanePointer(ev widget.PointerEvent) bool {
	if o.closed {
		return false
	}
	return o.pane.HandleDrag(ev)
}

// SetInput replaces the chat input text.
func (o *Overlay) SetInput(text string) {
	o.input = text
	o.draw()
}

// Input returns the chat input text.
func (o *Overlay) Input() string { return o.input }

// Submit sends the input box contents.
func (o *Overlay) Submit() error {
	if o.closed {
		return errors.New("overlay: closed")
	}
	return o.chat.Send(o.input)
}

// Say puts text in the input and submits it, opening the bubble first.
func (o *Overlay) Say(text string) error {
	if !o.widget.BubbleVisible() {
		o.widget.ToggleBubble(true)
	}
	o.SetInput(text)
	return o.Submit()
}

// ToggleBubble shows or hides the chat bubble.
func (o *Overlay) ToggleBubble(show bool) { o.widget.ToggleBubble(show) }

// CloseBubble handles the bubble's close button and touches outside it.
func (o *Overlay) CloseBubble() { o.widget.ToggleBubble(false) }

// FocusInput handles a tap on the input field.
func (o *Overlay) FocusInput() { o.widget.FocusInput() }

// BlurInput handles the input losing focus.
func (o *Overlay) BlurInput() { o.widget.BlurInput() }

// LayoutChanged handles a change of the bubble's measured size.
func (o *Overlay) LayoutChanged() { o.widget.LayoutChanged() }

// Browse shows url in the browser pane.
func (o *Overlay) Browse(url string) error { return o.pane.ShowURL(url) }

// ClosePane handles the pane's close button.
func (o *Overlay) ClosePane() { o.pane.Hide() }

// ToggleListening is the mic quick action. Enabling reports a notice and
// leaves the setting unchanged when the microphone or recognizer is
// missing.
func (o *Overlay) ToggleListening() bool {
	o.widget.ShowQuickActions(false)
	on, err := o.speech.Toggle()
	switch {
	case errors.Is(err, speech.ErrMicPermission):
		o.notifier.Notify(NoticeMicPermission)
	case errors.Is(err, speech.ErrRecognizerUnavailable):
		o.notifier.Notify(NoticeNoRecognizer)
	case on:
		o.notifier.Notify(NoticeListeningOn)
	default:
		o.notifier.Notify(NoticeListeningOff)
	}
	o.widget.SetListening(o.speech.Enabled())
	o.draw()
	return o.speech.Enabled()
}

// SetAlwaysListening applies the preference without quick-action notices.
func (o *Overlay) SetAlwaysListening(on bool) error {
	if on == o.speech.Enabled() {
		return nil
	}
	var err error
	if on {
		err = o.speech.Enable()
	} else {
		o.speech.Disable()
	}
	o.widget.SetListening(o.speech.Enabled())
	o.draw()
	return err
}

// HideToEdge is the hide quick action. Speech results are dropped until the
// next listening session.
func (o *Overlay) HideToEdge() {
	if o.widget.State().Mode != widget.ModeResting {
		return
	}
	o.widget.ShowQuickActions(false)
	o.speech.Suppress()
	o.widget.HideToEdge()
	o.life.Emit(lifecycle.EventWidgetHidden, o.widget.State().HiddenRight)
}

// RestoreFromEdge handles a tap on the edge tab.
func (o *Overlay) RestoreFromEdge() {
	if o.widget.State().Mode != widget.ModeHidden {
		return
	}
	o.widget.RestoreFromEdge()
	o.life.Emit(lifecycle.EventWidgetRestored, nil)
}

// OpenSettings is the settings quick action.
func (o *Overlay) OpenSettings() {
	o.widget.ShowQuickActions(false)
	if o.settings != nil {
		o.settings()
		return
	}
	logging.Debugf("[overlay] no settings handler")
}

type chatHost struct{ o *Overlay }

func (h chatHost) SendStarted() {
	h.o.input = ""
	h.o.widget.ScheduleKeyboardAvoidance()
}

func (h chatHost) TranscriptChanged() { h.o.draw() }

func (h chatHost) ShowBrowser(url string) {
	if err := h.o.pane.ShowURL(url); err != nil {
		logging.Warnf("[overlay] show %s: %v", url, err)
	}
}

func (h chatHost) TurnFinished() {
	h.o.speech.ChatTurnFinished()
	h.o.draw()
}

type speechHost struct{ o *Overlay }

func (h speechHost) ChatInFlight() bool { return h.o.chat.InFlight() }

func (h speechHost) Submit(text string) {
	if err := h.o.Say(text); err != nil {
		logging.Warnf("[overlay] voice message not sent: %v", err)
		// No turn will finish, so replay the deferred restart now.
		h.o.speech.ChatTurnFinished()
	}
}

func (h speechHost) PreviewChanged() { h.o.draw() }
