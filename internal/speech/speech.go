// Package speech keeps an always-listening recognizer session armed between
// utterances. Loop methods and all Events callbacks run on the UI loop.
package speech

import (
	"errors"
	"strings"
	"time"

	"github.com/neboloop/hitomi/internal/logging"
	"github.com/neboloop/hitomi/internal/metrics"
	"github.com/neboloop/hitomi/internal/uiloop"
)

var (
	// ErrMicPermission is returned when enabling without microphone access.
	ErrMicPermission = errors.New("speech: microphone permission not granted")
	// ErrRecognizerUnavailable is returned when no recognizer is available.
	ErrRecognizerUnavailable = errors.New("speech: recognizer unavailable")
)

// State is the session state.
type State int

const (
	StateIdle State = iota
	StateListening
	StateRestartScheduled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateRestartScheduled:
		return "restart_scheduled"
	default:
		return "unknown"
	}
}

// Events is what a Recognizer reports back. The Loop wraps each callback so
// it runs on the UI loop and only for the session that is still current.
type Events struct {
	Ready   func()
	End     func()
	Partial func(text string)
	// Final carries the best transcript; empty means no match.
	Final func(text string)
	Error func(code ErrorCode)
}

// Recognizer is the platform speech collaborator.
type Recognizer interface {
	// Start begins one listening session.
	Start(ev Events) error
	// Cancel aborts the current session without reporting results.
	Cancel()
	// Destroy releases the recognizer for good.
	Destroy()
}

// Permissions answers the preconditions for enabling always-listening.
type Permissions interface {
	MicGranted() bool
	RecognizerAvailable() bool
}

// Host is the rest of the overlay as seen from the speech loop.
type Host interface {
	// ChatInFlight reports whether a chat turn is running.
	ChatInFlight() bool
	// Submit puts text in the chat input and sends it, opening the bubble
	// first if needed.
	Submit(text string)
	// PreviewChanged asks for the transcript to be re-rendered.
	PreviewChanged()
}

// Delays holds the restart timings.
type Delays struct {
	Busy          time.Duration
	NoMatch       time.Duration
	Other         time.Duration
	Min           time.Duration
	Enable        time.Duration
	AfterReply    time.Duration
	DeferredFinal time.Duration
}

// DefaultDelays returns the stock restart timings.
func DefaultDelays() Delays {
	return Delays{
		Busy:          420 * time.Millisecond,
		NoMatch:       180 * time.Millisecond,
		Other:         500 * time.Millisecond,
		Min:           40 * time.Millisecond,
		Enable:        40 * time.Millisecond,
		AfterReply:    200 * time.Millisecond,
		DeferredFinal: 420 * time.Millisecond,
	}
}

// For returns the backoff for an error class.
func (d Delays) For(code ErrorCode) time.Duration {
	switch code {
	case ErrorBusy:
		return d.Busy
	case ErrorNoMatch, ErrorSpeechTimeout:
		return d.NoMatch
	default:
		return d.Other
	}
}

// Options configures a Loop.
type Options struct {
	Scheduler   uiloop.Scheduler
	Recognizer  Recognizer
	Permissions Permissions
	Host        Host
	Delays      Delays
}

// Loop is the speech session state machine.
type Loop struct {
	sched  uiloop.Scheduler
	rec    Recognizer
	perms  Permissions
	host   Host
	delays Delays

	state             State
	enabled           bool
	suppress          bool
	preview           string
	restartAfterReply bool
	restart           *uiloop.Timer
	session           int
	closed            bool
}

// New returns a disabled loop.
func New(opts Options) *Loop {
	if opts.Delays.Min == 0 {
		opts.Delays = DefaultDelays()
	}
	return &Loop{
		sched:  opts.Scheduler,
		rec:    opts.Recognizer,
		perms:  opts.Permissions,
		host:   opts.Host,
		delays: opts.Delays,
	}
}

// State returns the session state.
func (l *Loop) State() State { return l.state }

// Enabled reports whether always-listening is on.
func (l *Loop) Enabled() bool { return l.enabled }

// Preview is the current partial transcript, empty when none.
func (l *Loop) Preview() string { return l.preview }

// Listening reports whether a session is capturing speech.
func (l *Loop) Listening() bool { return l.state == StateListening }

// RestartAfterReply reports whether a restart is owed once the chat turn ends.
func (l *Loop) RestartAfterReply() bool { return l.restartAfterReply }

// Suppressed reports whether results are being dropped until the next
// session starts.
func (l *Loop) Suppressed() bool { return l.suppress }

// Enable turns always-listening on. It fails without state change when the
// microphone or recognizer is missing.
func (l *Loop) Enable() error {
	if l.closed {
		return ErrRecognizerUnavailable
	}
	if l.enabled {
		return nil
	}
	if l.perms != nil && !l.perms.MicGranted() {
		return ErrMicPermission
	}
	if l.rec == nil || (l.perms != nil && !l.perms.RecognizerAvailable()) {
		return ErrRecognizerUnavailable
	}
	l.enabled = true
	l.suppress = false
	logging.Infof("[speech] always-listening enabled")
	l.scheduleRestart(l.delays.Enable, "enable")
	return nil
}

// Disable turns always-listening off and cancels any session.
func (l *Loop) Disable() {
	if !l.enabled {
		return
	}
	l.enabled = false
	l.restartAfterReply = false
	l.stop(false)
	logging.Infof("[speech] always-listening disabled")
}

// Toggle flips always-listening and reports the new setting.
func (l *Loop) Toggle() (bool, error) {
	if l.enabled {
		l.Disable()
		return false, nil
	}
	if err := l.Enable(); err != nil {
		return false, err
	}
	return true, nil
}

// Suppress drops results until the next session starts.
func (l *Loop) Suppress() {
	if !l.suppress {
		logging.Debugf("[speech] suppressing results until next session")
	}
	l.suppress = true
}

// Start begins a session. It refuses when disabled, when a chat turn is in
// flight, or when already listening; otherwise any prior session is
// cancelled first.
func (l *Loop) Start() bool {
	if l.closed || !l.enabled || l.rec == nil {
		return false
	}
	if l.host != nil && l.host.ChatInFlight() {
		return false
	}
	if l.perms != nil && !l.perms.MicGranted() {
		return false
	}
	if l.state == StateListening {
		return false
	}
	l.suppress = false
	l.restart.Stop()
	l.restart = nil
	l.state = StateIdle
	l.rec.Cancel()
	l.session++
	if err := l.rec.Start(l.events(l.session)); err != nil {
		logging.Warnf("[speech] start failed: %v", err)
		l.scheduleRestart(l.delays.Other, "start_failed")
		return false
	}
	return true
}

// ChatTurnFinished replays a restart that was deferred during the turn.
func (l *Loop) ChatTurnFinished() {
	if !l.restartAfterReply {
		return
	}
	l.restartAfterReply = false
	if l.enabled {
		l.scheduleRestart(l.delays.AfterReply, "after_reply")
	}
}

// Close cancels any pending restart and session and destroys the recognizer.
func (l *Loop) Close() {
	if l.closed {
		return
	}
	l.enabled = false
	l.restartAfterReply = false
	l.stop(true)
	l.closed = true
}

func (l *Loop) stop(destroy bool) {
	l.restart.Stop()
	l.restart = nil
	l.session++
	l.state = StateIdle
	l.preview = ""
	if l.rec != nil {
		l.rec.Cancel()
		if destroy {
			l.rec.Destroy()
			l.rec = nil
		}
	}
	l.previewChanged()
}

// scheduleRestart replaces any pending restart with one after d.
func (l *Loop) scheduleRestart(d time.Duration, reason string) {
	if !l.enabled || l.closed {
		return
	}
	l.restart.Stop()
	d = max(d, l.delays.Min)
	if l.state != StateListening {
		l.state = StateRestartScheduled
	}
	metrics.SpeechRestarts.WithLabelValues(reason).Inc()
	logging.Debugf("[speech] restart in %s (%s)", d, reason)
	l.restart = l.sched.PostDelayed(d, func() {
		l.restart = nil
		if l.state == StateRestartScheduled {
			l.state = StateIdle
		}
		if !l.enabled {
			return
		}
		if l.host != nil && l.host.ChatInFlight() {
			// Held until ChatTurnFinished.
			l.restartAfterReply = true
			return
		}
		l.Start()
	})
}

func (l *Loop) previewChanged() {
	if l.host != nil {
		l.host.PreviewChanged()
	}
}

func (l *Loop) events(session int) Events {
	guard := func(fn func()) {
		l.sched.Post(func() {
			if l.closed || session != l.session {
				return
			}
			fn()
		})
	}
	return Events{
		Ready:   func() { guard(l.onReady) },
		End:     func() { guard(l.onEnd) },
		Partial: func(text string) { guard(func() { l.onPartial(text) }) },
		Final:   func(text string) { guard(func() { l.onFinal(text) }) },
		Error:   func(code ErrorCode) { guard(func() { l.onError(code) }) },
	}
}

func (l *Loop) onReady() {
	l.state = StateListening
	l.preview = ""
	l.previewChanged()
}

func (l *Loop) onEnd() {
	if l.state == StateListening {
		l.state = StateIdle
	}
}

func (l *Loop) onPartial(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	l.preview = text
	l.previewChanged()
}

func (l *Loop) onError(code ErrorCode) {
	l.state = StateIdle
	l.preview = ""
	l.previewChanged()
	logging.Debugf("[speech] recognizer error: %s", code)
	if !l.enabled {
		return
	}
	l.scheduleRestart(l.delays.For(code), code.String())
}

func (l *Loop) onFinal(text string) {
	l.state = StateIdle
	l.preview = ""
	text = strings.TrimSpace(text)
	inFlight := l.host != nil && l.host.ChatInFlight()
	switch {
	case text == "":
		l.previewChanged()
		l.restartLater(inFlight, "no_match")
	case l.suppress:
		l.previewChanged()
		l.restartLater(inFlight, "suppressed")
	case inFlight:
		l.previewChanged()
		l.restartAfterReply = true
		l.scheduleRestart(l.delays.DeferredFinal, "deferred")
	default:
		l.restartAfterReply = l.enabled
		logging.Infof("[speech] heard %q", text)
		if l.host != nil {
			l.host.Submit(text)
		}
	}
}

// restartLater re-arms after a dropped result, or once the chat turn ends
// when one is running.
func (l *Loop) restartLater(inFlight bool, reason string) {
	if !l.enabled {
		return
	}
	if inFlight {
		l.restartAfterReply = true
		return
	}
	l.scheduleRestart(l.delays.NoMatch, reason)
}
