// Package overlay assembles the widget, the chat pipeline, the speech loop
// and the browser pane into the floating assistant. Every exported method
// must be called on the UI loop.
package overlay

import (
	"errors"
	"image"
	"strings"
	"time"

	"github.com/neboloop/hitomi/internal/browser"
	"github.com/neboloop/hitomi/internal/chat"
	"github.com/neboloop/hitomi/internal/geometry"
	"github.com/neboloop/hitomi/internal/lifecycle"
	"github.com/neboloop/hitomi/internal/logging"
	"github.com/neboloop/hitomi/internal/notify"
	"github.com/neboloop/hitomi/internal/speech"
	"github.com/neboloop/hitomi/internal/uiloop"
	"github.com/neboloop/hitomi/internal/widget"
)

// ErrAlreadyRunning is returned by New when another overlay is up.
var ErrAlreadyRunning = errors.New("overlay: already running")

// Identity is the signed-in user as the overlay sees it.
type Identity interface {
	IsSignedIn() bool
	DisplayName() string
}

// Options configures an Overlay. Nil collaborators disable their feature:
// no Engine means no browser, no Recognizer means no speech.
type Options struct {
	Scheduler uiloop.Scheduler
	Frame     widget.Frame
	Surface   Surface
	Keyboard  widget.KeyboardProbe
	Timing    widget.Timing
	Start     *geometry.Point
	// Sprite is the widget image used for hit testing; nil accepts every
	// touch inside the box.
	Sprite image.Image

	Engine          browser.Engine
	HomeURL         string
	SnapshotTimeout time.Duration

	Chat        chat.Service
	Identity    Identity
	ReadTimeout time.Duration

	Recognizer      speech.Recognizer
	Permissions     speech.Permissions
	Delays          speech.Delays
	AlwaysListening bool

	Notifier  notify.Notifier
	Lifecycle *lifecycle.Manager
	// OnSettings runs when the settings quick action is pressed.
	OnSettings func()
}

// Overlay is the running assistant.
type Overlay struct {
	surface  Surface
	notifier notify.Notifier
	life     *lifecycle.Manager
	settings func()

	widget *widget.Widget
	drag   *widget.DragController
	pane   *browser.Pane
	broker *browser.Broker
	chat   *chat.Pipeline
	speech *speech.Loop

	layout widget.Layout
	input  string
	ready  bool
	closed bool
}

// New builds the overlay, greets the user and, when configured, turns
// always-listening on. Only one overlay may run per lifecycle manager; the
// default is the process-wide one.
func New(opts Options) (*Overlay, error) {
	life := opts.Lifecycle
	if life == nil {
		life = lifecycle.Default()
	}
	if !life.Start() {
		return nil, ErrAlreadyRunning
	}
	o := &Overlay{
		surface:  opts.Surface,
		notifier: opts.Notifier,
		life:     life,
		settings: opts.OnSettings,
	}
	if o.surface == nil {
		o.surface = SurfaceFunc(func(View) {})
	}
	if o.notifier == nil {
		o.notifier = notify.Func(func(msg string) { logging.Infof("[overlay] %s", msg) })
	}

	o.widget = widget.New(widget.Options{
		Scheduler: opts.Scheduler,
		Frame:     opts.Frame,
		Surface:   widget.SurfaceFunc(o.widgetRendered),
		Keyboard:  opts.Keyboard,
		Timing:    opts.Timing,
		Start:     opts.Start,
	})
	var hit widget.HitTester
	if opts.Sprite != nil {
		box := opts.Frame.Box()
		hit = widget.AlphaHitTester{Sprite: opts.Sprite, View: func() (int, int) { return box.W, box.H }}
	}
	o.drag = widget.NewDragController(o.widget, hit)

	o.pane = browser.NewPane(browser.PaneOptions{
		Scheduler: opts.Scheduler,
		Engine:    opts.Engine,
		Frame:     opts.Frame,
		Anchor:    func() geometry.Point { return o.widget.State().Pos },
		HomeURL:   opts.HomeURL,
		OnChange:  func(browser.PaneState) { o.draw() },
	})
	o.broker = browser.NewBroker(opts.Scheduler, o.pane, opts.SnapshotTimeout)

	o.chat = chat.New(chat.Options{
		Scheduler:   opts.Scheduler,
		Service:     opts.Chat,
		Identity:    opts.Identity,
		Snapshots:   o.broker,
		Host:        chatHost{o},
		ReadTimeout: opts.ReadTimeout,
	})
	o.speech = speech.New(speech.Options{
		Scheduler:   opts.Scheduler,
		Recognizer:  opts.Recognizer,
		Permissions: opts.Permissions,
		Host:        speechHost{o},
		Delays:      opts.Delays,
	})

	o.chat.AppendLine(Greeting(opts.Identity))
	o.ready = true
	if opts.AlwaysListening {
		if err := o.speech.Enable(); err != nil {
			logging.Warnf("[overlay] always-listening: %v", err)
		}
		o.widget.SetListening(o.speech.Enabled())
	}
	o.draw()
	logging.Infof("[overlay] started")
	return o, nil
}

// Greeting is the first transcript line.
func Greeting(id Identity) string {
	if id == nil || !id.IsSignedIn() {
		return chat.AssistantPrefix + "Hi! I'm Hitomi, your tiny hedgehog friend. Sign in in the app, then we can chat here."
	}
	name := strings.TrimSpace(id.DisplayName())
	if strings.HasPrefix(name, "@") && len(name) > 1 {
		return chat.AssistantPrefix + "I'm a hedgey-hog! Hello " + name
	}
	return chat.AssistantPrefix + "Hello, I'm a hedgey-hog!"
}

// Close tears the overlay down: the running flag first, then speech, the
// chat worker, the browser and finally the widget. Nothing is drawn after.
func (o *Overlay) Close() {
	if o.closed {
		return
	}
	o.closed = true
	o.life.Stop()
	o.speech.Close()
	o.chat.Close()
	o.broker.Close()
	o.pane.Close()
	o.widget.Close()
	logging.Infof("[overlay] stopped")
}

// Running reports whether the overlay is up.
func (o *Overlay) Running() bool { return !o.closed && o.life.Running() }

// Widget exposes the widget state machine.
func (o *Overlay) Widget() *widget.Widget { return o.widget }

// Chat exposes the chat pipeline.
func (o *Overlay) Chat() *chat.Pipeline { return o.chat }

// Speech exposes the speech loop.
func (o *Overlay) Speech() *speech.Loop { return o.speech }

// Pane exposes the browser pane.
func (o *Overlay) Pane() *browser.Pane { return o.pane }

// Broker exposes the snapshot broker.
func (o *Overlay) Broker() *browser.Broker { return o.broker }

func (o *Overlay) widgetRendered(l widget.Layout) {
	o.layout = l
	o.draw()
}

func (o *Overlay) draw() {
	if !o.ready || o.closed {
		return
	}
	o.surface.Draw(o.View())
}
