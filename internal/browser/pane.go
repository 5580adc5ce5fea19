// Package browser owns the embedded browser pane and the single-slot
// snapshot exchange used to read pages back to the chat worker. Pane and
// Broker methods must be called on the UI loop.
package browser

import (
	"github.com/neboloop/hitomi/internal/geometry"
	"github.com/neboloop/hitomi/internal/logging"
	"github.com/neboloop/hitomi/internal/toolcall"
	"github.com/neboloop/hitomi/internal/uiloop"
	"github.com/neboloop/hitomi/internal/widget"
)

// DefaultHomeURL is loaded when the pane is created.
const DefaultHomeURL = "https://example.com"

// PaneState is the pane as drawn.
type PaneState struct {
	Visible bool
	Pos     geometry.Point
	URL     string
}

// PaneOptions configures a Pane.
type PaneOptions struct {
	Scheduler uiloop.Scheduler
	Engine    Engine
	Frame     widget.Frame
	// Anchor returns the widget position the pane is placed next to.
	Anchor   func() geometry.Point
	HomeURL  string
	OnChange func(PaneState)
}

// Pane is the browser pane next to the widget.
type Pane struct {
	sched    uiloop.Scheduler
	engine   Engine
	frame    widget.Frame
	anchor   func() geometry.Point
	onChange func(PaneState)
	drag     *widget.PaneDrag

	state    PaneState
	finished []func(url string)
	closed   bool
}

// NewPane wires the engine's page-finished events onto the loop and loads
// the home page without showing the pane.
func NewPane(opts PaneOptions) *Pane {
	p := &Pane{
		sched:    opts.Scheduler,
		engine:   opts.Engine,
		frame:    opts.Frame,
		anchor:   opts.Anchor,
		onChange: opts.OnChange,
		drag:     widget.NewPaneDrag(opts.Frame),
	}
	if p.engine == nil {
		return p
	}
	p.engine.OnPageFinished(func(url string) {
		p.sched.Post(func() { p.pageFinished(url) })
	})
	home := opts.HomeURL
	if home == "" {
		home = DefaultHomeURL
	}
	p.state.URL = home
	if err := p.engine.LoadURL(home); err != nil {
		logging.Warnf("[browser] load home %s: %v", home, err)
	}
	return p
}

// State returns the pane state.
func (p *Pane) State() PaneState { return p.state }

// Ready reports whether an engine is attached.
func (p *Pane) Ready() bool { return p.engine != nil && !p.closed }

// OnPageFinished registers fn to run on the loop after each finished load.
func (p *Pane) OnPageFinished(fn func(url string)) {
	p.finished = append(p.finished, fn)
}

// ShowURL normalizes raw, places the pane next to the widget, shows it and
// starts loading. Unusable URLs are ignored.
func (p *Pane) ShowURL(raw string) error {
	if !p.Ready() {
		return ErrNoEngine
	}
	url := toolcall.NormalizeURL(raw)
	if url == "" {
		logging.Debugf("[browser] ignoring url %q", raw)
		return nil
	}
	anchor := p.frame.Home()
	if p.anchor != nil {
		anchor = p.anchor()
	}
	p.state.Pos = p.frame.PlacePane(anchor, p.frame.PaneSize())
	p.state.Visible = true
	p.state.URL = url
	p.changed()
	logging.Infof("[browser] loading %s", url)
	return p.engine.LoadURL(url)
}

// Hide closes the pane; the page stays loaded.
func (p *Pane) Hide() {
	if !p.state.Visible {
		return
	}
	p.state.Visible = false
	p.changed()
}

// HandleDrag moves the pane by its title bar.
func (p *Pane) HandleDrag(ev widget.PointerEvent) bool {
	if !p.state.Visible {
		return false
	}
	pos, claimed := p.drag.Handle(ev, p.state.Pos)
	if pos != p.state.Pos {
		p.state.Pos = pos
		p.changed()
	}
	return claimed
}

// Evaluate runs script and delivers the result on the loop.
func (p *Pane) Evaluate(script string, done func(result string, err error)) {
	if !p.Ready() {
		p.sched.Post(func() { done("", ErrNoEngine) })
		return
	}
	p.engine.EvaluateScript(script, func(result string, err error) {
		p.sched.Post(func() { done(result, err) })
	})
}

// Close stops delivering page events.
func (p *Pane) Close() {
	p.closed = true
	p.finished = nil
}

func (p *Pane) pageFinished(url string) {
	if p.closed {
		return
	}
	if url != "" && url != p.state.URL {
		p.state.URL = url
		p.changed()
	}
	for _, fn := range p.finished {
		fn(url)
	}
}

func (p *Pane) changed() {
	if p.onChange != nil {
		p.onChange(p.state)
	}
}
