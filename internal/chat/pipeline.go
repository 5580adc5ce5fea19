// Package chat runs one conversation turn at a time against the remote chat
// service, acts on the browser directives in replies and keeps the rendered
// transcript.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/neboloop/hitomi/internal/auth"
	"github.com/neboloop/hitomi/internal/browser"
	"github.com/neboloop/hitomi/internal/logging"
	"github.com/neboloop/hitomi/internal/metrics"
	"github.com/neboloop/hitomi/internal/toolcall"
	"github.com/neboloop/hitomi/internal/uiloop"
)

var (
	// ErrBusy is returned by Send while a turn is in flight.
	ErrBusy = errors.New("chat: a message is already in flight")
	// ErrEmpty is returned by Send for blank input.
	ErrEmpty = errors.New("chat: empty message")
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("chat: pipeline closed")
)

// DefaultReadTimeout bounds the wait for a page snapshot. It is longer than
// the broker's own timeout so the broker answers first.
const DefaultReadTimeout = 15 * time.Second

const snagPrefix = "I hit a snag: "

// Service is the remote chat collaborator.
type Service interface {
	Send(ctx context.Context, history []Message, userName string) (string, error)
}

// Identity supplies the name the assistant addresses the user by.
type Identity interface {
	DisplayName() string
}

// Snapshotter loads a URL in the browser pane and reports the page. It is
// called on the UI loop.
type Snapshotter interface {
	Request(url string, cb func(*browser.Snapshot)) string
}

// Host is the UI side of the pipeline. Every method runs on the UI loop.
type Host interface {
	// SendStarted clears the input box and rechecks keyboard avoidance.
	SendStarted()
	// TranscriptChanged asks for a re-render.
	TranscriptChanged()
	// ShowBrowser opens url in the browser pane.
	ShowBrowser(url string)
	// TurnFinished runs once the in-flight flag has cleared.
	TurnFinished()
}

// Options configures a Pipeline.
type Options struct {
	Scheduler   uiloop.Scheduler
	Service     Service
	Identity    Identity
	Snapshots   Snapshotter
	Host        Host
	ReadTimeout time.Duration
}

type job struct {
	id   string
	text string
}

// Pipeline serializes chat turns. Send, InFlight and Transcript belong to the
// UI loop; the network calls run on a single worker goroutine.
type Pipeline struct {
	sched       uiloop.Scheduler
	svc         Service
	ident       Identity
	snaps       Snapshotter
	host        Host
	readTimeout time.Duration

	history    History
	transcript Transcript
	inFlight   bool
	closed     bool

	jobs   chan job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New starts the worker.
func New(opts Options) *Pipeline {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		sched:       opts.Scheduler,
		svc:         opts.Service,
		ident:       opts.Identity,
		snaps:       opts.Snapshots,
		host:        opts.Host,
		readTimeout: opts.ReadTimeout,
		jobs:        make(chan job, 1),
		ctx:         ctx,
		cancel:      cancel,
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// InFlight reports whether a turn is running.
func (p *Pipeline) InFlight() bool { return p.inFlight }

// Transcript returns the rendered conversation.
func (p *Pipeline) Transcript() string { return p.transcript.String() }

// Lines returns the transcript lines.
func (p *Pipeline) Lines() []string { return p.transcript.Lines() }

// AppendLine adds a line to the transcript without sending anything.
func (p *Pipeline) AppendLine(line string) {
	p.transcript.Append(line)
	p.host.TranscriptChanged()
}

// History returns a copy of the conversation sent to the service.
func (p *Pipeline) History() []Message { return p.history.Messages() }

// Send starts a turn for text.
func (p *Pipeline) Send(text string) error {
	if p.closed {
		return ErrClosed
	}
	if p.inFlight {
		return ErrBusy
	}
	msg := strings.TrimSpace(text)
	if msg == "" {
		return ErrEmpty
	}

	j := job{id: uuid.NewString(), text: msg}
	select {
	case p.jobs <- j:
	default:
		return ErrBusy
	}
	p.host.SendStarted()
	p.transcript.Append(UserPrefix + msg)
	p.inFlight = true
	p.host.TranscriptChanged()
	logging.Debugf("[chat] turn %s queued", j.id)
	return nil
}

// Close stops the worker. A turn still running is abandoned and its results
// never reach the transcript.
func (p *Pipeline) Close() {
	if p.closed {
		return
	}
	p.closed = true
	p.cancel()
	p.wg.Wait()
}

func (p *Pipeline) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case j := <-p.jobs:
			p.turn(j)
		}
	}
}

// post runs fn on the UI loop unless the pipeline has closed by then.
func (p *Pipeline) post(fn func()) {
	p.sched.Post(func() {
		if p.closed {
			return
		}
		fn()
	})
}

func (p *Pipeline) displayName() string {
	if p.ident == nil {
		return auth.DefaultName
	}
	if name := strings.TrimSpace(p.ident.DisplayName()); name != "" {
		return name
	}
	return auth.DefaultName
}

func (p *Pipeline) turn(j job) {
	start := time.Now()
	name := p.displayName()
	p.history.Append(RoleUser, j.text)

	outcome := metrics.OutcomeOK
	reply, err := p.svc.Send(p.ctx, p.history.Messages(), name)
	if err != nil {
		if p.ctx.Err() != nil {
			metrics.ChatTurns.WithLabelValues(metrics.OutcomeDropped).Inc()
			return
		}
		logging.Warnf("[chat] turn %s: %v", j.id, err)
		reply = snag(snagPrefix, err)
		outcome = metrics.OutcomeError
	}

	parsed := toolcall.Parse(reply)
	p.history.Append(RoleAssistant, parsed.VisibleText)
	p.post(func() {
		if parsed.OpenURL != "" {
			p.host.ShowBrowser(parsed.OpenURL)
		}
		p.transcript.Append(AssistantPrefix + parsed.VisibleText)
		p.host.TranscriptChanged()
	})

	if parsed.ReadURL != "" {
		if followup := strings.TrimSpace(p.readFollowUp(parsed.ReadURL, name)); followup != "" {
			p.history.Append(RoleAssistant, followup)
			p.post(func() {
				p.transcript.Append(AssistantPrefix + followup)
			})
		}
		if outcome == metrics.OutcomeOK {
			outcome = metrics.OutcomeFollowUp
		}
	}

	if p.ctx.Err() != nil {
		outcome = metrics.OutcomeDropped
	}
	metrics.ChatTurns.WithLabelValues(outcome).Inc()
	logging.Debugf("[chat] turn %s done in %s (%s)", j.id, time.Since(start).Round(time.Millisecond), outcome)

	p.post(func() {
		p.inFlight = false
		p.host.TranscriptChanged()
		p.host.TurnFinished()
	})
}

// readFollowUp opens url, waits for its snapshot and asks the service to
// answer from it.
func (p *Pipeline) readFollowUp(url, name string) string {
	snap := p.awaitSnapshot(url)
	if snap == nil {
		return ApologyUnread
	}
	p.history.Append(RoleUser, ToolResult(snap))
	reply, err := p.svc.Send(p.ctx, p.history.Messages(), name)
	if err != nil {
		if p.ctx.Err() != nil {
			return ""
		}
		logging.Warnf("[chat] follow-up for %s: %v", url, err)
		return snag(apologySnag, err)
	}
	return toolcall.Parse(reply).VisibleText
}

// awaitSnapshot hands the request to the UI loop and blocks until the
// snapshot arrives, the read timeout passes or the pipeline closes.
func (p *Pipeline) awaitSnapshot(url string) *browser.Snapshot {
	if p.snaps == nil {
		return nil
	}
	done := make(chan *browser.Snapshot, 1)
	if !p.sched.Post(func() {
		p.snaps.Request(url, func(s *browser.Snapshot) {
			select {
			case done <- s:
			default:
			}
		})
	}) {
		return nil
	}

	timer := time.NewTimer(p.readTimeout)
	defer timer.Stop()
	select {
	case s := <-done:
		return s
	case <-timer.C:
		logging.Warnf("[chat] no snapshot of %s after %s", url, p.readTimeout)
		return nil
	case <-p.ctx.Done():
		return nil
	}
}
