package browser

import (
	"time"

	"github.com/google/uuid"

	"github.com/neboloop/hitomi/internal/logging"
	"github.com/neboloop/hitomi/internal/metrics"
	"github.com/neboloop/hitomi/internal/toolcall"
	"github.com/neboloop/hitomi/internal/uiloop"
)

// DefaultSnapshotTimeout bounds how long a read waits for the page.
const DefaultSnapshotTimeout = 12 * time.Second

// request is the one pending read.
type request struct {
	id       string
	url      string
	callback func(*Snapshot)
	timeout  *uiloop.Timer
}

// Broker correlates a page-finished event, or a timeout, with the caller
// waiting for a snapshot. At most one request is pending; a new request
// preempts the old one, whose callback is then never called. Every other
// request's callback runs exactly once.
type Broker struct {
	sched   uiloop.Scheduler
	pane    *Pane
	timeout time.Duration
	pending *request
	closed  bool
}

// NewBroker attaches a broker to pane.
func NewBroker(sched uiloop.Scheduler, pane *Pane, timeout time.Duration) *Broker {
	if timeout <= 0 {
		timeout = DefaultSnapshotTimeout
	}
	b := &Broker{sched: sched, pane: pane, timeout: timeout}
	pane.OnPageFinished(b.pageFinished)
	return b
}

// Pending reports whether a read is outstanding.
func (b *Broker) Pending() bool { return b.pending != nil }

// Request loads url in the pane and calls cb with the page snapshot, or
// with nil on timeout, when no browser is available or when url has
// nothing loadable. It returns the request ID.
func (b *Broker) Request(url string, cb func(*Snapshot)) string {
	id := uuid.NewString()
	if b.closed {
		return id
	}
	if prev := b.pending; prev != nil {
		b.pending = nil
		prev.timeout.Stop()
		metrics.SnapshotResolutions.WithLabelValues(metrics.PathPreempted).Inc()
		logging.Debugf("[browser] snapshot %s preempted by %s", prev.id, id)
	}
	url = toolcall.NormalizeURL(url)
	if !b.pane.Ready() || url == "" {
		if url == "" {
			logging.Debugf("[browser] snapshot %s: nothing to load", id)
		}
		metrics.SnapshotResolutions.WithLabelValues(metrics.PathUnavailable).Inc()
		b.sched.Post(func() { cb(nil) })
		return id
	}

	req := &request{id: id, url: url, callback: cb}
	b.pending = req
	if err := b.pane.ShowURL(url); err != nil {
		logging.Warnf("[browser] snapshot %s: load %s: %v", id, url, err)
	}
	req.timeout = b.sched.PostDelayed(b.timeout, func() {
		if b.pending != req {
			return
		}
		b.pending = nil
		metrics.SnapshotResolutions.WithLabelValues(metrics.PathTimeout).Inc()
		logging.Warnf("[browser] snapshot %s timed out after %s", id, b.timeout)
		cb(nil)
	})
	return id
}

// pageFinished resolves the pending request with the first finished load
// after it was issued, redirects included.
func (b *Broker) pageFinished(url string) {
	req := b.pending
	if req == nil || b.closed {
		return
	}
	b.pending = nil
	req.timeout.Stop()
	metrics.SnapshotResolutions.WithLabelValues(metrics.PathPageFinished).Inc()
	b.pane.Evaluate(ExtractScript, func(raw string, err error) {
		if b.closed {
			return
		}
		snap := Snapshot{URL: url}
		if err != nil {
			logging.Warnf("[browser] snapshot %s: extract: %v", req.id, err)
		} else {
			snap = DecodeSnapshot(raw, url)
		}
		req.callback(&snap)
	})
}

// Close drops the pending request without resolving it.
func (b *Broker) Close() {
	if b.pending != nil {
		b.pending.timeout.Stop()
		b.pending = nil
	}
	b.closed = true
}
