package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/neboloop/hitomi/internal/logging"
)

// ChromeConfig configures the Chrome-backed engine.
type ChromeConfig struct {
	Headless bool          // Run without a window (default: true in the harness)
	Timeout  time.Duration // Per-operation timeout (default: 30s)
	ExecPath string        // Chrome binary; empty uses chromedp's lookup
}

// ChromeEngine is an Engine driving a Chrome tab over the DevTools protocol.
type ChromeEngine struct {
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	timeout     time.Duration

	mu       sync.Mutex
	frameURL string
	finished []func(url string)

	loads *loadQueue
	done  chan struct{}
}

// NewChromeEngine launches Chrome and opens one tab.
func NewChromeEngine(cfg ChromeConfig) (*ChromeEngine, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)
	e := &ChromeEngine{
		allocCancel: allocCancel,
		ctx:         ctx,
		cancel:      cancel,
		timeout:     cfg.Timeout,
		loads:       newLoadQueue(),
		done:        make(chan struct{}),
	}
	go func() {
		defer close(e.done)
		e.loads.run(ctx, e.pageFinished)
	}()

	chromedp.ListenTarget(ctx, e.onEvent)
	if err := chromedp.Run(ctx); err != nil {
		e.Close()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	return e, nil
}

func (e *ChromeEngine) onEvent(ev any) {
	switch ev := ev.(type) {
	case *page.EventFrameNavigated:
		if ev.Frame != nil && ev.Frame.ParentID == "" {
			e.mu.Lock()
			e.frameURL = ev.Frame.URL
			e.mu.Unlock()
		}
	case *page.EventLoadEventFired:
		e.mu.Lock()
		url := e.frameURL
		e.mu.Unlock()
		// Listener callbacks must not block the event stream.
		e.loads.push(url)
	}
}

func (e *ChromeEngine) pageFinished(url string) {
	e.mu.Lock()
	fns := append([]func(string){}, e.finished...)
	e.mu.Unlock()
	for _, fn := range fns {
		fn(url)
	}
}

// LoadURL implements Engine.
func (e *ChromeEngine) LoadURL(url string) error {
	if e.ctx.Err() != nil {
		return ErrNoEngine
	}
	go func() {
		ctx, cancel := context.WithTimeout(e.ctx, e.timeout)
		defer cancel()
		if err := chromedp.Run(ctx, chromedp.Navigate(url)); err != nil && e.ctx.Err() == nil {
			logging.Warnf("[browser] navigate %s: %v", url, err)
		}
	}()
	return nil
}

// EvaluateScript implements Engine. The result is the raw JSON of the
// script's return value.
func (e *ChromeEngine) EvaluateScript(script string, done func(string, error)) {
	go func() {
		ctx, cancel := context.WithTimeout(e.ctx, e.timeout)
		defer cancel()
		var raw []byte
		if err := chromedp.Run(ctx, chromedp.Evaluate(script, &raw)); err != nil {
			done("", fmt.Errorf("evaluate: %w", err))
			return
		}
		done(string(raw), nil)
	}()
}

// OnPageFinished implements Engine.
func (e *ChromeEngine) OnPageFinished(fn func(url string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finished = append(e.finished, fn)
}

// Close shuts the tab and the browser down.
func (e *ChromeEngine) Close() {
	if e.cancel != nil {
		e.cancel()
	}
	if e.allocCancel != nil {
		e.allocCancel()
	}
	if e.done != nil {
		<-e.done
	}
}

// loadQueue hands finished loads to a single goroutine so listeners see
// them in the order Chrome reported them.
type loadQueue struct {
	mu      sync.Mutex
	pending []string
	wake    chan struct{}
}

func newLoadQueue() *loadQueue {
	return &loadQueue{wake: make(chan struct{}, 1)}
}

func (q *loadQueue) push(url string) {
	q.mu.Lock()
	q.pending = append(q.pending, url)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// run delivers queued loads until ctx is done.
func (q *loadQueue) run(ctx context.Context, deliver func(url string)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		}
		for {
			q.mu.Lock()
			if len(q.pending) == 0 {
				q.mu.Unlock()
				break
			}
			url := q.pending[0]
			q.pending = q.pending[1:]
			q.mu.Unlock()
			deliver(url)
		}
	}
}
