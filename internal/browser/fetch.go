package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/neboloop/hitomi/internal/logging"
)

// fetchMaxText mirrors the cap ExtractScript applies in a real page.
const fetchMaxText = 4000

// ErrUnsupportedScript is reported by FetchEngine for anything but
// ExtractScript.
var ErrUnsupportedScript = errors.New("browser: fetch engine only runs the page extraction script")

// FetchEngine is an Engine without a browser: it downloads pages over HTTP
// and answers ExtractScript from the parsed document. It runs no scripts.
type FetchEngine struct {
	Client    *http.Client
	UserAgent string

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	seq      int
	current  Snapshot
	finished []func(url string)
}

// NewFetchEngine returns an engine with a 15s HTTP timeout.
func NewFetchEngine() *FetchEngine {
	ctx, cancel := context.WithCancel(context.Background())
	return &FetchEngine{
		Client:    &http.Client{Timeout: 15 * time.Second},
		UserAgent: "HitomiBrowser/1.0",
		ctx:       ctx,
		cancel:    cancel,
	}
}

// LoadURL implements Engine. A failed fetch still finishes the load, with
// an empty page, the way a browser shows an error page.
func (e *FetchEngine) LoadURL(url string) error {
	if e.ctx.Err() != nil {
		return ErrNoEngine
	}
	e.mu.Lock()
	e.seq++
	seq := e.seq
	e.mu.Unlock()

	go func() {
		snap, err := e.fetch(url)
		if err != nil {
			if e.ctx.Err() != nil {
				return
			}
			logging.Warnf("[browser] fetch %s: %v", url, err)
			snap = Snapshot{URL: url}
		}

		e.mu.Lock()
		if seq != e.seq {
			// A newer load superseded this one.
			e.mu.Unlock()
			return
		}
		e.current = snap
		fns := append([]func(string){}, e.finished...)
		e.mu.Unlock()
		for _, fn := range fns {
			fn(snap.URL)
		}
	}()
	return nil
}

func (e *FetchEngine) fetch(url string) (Snapshot, error) {
	req, err := http.NewRequestWithContext(e.ctx, http.MethodGet, url, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", e.UserAgent)

	resp, err := e.Client.Do(req)
	if err != nil {
		return Snapshot{}, err
	}
	defer resp.Body.Close()

	final := url
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	if resp.StatusCode >= 400 {
		return Snapshot{URL: final}, nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, template").Remove()

	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	if r := []rune(text); len(r) > fetchMaxText {
		text = string(r[:fetchMaxText])
	}
	return Snapshot{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		URL:   final,
		Text:  text,
	}, nil
}

// EvaluateScript implements Engine. The result is encoded the same way a
// browser returns a string value.
func (e *FetchEngine) EvaluateScript(script string, done func(string, error)) {
	if script != ExtractScript {
		go done("", ErrUnsupportedScript)
		return
	}
	e.mu.Lock()
	snap := e.current
	e.mu.Unlock()

	go func() {
		inner, err := json.Marshal(snap)
		if err != nil {
			done("", err)
			return
		}
		outer, err := json.Marshal(string(inner))
		if err != nil {
			done("", err)
			return
		}
		done(string(outer), nil)
	}()
}

// OnPageFinished implements Engine.
func (e *FetchEngine) OnPageFinished(fn func(url string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finished = append(e.finished, fn)
}

// Close cancels in-flight fetches.
func (e *FetchEngine) Close() {
	e.cancel()
}
