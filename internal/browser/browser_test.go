package browser

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neboloop/hitomi/internal/geometry"
	"github.com/neboloop/hitomi/internal/metrics"
	"github.com/neboloop/hitomi/internal/uiloop"
	"github.com/neboloop/hitomi/internal/widget"
)

type fakeEngine struct {
	loads    []string
	finished []func(string)
	scripts  []string
	result   string
	evalErr  error
}

func (e *fakeEngine) LoadURL(url string) error {
	e.loads = append(e.loads, url)
	return nil
}

func (e *fakeEngine) EvaluateScript(script string, done func(string, error)) {
	e.scripts = append(e.scripts, script)
	done(e.result, e.evalErr)
}

func (e *fakeEngine) OnPageFinished(fn func(string)) {
	e.finished = append(e.finished, fn)
}

func (e *fakeEngine) finish(url string) {
	for _, fn := range e.finished {
		fn(url)
	}
}

type fixture struct {
	sched  *uiloop.Manual
	engine *fakeEngine
	pane   *Pane
	broker *Broker
	anchor geometry.Point
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sched:  uiloop.NewManual(),
		engine: &fakeEngine{result: `"{\"title\":\"Example\",\"url\":\"https://example.com/\",\"text\":\"Hello page\"}"`},
		anchor: geometry.Point{X: 50, Y: 100},
	}
	f.pane = NewPane(PaneOptions{
		Scheduler: f.sched,
		Engine:    f.engine,
		Frame:     widget.Frame{Density: 1, Screen: geometry.Size{W: 1000, H: 800}},
		Anchor:    func() geometry.Point { return f.anchor },
	})
	f.broker = NewBroker(f.sched, f.pane, 0)
	t.Cleanup(func() {
		f.broker.Close()
		f.pane.Close()
		f.sched.Close()
	})
	return f
}

func TestDecodeSnapshot(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Snapshot
	}{
		{"string literal", `"{\"title\":\"T\",\"url\":\"https://a.b/\",\"text\":\"x\"}"`, Snapshot{Title: "T", URL: "https://a.b/", Text: "x"}},
		{"bare object", `{"title":"T","url":"https://a.b/","text":"x"}`, Snapshot{Title: "T", URL: "https://a.b/", Text: "x"}},
		{"missing url", `{"title":"T","text":"x"}`, Snapshot{Title: "T", URL: "https://fallback/", Text: "x"}},
		{"null", `null`, Snapshot{URL: "https://fallback/"}},
		{"empty", ``, Snapshot{URL: "https://fallback/"}},
		{"garbage", `"not json`, Snapshot{URL: "https://fallback/"}},
		{"string not object", `"just text"`, Snapshot{URL: "https://fallback/"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeSnapshot(tt.raw, "https://fallback/"))
		})
	}
}

func TestExtractScriptTruncates(t *testing.T) {
	assert.Contains(t, ExtractScript, "b.slice(0,4000)")
	assert.Contains(t, ExtractScript, `replace(/\s+/g,' ')`)
}

func TestNewPaneLoadsHome(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, []string{DefaultHomeURL}, f.engine.loads)
	assert.False(t, f.pane.State().Visible)
}

func TestShowURLPlacesPane(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.pane.ShowURL("example.com/a"))

	st := f.pane.State()
	assert.True(t, st.Visible)
	assert.Equal(t, "https://example.com/a", st.URL)
	assert.Equal(t, geometry.Point{X: 184, Y: 76}, st.Pos)
	assert.Equal(t, "https://example.com/a", f.engine.loads[len(f.engine.loads)-1])

	// Unusable URLs are ignored.
	n := len(f.engine.loads)
	require.NoError(t, f.pane.ShowURL("javascript:alert(1)"))
	assert.Len(t, f.engine.loads, n)
}

func TestShowURLWithoutEngine(t *testing.T) {
	sched := uiloop.NewManual()
	defer sched.Close()
	p := NewPane(PaneOptions{Scheduler: sched})
	assert.ErrorIs(t, p.ShowURL("example.com"), ErrNoEngine)
	assert.False(t, p.State().Visible)
}

func TestPaneDragClamps(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.pane.ShowURL("https://a.b"))

	assert.True(t, f.pane.HandleDrag(widget.PointerEvent{Action: widget.ActionDown, RawX: 200, RawY: 100}))
	f.pane.HandleDrag(widget.PointerEvent{Action: widget.ActionMove, RawX: 260, RawY: 150})
	assert.Equal(t, geometry.Point{X: 244, Y: 126}, f.pane.State().Pos)

	f.pane.HandleDrag(widget.PointerEvent{Action: widget.ActionMove, RawX: 5000, RawY: 5000})
	assert.Equal(t, geometry.Point{X: 760, Y: 610}, f.pane.State().Pos)
	assert.True(t, f.pane.HandleDrag(widget.PointerEvent{Action: widget.ActionUp}))

	f.pane.Hide()
	assert.False(t, f.pane.HandleDrag(widget.PointerEvent{Action: widget.ActionDown}))
}

func TestPageFinishedUpdatesURL(t *testing.T) {
	f := newFixture(t)
	f.engine.finish("https://example.com/landing")
	f.sched.RunPending()
	assert.Equal(t, "https://example.com/landing", f.pane.State().URL)
}

func TestSnapshotResolvesOnPageFinished(t *testing.T) {
	f := newFixture(t)
	before := testutil.ToFloat64(metrics.SnapshotResolutions.WithLabelValues(metrics.PathPageFinished))

	var got []*Snapshot
	id := f.broker.Request("https://example.com/", func(s *Snapshot) { got = append(got, s) })
	assert.NotEmpty(t, id)
	assert.True(t, f.broker.Pending())
	assert.True(t, f.pane.State().Visible)

	f.engine.finish("https://example.com/")
	f.sched.RunPending()
	require.Len(t, got, 1)
	assert.Equal(t, &Snapshot{Title: "Example", URL: "https://example.com/", Text: "Hello page"}, got[0])
	assert.False(t, f.broker.Pending())
	assert.Equal(t, []string{ExtractScript}, f.engine.scripts)

	// Neither the timeout nor another load resolves it again.
	f.sched.Advance(13 * time.Second)
	f.engine.finish("https://example.com/other")
	f.sched.RunPending()
	assert.Len(t, got, 1)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.SnapshotResolutions.WithLabelValues(metrics.PathPageFinished)))
}

func TestSnapshotTimesOut(t *testing.T) {
	f := newFixture(t)
	var got []*Snapshot
	f.broker.Request("https://slow.test/", func(s *Snapshot) { got = append(got, s) })

	f.sched.Advance(12*time.Second - time.Millisecond)
	assert.Empty(t, got)
	f.sched.Advance(time.Millisecond)
	require.Len(t, got, 1)
	assert.Nil(t, got[0])
	assert.False(t, f.broker.Pending())

	f.engine.finish("https://slow.test/")
	f.sched.RunPending()
	assert.Len(t, got, 1)
	assert.Empty(t, f.engine.scripts)
}

func TestSnapshotPreemption(t *testing.T) {
	f := newFixture(t)
	var a, b int
	f.broker.Request("https://a.test/", func(*Snapshot) { a++ })
	f.broker.Request("https://b.test/", func(*Snapshot) { b++ })
	assert.True(t, f.broker.Pending())
	assert.Equal(t, 1, f.sched.PendingTimers(), "only the new request's timeout is live")

	f.engine.finish("https://b.test/")
	f.sched.RunPending()
	f.sched.Advance(30 * time.Second)
	assert.Equal(t, 0, a)
	assert.Equal(t, 1, b)
}

func TestSnapshotNeverResolvedWithoutEvents(t *testing.T) {
	f := newFixture(t)
	called := false
	f.broker.Request("https://a.test/", func(*Snapshot) { called = true })
	f.sched.Advance(11 * time.Second)
	f.sched.RunPending()
	assert.False(t, called)
	assert.True(t, f.broker.Pending())
}

func TestSnapshotExtractFailure(t *testing.T) {
	f := newFixture(t)
	f.engine.evalErr = errors.New("script threw")
	var got *Snapshot
	f.broker.Request("https://a.test/", func(s *Snapshot) { got = s })
	f.engine.finish("https://a.test/final")
	f.sched.RunPending()
	require.NotNil(t, got)
	assert.Equal(t, "https://a.test/final", got.URL)
	assert.True(t, got.Empty())
}

func TestSnapshotWithoutBrowser(t *testing.T) {
	sched := uiloop.NewManual()
	defer sched.Close()
	b := NewBroker(sched, NewPane(PaneOptions{Scheduler: sched}), time.Second)

	calls := 0
	var got *Snapshot
	b.Request("https://a.test/", func(s *Snapshot) { calls++; got = s })
	sched.RunPending()
	assert.Equal(t, 1, calls)
	assert.Nil(t, got)
	assert.False(t, b.Pending())
}

func TestSnapshotUnloadableURLResolvesAtOnce(t *testing.T) {
	for _, url := range []string{"   ", "javascript:alert(1)"} {
		t.Run(url, func(t *testing.T) {
			f := newFixture(t)
			loads := len(f.engine.loads)

			calls := 0
			var got *Snapshot
			f.broker.Request(url, func(s *Snapshot) { calls++; got = s })
			assert.False(t, f.broker.Pending())
			f.sched.RunPending()
			assert.Equal(t, 1, calls)
			assert.Nil(t, got)
			assert.Len(t, f.engine.loads, loads)
			assert.Equal(t, 0, f.sched.PendingTimers())
		})
	}
}

func TestBrokerCloseDropsPending(t *testing.T) {
	f := newFixture(t)
	called := false
	f.broker.Request("https://a.test/", func(*Snapshot) { called = true })
	f.broker.Close()
	assert.False(t, f.broker.Pending())
	f.engine.finish("https://a.test/")
	f.sched.Advance(20 * time.Second)
	assert.False(t, called)
}
