package speech

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neboloop/hitomi/internal/metrics"
	"github.com/neboloop/hitomi/internal/uiloop"
)

type fakeRecognizer struct {
	starts   int
	cancels  int
	destroys int
	events   []Events
	startErr error
}

func (r *fakeRecognizer) Start(ev Events) error {
	r.starts++
	r.events = append(r.events, ev)
	return r.startErr
}

func (r *fakeRecognizer) Cancel()  { r.cancels++ }
func (r *fakeRecognizer) Destroy() { r.destroys++ }

func (r *fakeRecognizer) current() Events { return r.events[len(r.events)-1] }

type fakePerms struct {
	mic, available bool
}

func (p fakePerms) MicGranted() bool          { return p.mic }
func (p fakePerms) RecognizerAvailable() bool { return p.available }

type fakeHost struct {
	inFlight  bool
	submitted []string
	renders   int
}

func (h *fakeHost) ChatInFlight() bool { return h.inFlight }
func (h *fakeHost) Submit(text string) { h.submitted = append(h.submitted, text) }
func (h *fakeHost) PreviewChanged()    { h.renders++ }

type fixture struct {
	sched *uiloop.Manual
	rec   *fakeRecognizer
	host  *fakeHost
	loop  *Loop
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{sched: uiloop.NewManual(), rec: &fakeRecognizer{}, host: &fakeHost{}}
	f.loop = New(Options{
		Scheduler:   f.sched,
		Recognizer:  f.rec,
		Permissions: fakePerms{mic: true, available: true},
		Host:        f.host,
	})
	t.Cleanup(func() {
		f.loop.Close()
		f.sched.Close()
	})
	return f
}

// listening enables the loop and drives it into a ready session.
func (f *fixture) listening(t *testing.T) {
	t.Helper()
	require.NoError(t, f.loop.Enable())
	f.sched.Advance(40 * time.Millisecond)
	require.Equal(t, 1, f.rec.starts)
	f.rec.current().Ready()
	f.sched.RunPending()
	require.Equal(t, StateListening, f.loop.State())
}

func TestEnableRequiresPermissions(t *testing.T) {
	sched := uiloop.NewManual()
	defer sched.Close()

	l := New(Options{Scheduler: sched, Recognizer: &fakeRecognizer{}, Permissions: fakePerms{available: true}})
	assert.ErrorIs(t, l.Enable(), ErrMicPermission)
	assert.False(t, l.Enabled())

	l = New(Options{Scheduler: sched, Recognizer: &fakeRecognizer{}, Permissions: fakePerms{mic: true}})
	assert.ErrorIs(t, l.Enable(), ErrRecognizerUnavailable)
	assert.False(t, l.Enabled())
	assert.Equal(t, 0, sched.PendingTimers())
}

func TestEnableStartsSession(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.loop.Enable())
	assert.Equal(t, StateRestartScheduled, f.loop.State())

	f.sched.Advance(39 * time.Millisecond)
	assert.Equal(t, 0, f.rec.starts)
	f.sched.Advance(time.Millisecond)
	assert.Equal(t, 1, f.rec.starts)

	f.rec.current().Ready()
	f.sched.RunPending()
	assert.True(t, f.loop.Listening())
}

func TestPartialUpdatesPreview(t *testing.T) {
	f := newFixture(t)
	f.listening(t)
	renders := f.host.renders

	f.rec.current().Partial("  what is  ")
	f.sched.RunPending()
	assert.Equal(t, "what is", f.loop.Preview())
	assert.Equal(t, renders+1, f.host.renders)
	assert.True(t, f.loop.Listening())

	f.rec.current().Partial("   ")
	f.sched.RunPending()
	assert.Equal(t, "what is", f.loop.Preview())
}

func TestErrorBackoffTiers(t *testing.T) {
	tests := []struct {
		code  ErrorCode
		delay time.Duration
	}{
		{ErrorBusy, 420 * time.Millisecond},
		{ErrorNoMatch, 180 * time.Millisecond},
		{ErrorSpeechTimeout, 180 * time.Millisecond},
		{ErrorNetwork, 500 * time.Millisecond},
		{ErrorOther, 500 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			f := newFixture(t)
			f.listening(t)
			before := testutil.ToFloat64(metrics.SpeechRestarts.WithLabelValues(tt.code.String()))

			f.rec.current().Partial("hel")
			f.rec.current().Error(tt.code)
			f.sched.RunPending()
			assert.Equal(t, StateRestartScheduled, f.loop.State())
			assert.Empty(t, f.loop.Preview())

			f.sched.Advance(tt.delay - time.Millisecond)
			assert.Equal(t, 1, f.rec.starts)
			f.sched.Advance(time.Millisecond)
			assert.Equal(t, 2, f.rec.starts)
			assert.Equal(t, before+1, testutil.ToFloat64(metrics.SpeechRestarts.WithLabelValues(tt.code.String())))
		})
	}
}

func TestRestartIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.listening(t)

	ev := f.rec.current()
	ev.Error(ErrorBusy)
	f.sched.RunPending()
	f.loop.scheduleRestart(180*time.Millisecond, "test")
	assert.Equal(t, 1, f.sched.PendingTimers())

	f.sched.Advance(time.Second)
	assert.Equal(t, 2, f.rec.starts)
}

func TestFinalResultSubmits(t *testing.T) {
	f := newFixture(t)
	f.listening(t)

	f.rec.current().Final("  open example dot com ")
	f.sched.RunPending()
	require.Equal(t, []string{"open example dot com"}, f.host.submitted)
	assert.True(t, f.loop.RestartAfterReply())
	assert.Equal(t, StateIdle, f.loop.State())

	// The turn finishing brings the session back.
	f.loop.ChatTurnFinished()
	assert.False(t, f.loop.RestartAfterReply())
	f.sched.Advance(199 * time.Millisecond)
	assert.Equal(t, 1, f.rec.starts)
	f.sched.Advance(time.Millisecond)
	assert.Equal(t, 2, f.rec.starts)
}

func TestFinalDuringChatIsDeferred(t *testing.T) {
	f := newFixture(t)
	f.listening(t)
	f.host.inFlight = true

	f.rec.current().Final("second thought")
	f.sched.RunPending()
	assert.Empty(t, f.host.submitted)
	assert.True(t, f.loop.RestartAfterReply())
	assert.Equal(t, StateRestartScheduled, f.loop.State())

	// The deferred restart fires but the turn is still running.
	f.sched.Advance(420 * time.Millisecond)
	assert.Equal(t, 1, f.rec.starts)

	f.host.inFlight = false
	f.loop.ChatTurnFinished()
	f.sched.Advance(200 * time.Millisecond)
	assert.Equal(t, 2, f.rec.starts)
}

func TestEmptyFinalRestarts(t *testing.T) {
	f := newFixture(t)
	f.listening(t)

	f.rec.current().Final("")
	f.sched.RunPending()
	assert.Empty(t, f.host.submitted)
	f.sched.Advance(180 * time.Millisecond)
	assert.Equal(t, 2, f.rec.starts)
}

func TestEmptyFinalDuringChatRearmsAfterTurn(t *testing.T) {
	f := newFixture(t)
	f.listening(t)
	f.host.inFlight = true

	f.rec.current().Final("")
	f.sched.RunPending()
	assert.Equal(t, 0, f.sched.PendingTimers())
	assert.True(t, f.loop.RestartAfterReply())

	f.host.inFlight = false
	f.loop.ChatTurnFinished()
	f.sched.Advance(200 * time.Millisecond)
	assert.Equal(t, 2, f.rec.starts)
}

func TestErrorDuringChatRearmsAfterTurn(t *testing.T) {
	f := newFixture(t)
	f.listening(t)
	f.host.inFlight = true

	f.rec.current().Error(ErrorNoMatch)
	f.sched.Advance(time.Second)
	assert.Equal(t, 1, f.rec.starts, "no session while the turn runs")
	assert.True(t, f.loop.RestartAfterReply())
	assert.Equal(t, StateIdle, f.loop.State())

	f.host.inFlight = false
	f.loop.ChatTurnFinished()
	f.sched.Advance(5 * time.Second)
	assert.Equal(t, 2, f.rec.starts)
	assert.True(t, f.loop.Enabled())
}

func TestSuppressedFinalDuringChatRearmsAfterTurn(t *testing.T) {
	f := newFixture(t)
	f.listening(t)
	f.loop.Suppress()
	f.host.inFlight = true

	f.rec.current().Final("dropped")
	f.sched.RunPending()
	assert.Empty(t, f.host.submitted)
	assert.True(t, f.loop.RestartAfterReply())

	f.host.inFlight = false
	f.loop.ChatTurnFinished()
	f.sched.Advance(200 * time.Millisecond)
	assert.Equal(t, 2, f.rec.starts)
}

func TestStartRefusals(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.loop.Start(), "disabled")

	f.listening(t)
	assert.False(t, f.loop.Start(), "already listening")

	f.rec.current().End()
	f.sched.RunPending()
	assert.Equal(t, StateIdle, f.loop.State())

	f.host.inFlight = true
	assert.False(t, f.loop.Start(), "chat in flight")

	f.host.inFlight = false
	cancels := f.rec.cancels
	assert.True(t, f.loop.Start())
	assert.Equal(t, cancels+1, f.rec.cancels, "prior session cancelled first")
}

func TestStartFailureBacksOff(t *testing.T) {
	f := newFixture(t)
	f.rec.startErr = errors.New("mic busy")
	require.NoError(t, f.loop.Enable())
	f.sched.Advance(40 * time.Millisecond)
	assert.Equal(t, 1, f.rec.starts)
	assert.Equal(t, StateRestartScheduled, f.loop.State())
	f.sched.Advance(500 * time.Millisecond)
	assert.Equal(t, 2, f.rec.starts)
}

func TestStaleSessionEventsIgnored(t *testing.T) {
	f := newFixture(t)
	f.listening(t)
	stale := f.rec.current()

	f.rec.current().End()
	f.sched.RunPending()
	require.True(t, f.loop.Start())

	stale.Final("from the old session")
	f.sched.RunPending()
	assert.Empty(t, f.host.submitted)
}

func TestDisableCancelsEverything(t *testing.T) {
	f := newFixture(t)
	f.listening(t)
	f.rec.current().Error(ErrorBusy)
	f.sched.RunPending()

	cancels := f.rec.cancels
	f.loop.Disable()
	assert.False(t, f.loop.Enabled())
	assert.Equal(t, StateIdle, f.loop.State())
	assert.Equal(t, cancels+1, f.rec.cancels)
	assert.Equal(t, 0, f.rec.destroys)

	f.sched.Advance(time.Second)
	assert.Equal(t, 1, f.rec.starts)
}

func TestToggle(t *testing.T) {
	f := newFixture(t)
	on, err := f.loop.Toggle()
	require.NoError(t, err)
	assert.True(t, on)
	on, err = f.loop.Toggle()
	require.NoError(t, err)
	assert.False(t, on)
}

func TestSuppressDropsResultUntilNextSession(t *testing.T) {
	f := newFixture(t)
	f.listening(t)
	f.loop.Suppress()

	f.rec.current().Final("ignored")
	f.sched.RunPending()
	assert.Empty(t, f.host.submitted)
	assert.True(t, f.loop.Suppressed())

	f.sched.Advance(180 * time.Millisecond)
	assert.Equal(t, 2, f.rec.starts)
	assert.False(t, f.loop.Suppressed())
}

func TestCloseDestroysRecognizer(t *testing.T) {
	f := newFixture(t)
	f.listening(t)
	ev := f.rec.current()

	f.loop.Close()
	assert.Equal(t, 1, f.rec.destroys)
	assert.False(t, f.loop.Enabled())

	ev.Final("late")
	f.sched.RunPending()
	assert.Empty(t, f.host.submitted)
	assert.ErrorIs(t, f.loop.Enable(), ErrRecognizerUnavailable)
}

func TestParseErrorCode(t *testing.T) {
	assert.Equal(t, ErrorBusy, ParseErrorCode("busy"))
	assert.Equal(t, ErrorSpeechTimeout, ParseErrorCode("speech_timeout"))
	assert.Equal(t, ErrorOther, ParseErrorCode("weird"))
}
