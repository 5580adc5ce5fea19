package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neboloop/hitomi/internal/browser"
	"github.com/neboloop/hitomi/internal/chat"
	"github.com/neboloop/hitomi/internal/geometry"
	"github.com/neboloop/hitomi/internal/lifecycle"
	"github.com/neboloop/hitomi/internal/overlay"
	"github.com/neboloop/hitomi/internal/uiloop"
	"github.com/neboloop/hitomi/internal/widget"
)

func init() {
	color.NoColor = true
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line    string
		want    command
		wantErr string
	}{
		{line: "  ", want: command{name: cmdNone}},
		{line: "hello there", want: command{name: cmdSay, text: "hello there"}},
		{line: ":tap", want: command{name: cmdTap}},
		{line: ":LongPress", want: command{name: cmdLongPress}},
		{line: ":drag 40 -12", want: command{name: cmdDrag, dx: 40, dy: -12}},
		{line: ":browse example.com", want: command{name: cmdBrowse, text: "example.com"}},
		{line: ":quit", want: command{name: cmdQuit}},
		{line: ":drag 40", wantErr: "takes X and Y"},
		{line: ":drag a 1", wantErr: ":drag X"},
		{line: ":browse", wantErr: "takes a URL"},
		{line: ":", wantErr: "empty command"},
		{line: ":fly", wantErr: "unknown command"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseCommand(tt.line)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitStatus(t *testing.T) {
	lines, status := splitStatus("Hitomi: hi\n\nYou: yo\n\nListening...\nListening: how\n\nThinking...")
	assert.Equal(t, []string{"Hitomi: hi", "You: yo"}, lines)
	assert.Equal(t, "Listening... Listening: how Thinking...", status)

	lines, status = splitStatus("")
	assert.Empty(t, lines)
	assert.Empty(t, status)
}

func TestConsolePrintsOnlyChanges(t *testing.T) {
	var buf bytes.Buffer
	c := newConsole(&buf)

	c.Draw(overlay.View{Transcript: "Hitomi: hi"})
	c.Draw(overlay.View{Transcript: "Hitomi: hi\n\nYou: open it\n\nThinking..."})
	c.Draw(overlay.View{
		Transcript: "Hitomi: hi\n\nYou: open it\n\nHitomi: Sure.",
		Pane:       browser.PaneState{Visible: true, URL: "https://example.com"},
	})
	c.Draw(overlay.View{Transcript: "Hitomi: hi\n\nYou: open it\n\nHitomi: Sure."})

	assert.Equal(t, "Hitomi: hi\nYou: open it\nThinking...\nHitomi: Sure.\n[browser] https://example.com\n[browser] closed\n", buf.String())
}

type echoService struct{}

func (echoService) Send(_ context.Context, history []chat.Message, _ string) (string, error) {
	return "echo: " + history[len(history)-1].Content, nil
}

func newHarness(t *testing.T) (*harness, *uiloop.Manual, *bytes.Buffer) {
	t.Helper()
	loop := uiloop.NewManual()
	var buf bytes.Buffer
	con := newConsole(&buf)
	o, err := overlay.New(overlay.Options{
		Scheduler: loop,
		Frame:     widget.Frame{Density: 1, Screen: geometry.Size{W: 400, H: 800}},
		Surface:   con,
		Chat:      echoService{},
		Lifecycle: lifecycle.NewManager(),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		o.Close()
		loop.Close()
	})
	return &harness{o: o, sched: loop, timing: widget.DefaultTiming(), con: con}, loop, &buf
}

func TestHarnessGestures(t *testing.T) {
	h, loop, buf := newHarness(t)

	h.apply(command{name: cmdTap})
	assert.True(t, h.o.Widget().BubbleVisible())

	start := h.o.Widget().State().Pos
	h.apply(command{name: cmdDrag, dx: 30, dy: 50})
	assert.Equal(t, start.Add(30, 50), h.o.Widget().State().Pos)

	h.apply(command{name: cmdLongPress})
	loop.Advance(time.Second)
	assert.True(t, h.o.Widget().State().QuickActions)

	h.apply(command{name: cmdState})
	assert.Contains(t, buf.String(), "quick_actions=true")
}

func TestHarnessSay(t *testing.T) {
	h, loop, buf := newHarness(t)

	h.apply(command{name: cmdSay, text: "ping"})
	deadline := time.Now().Add(2 * time.Second)
	for h.o.Chat().InFlight() && time.Now().Before(deadline) {
		loop.RunPending()
		time.Sleep(time.Millisecond)
	}
	require.False(t, h.o.Chat().InFlight())
	assert.Contains(t, buf.String(), "You: ping\n")
	assert.Contains(t, buf.String(), "Hitomi: echo: ping\n")
}

func TestParseCmdOutput(t *testing.T) {
	var buf bytes.Buffer
	cmd := ParseCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"{{tool:android_browser_browse|url=example.com}}", "Reading", "it."})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "text: Reading it.\n")
	assert.Contains(t, buf.String(), "read: https://example.com\n")
}
