package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/neboloop/hitomi/internal/browser"
	"github.com/neboloop/hitomi/internal/chat"
	"github.com/neboloop/hitomi/internal/geometry"
	"github.com/neboloop/hitomi/internal/overlay"
	"github.com/neboloop/hitomi/internal/uiloop"
	"github.com/neboloop/hitomi/internal/widget"
)

// Console commands
const (
	cmdNone      = ""
	cmdSay       = "say"
	cmdTap       = "tap"
	cmdDrag      = "drag"
	cmdLongPress = "longpress"
	cmdHide      = "hide"
	cmdRestore   = "restore"
	cmdListen    = "listen"
	cmdFocus     = "focus"
	cmdBlur      = "blur"
	cmdBrowse    = "browse"
	cmdClose     = "close"
	cmdClosePane = "closepane"
	cmdSettings  = "settings"
	cmdState     = "state"
	cmdHelp      = "help"
	cmdQuit      = "quit"
)

type command struct {
	name string
	text string // message for say, URL for browse
	dx   int
	dy   int
}

// parseCommand reads one console line. Plain text is a chat message.
func parseCommand(line string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{name: cmdNone}, nil
	}
	if !strings.HasPrefix(line, ":") {
		return command{name: cmdSay, text: line}, nil
	}
	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		return command{}, fmt.Errorf("empty command (try :help)")
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	switch name {
	case cmdTap, cmdLongPress, cmdHide, cmdRestore, cmdListen, cmdFocus, cmdBlur,
		cmdClose, cmdClosePane, cmdSettings, cmdState, cmdHelp, cmdQuit:
		return command{name: name}, nil
	case cmdDrag:
		if len(args) != 2 {
			return command{}, fmt.Errorf(":drag takes X and Y")
		}
		dx, err := strconv.Atoi(args[0])
		if err != nil {
			return command{}, fmt.Errorf(":drag X: %w", err)
		}
		dy, err := strconv.Atoi(args[1])
		if err != nil {
			return command{}, fmt.Errorf(":drag Y: %w", err)
		}
		return command{name: cmdDrag, dx: dx, dy: dy}, nil
	case cmdBrowse:
		if len(args) != 1 {
			return command{}, fmt.Errorf(":browse takes a URL")
		}
		return command{name: cmdBrowse, text: args[0]}, nil
	}
	return command{}, fmt.Errorf("unknown command %q (try :help)", name)
}

// harness turns console commands into overlay input. apply runs on the UI
// loop.
type harness struct {
	o      *overlay.Overlay
	sched  uiloop.Scheduler
	timing widget.Timing
	con    *console
	downAt geometry.Point
}

const dragSteps = 4

func (h *harness) apply(c command) {
	switch c.name {
	case cmdSay:
		if err := h.o.Say(c.text); err != nil {
			h.con.Error(err)
		}
	case cmdTap:
		if h.pointer(widget.ActionDown, 0, 0) {
			h.pointer(widget.ActionUp, 0, 0)
		}
	case cmdDrag:
		if !h.pointer(widget.ActionDown, 0, 0) {
			return
		}
		for i := 1; i <= dragSteps; i++ {
			h.pointer(widget.ActionMove, c.dx*i/dragSteps, c.dy*i/dragSteps)
		}
		h.pointer(widget.ActionUp, c.dx, c.dy)
	case cmdLongPress:
		if h.pointer(widget.ActionDown, 0, 0) {
			h.sched.PostDelayed(h.timing.LongPress+50*time.Millisecond, func() {
				h.pointer(widget.ActionUp, 0, 0)
			})
		}
	case cmdHide:
		h.o.HideToEdge()
	case cmdRestore:
		h.o.RestoreFromEdge()
	case cmdListen:
		h.o.ToggleListening()
	case cmdFocus:
		h.o.FocusInput()
	case cmdBlur:
		h.o.BlurInput()
	case cmdBrowse:
		if err := h.o.Browse(c.text); err != nil {
			h.con.Error(err)
		}
	case cmdClose:
		h.o.CloseBubble()
	case cmdClosePane:
		h.o.ClosePane()
	case cmdSettings:
		h.o.OpenSettings()
	case cmdState:
		h.con.State(h.o.Widget().State(), h.o.Pane().State())
	case cmdHelp:
		h.con.Help()
	}
}

// pointer sends a touch at the widget center offset by dx,dy and reports
// whether the widget claimed it.
func (h *harness) pointer(action widget.Action, dx, dy int) bool {
	w := h.o.Widget()
	box := w.Frame().Box()
	local := func(n int) float64 { return float64(n / 2) }
	origin := w.State().Pos
	if action != widget.ActionDown {
		origin = h.downAt
	} else {
		h.downAt = origin
	}
	return h.o.HandlePointer(widget.PointerEvent{
		Action: action,
		RawX:   float64(origin.X+dx) + local(box.W),
		RawY:   float64(origin.Y+dy) + local(box.H),
		LocalX: local(box.W),
		LocalY: local(box.H),
	})
}

// console prints overlay frames as they change.
type console struct {
	mu  sync.Mutex
	out io.Writer

	printed int
	status  string
	pane    browser.PaneState
	mode    widget.Mode
	started bool

	you    *color.Color
	hitomi *color.Color
	faint  *color.Color
	notice *color.Color
	err    *color.Color
}

func newConsole(out io.Writer) *console {
	return &console{
		out:    out,
		you:    color.New(color.FgCyan),
		hitomi: color.New(color.FgHiYellow),
		faint:  color.New(color.Faint),
		notice: color.New(color.FgGreen, color.Bold),
		err:    color.New(color.FgRed),
	}
}

// Draw implements overlay.Surface. Only transcript lines not printed yet
// are written; status lines are repeated when they change.
func (c *console) Draw(v overlay.View) {
	c.mu.Lock()
	defer c.mu.Unlock()

	lines, status := splitStatus(v.Transcript)
	if c.printed > len(lines) {
		c.printed = 0
	}
	for _, line := range lines[c.printed:] {
		switch {
		case strings.HasPrefix(line, chat.UserPrefix):
			_, _ = c.you.Fprintln(c.out, line)
		case strings.HasPrefix(line, chat.AssistantPrefix):
			_, _ = c.hitomi.Fprintln(c.out, line)
		default:
			fmt.Fprintln(c.out, line)
		}
	}
	c.printed = len(lines)

	if status != c.status {
		c.status = status
		if status != "" {
			_, _ = c.faint.Fprintln(c.out, status)
		}
	}

	if v.Pane != c.pane {
		if v.Pane.Visible && (!c.pane.Visible || v.Pane.URL != c.pane.URL) {
			_, _ = c.faint.Fprintf(c.out, "[browser] %s\n", v.Pane.URL)
		} else if !v.Pane.Visible && c.pane.Visible {
			_, _ = c.faint.Fprintln(c.out, "[browser] closed")
		}
		c.pane = v.Pane
	}

	mode := v.Widget.Widget.Mode
	if c.started && mode != c.mode {
		_, _ = c.faint.Fprintf(c.out, "[widget] %s\n", mode)
	}
	c.mode, c.started = mode, true
}

// Notice prints a quick-action notice.
func (c *console) Notice(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = c.notice.Fprintln(c.out, msg)
}

// Error prints a command error.
func (c *console) Error(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = c.err.Fprintln(c.out, err)
}

// State prints the widget and pane state.
func (c *console) State(s widget.State, p browser.PaneState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "widget: %s at (%d,%d) quick_actions=%t\n", s.Mode, s.Pos.X, s.Pos.Y, s.QuickActions)
	fmt.Fprintf(c.out, "browser: visible=%t at (%d,%d) %s\n", p.Visible, p.Pos.X, p.Pos.Y, p.URL)
}

// Help prints the command list.
func (c *console) Help() {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, strings.TrimSpace(`
:tap :drag X Y :longpress :hide :restore :listen :focus :blur
:browse URL :close :closepane :settings :state :help :quit`))
}

// splitStatus separates the transcript from the trailing listening and
// thinking lines.
func splitStatus(text string) (lines []string, status string) {
	for _, p := range strings.Split(text, "\n\n") {
		if p != "" {
			lines = append(lines, p)
		}
	}
	var tail []string
	for len(lines) > 0 {
		last := lines[len(lines)-1]
		if !isStatus(last) {
			break
		}
		tail = append([]string{strings.ReplaceAll(last, "\n", " ")}, tail...)
		lines = lines[:len(lines)-1]
	}
	return lines, strings.Join(tail, " ")
}

func isStatus(p string) bool {
	return p == overlay.ThinkingLine ||
		strings.HasPrefix(p, overlay.ListeningLine) ||
		strings.HasPrefix(p, overlay.PreviewPrefix)
}
