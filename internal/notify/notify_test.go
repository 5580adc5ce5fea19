package notify

import (
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	assert.Equal(t, "it’s ok", sanitize(`it's o\k`))
	long := sanitize(strings.Repeat("x", 300))
	assert.Len(t, long, 259)
	assert.True(t, strings.HasSuffix(long, "..."))
}

func TestOSNotifyRunsPlatformCommand(t *testing.T) {
	var ran []*exec.Cmd
	OS{run: func(c *exec.Cmd) error {
		ran = append(ran, c)
		return errors.New("no notifier")
	}}.Notify("Always listening enabled")

	switch runtime.GOOS {
	case "darwin", "linux", "windows":
		if assert.Len(t, ran, 1) {
			assert.Contains(t, strings.Join(ran[0].Args, " "), "Always listening enabled")
		}
	default:
		assert.Empty(t, ran)
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	assert.Equal(t, "", r.Last())
	var n Notifier = &r
	n.Notify("a")
	n.Notify("b")
	assert.Equal(t, []string{"a", "b"}, r.Messages())
	assert.Equal(t, "b", r.Last())

	var got string
	Func(func(m string) { got = m }).Notify("c")
	assert.Equal(t, "c", got)
}
