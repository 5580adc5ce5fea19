// Package notify shows short user-facing notices ("toasts").
package notify

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/neboloop/hitomi/internal/logging"
)

// Title is used for every OS notification.
const Title = "Hitomi"

// Notifier shows a one-line notice to the user.
type Notifier interface {
	Notify(message string)
}

// Func adapts a function to Notifier.
type Func func(message string)

// Notify implements Notifier.
func (f Func) Notify(message string) { f(message) }

// OS shows notices through the platform notification system.
type OS struct {
	// run executes the command; tests replace it.
	run func(*exec.Cmd) error
}

// Notify displays a native OS notification.
// Falls back to a log line if the notification system is unavailable.
func (o OS) Notify(message string) {
	cmd := command(Title, message)
	if cmd == nil {
		logging.Infof("[notify] %s", message)
		return
	}
	run := o.run
	if run == nil {
		run = (*exec.Cmd).Run
	}
	if err := run(cmd); err != nil {
		logging.Warnf("[notify] failed to send notification: %v", err)
		logging.Infof("[notify] %s", message)
	}
}

func command(title, body string) *exec.Cmd {
	// Sanitize inputs to prevent command injection
	title = sanitize(title)
	body = sanitize(body)

	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf(`display notification %q with title %q`, body, title)
		return exec.Command("osascript", "-e", script)
	case "linux":
		return exec.Command("notify-send", title, body)
	case "windows":
		ps := fmt.Sprintf(`
[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] > $null
$template = [Windows.UI.Notifications.ToastNotificationManager]::GetTemplateContent([Windows.UI.Notifications.ToastTemplateType]::ToastText02)
$textNodes = $template.GetElementsByTagName('text')
$textNodes.Item(0).AppendChild($template.CreateTextNode('%s')) > $null
$textNodes.Item(1).AppendChild($template.CreateTextNode('%s')) > $null
$toast = [Windows.UI.Notifications.ToastNotification]::new($template)
[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier('Hitomi').Show($toast)
`, title, body)
		return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", ps)
	default:
		return nil
	}
}

// sanitize removes characters that could break shell quoting.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "'", "’")
	s = strings.ReplaceAll(s, "\\", "")
	if len(s) > 256 {
		s = s[:256] + "..."
	}
	return s
}

// Recorder keeps notices in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []string
}

// Notify implements Notifier.
func (r *Recorder) Notify(message string) {
	r.mu.Lock()
	r.messages = append(r.messages, message)
	r.mu.Unlock()
}

// Messages returns the notices so far.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

// Last returns the latest notice, or "".
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return ""
	}
	return r.messages[len(r.messages)-1]
}
