// Package crashlog keeps recovered panics and errors in a JSON-lines file
// next to the config, so a crash in a scheduled callback can be reported
// after the fact.
package crashlog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/neboloop/hitomi/internal/logging"
)

// FileName is the log file inside the data directory.
const FileName = "crash.log"

// Entry is one line of the crash log.
type Entry struct {
	Time       time.Time         `json:"time"`
	Level      string            `json:"level"`
	Module     string            `json:"module"`
	Message    string            `json:"message"`
	Stacktrace string            `json:"stacktrace,omitempty"`
	Context    map[string]string `json:"context,omitempty"`
}

// Logger appends entries to a writer.
// Safe for concurrent use from multiple goroutines.
type Logger struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
}

var (
	global   *Logger
	globalMu sync.Mutex
)

// Init opens path for appending and installs it as the global crash log.
func Init(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open crash log: %w", err)
	}
	install(&Logger{w: f, closer: f})
	return nil
}

// SetWriter installs w as the global crash log; nil removes it.
func SetWriter(w io.Writer) {
	if w == nil {
		install(nil)
		return
	}
	install(&Logger{w: w})
}

// Close closes the global crash log.
func Close() {
	install(nil)
}

func install(l *Logger) {
	globalMu.Lock()
	old := global
	global = l
	globalMu.Unlock()
	if old != nil && old.closer != nil {
		_ = old.closer.Close()
	}
}

func current() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	return global
}

// LogPanic records a recovered panic with a stack trace. It must be called
// from the deferred function that recovered.
// Safe to call even if Init() was never called (logs only).
func LogPanic(module string, r any, ctx map[string]string) {
	msg := fmt.Sprintf("%v", r)
	stack := make([]byte, 4096)
	n := runtime.Stack(stack, false)
	stackStr := string(stack[:n])

	// Always log for immediate visibility
	logging.Errorf("[%s] recovered panic: %s\n%s", module, msg, stackStr)

	if l := current(); l != nil {
		l.write("panic", module, msg, stackStr, ctx)
	}
}

// LogError records an error with optional context.
func LogError(module string, err error, ctx map[string]string) {
	if err == nil {
		return
	}
	logging.Errorf("[%s] %v", module, err)
	if l := current(); l != nil {
		l.write("error", module, err.Error(), "", ctx)
	}
}

// LogWarn records a warning.
func LogWarn(module string, msg string, ctx map[string]string) {
	logging.Warnf("[%s] %s", module, msg)
	if l := current(); l != nil {
		l.write("warn", module, msg, "", ctx)
	}
}

func (l *Logger) write(level, module, message, stacktrace string, ctx map[string]string) {
	line, err := json.Marshal(Entry{
		Time:       time.Now().UTC(),
		Level:      level,
		Module:     module,
		Message:    message,
		Stacktrace: stacktrace,
		Context:    ctx,
	})
	if err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.w.Write(append(line, '\n'))
}
