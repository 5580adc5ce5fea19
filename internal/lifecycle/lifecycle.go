// Package lifecycle tracks whether the overlay is running and provides event
// hooks for its startup and shutdown.
package lifecycle

import (
	"sync"
	"sync/atomic"

	"github.com/neboloop/hitomi/internal/logging"
)

// Event types for lifecycle hooks
type Event string

const (
	EventOverlayStarted  Event = "overlay_started"
	EventShutdownStarted Event = "shutdown_started"
	EventOverlayStopped  Event = "overlay_stopped"

	EventWidgetHidden   Event = "widget_hidden"
	EventWidgetRestored Event = "widget_restored"
)

// Handler is a function that handles a lifecycle event
type Handler func(event Event, data any)

// Manager manages lifecycle event subscriptions and the running flag
type Manager struct {
	mu       sync.RWMutex
	handlers map[Event][]Handler
	running  atomic.Bool
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{handlers: make(map[Event][]Handler)}
}

// Global lifecycle manager
var global = NewManager()

// Default returns the process-wide manager.
func Default() *Manager { return global }

// On registers a handler for a lifecycle event
func On(event Event, handler Handler) {
	global.On(event, handler)
}

// Emit dispatches an event to all registered handlers
func Emit(event Event, data any) {
	global.Emit(event, data)
}

// Start marks the overlay running. It returns false if it already was.
func Start() bool { return global.Start() }

// Stop marks the overlay stopped.
func Stop() { global.Stop() }

// Running reports whether an overlay is up in this process.
func Running() bool { return global.Running() }

// On registers a handler for a lifecycle event
func (m *Manager) On(event Event, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], handler)
}

// Emit dispatches an event to all registered handlers
func (m *Manager) Emit(event Event, data any) {
	m.mu.RLock()
	handlers := m.handlers[event]
	m.mu.RUnlock()

	logging.Debugf("[lifecycle] Emitting event: %s", event)
	for _, h := range handlers {
		h(event, data)
	}
}

// Start sets the running flag and emits EventOverlayStarted on the first
// transition.
func (m *Manager) Start() bool {
	if !m.running.CompareAndSwap(false, true) {
		return false
	}
	m.Emit(EventOverlayStarted, nil)
	return true
}

// Stop clears the running flag, emitting the shutdown events around it. It
// is a no-op when not running.
func (m *Manager) Stop() {
	if !m.running.Load() {
		return
	}
	m.Emit(EventShutdownStarted, nil)
	m.running.Store(false)
	m.Emit(EventOverlayStopped, nil)
}

// Running reports the flag.
func (m *Manager) Running() bool { return m.running.Load() }

// OnShutdown is a convenience function to register a shutdown handler
func OnShutdown(handler func()) {
	On(EventShutdownStarted, func(e Event, data any) {
		handler()
	})
}
