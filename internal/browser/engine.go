package browser

import "errors"

// ErrNoEngine is returned when the pane has no browser engine attached.
var ErrNoEngine = errors.New("browser: no engine")

// Engine is the embedded browser. Implementations may call back from any
// goroutine; the Pane moves callbacks onto the UI loop.
type Engine interface {
	// LoadURL starts navigating and returns without waiting for the load.
	LoadURL(url string) error
	// EvaluateScript runs script in the current page and reports the
	// JSON-encoded result.
	EvaluateScript(script string, done func(result string, err error))
	// OnPageFinished registers fn for every finished top-level load.
	OnPageFinished(fn func(url string))
}
