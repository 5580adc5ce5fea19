// Package metrics holds the process counters exposed on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Chat turn outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeFollowUp = "follow_up"
	OutcomeDropped  = "dropped"
)

// Snapshot resolution paths.
const (
	PathPageFinished = "page_finished"
	PathTimeout      = "timeout"
	PathPreempted    = "preempted"
	PathUnavailable  = "unavailable"
)

var (
	// ChatTurns counts completed chat turns by outcome.
	ChatTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hitomi",
		Name:      "chat_turns_total",
		Help:      "Chat turns completed, by outcome.",
	}, []string{"outcome"})

	// SnapshotResolutions counts how pending page snapshots were resolved.
	SnapshotResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hitomi",
		Name:      "snapshot_resolutions_total",
		Help:      "Page snapshot requests resolved, by path.",
	}, []string{"path"})

	// SpeechRestarts counts scheduled recognizer restarts by reason.
	SpeechRestarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hitomi",
		Name:      "speech_restarts_total",
		Help:      "Speech session restarts scheduled, by reason.",
	}, []string{"reason"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
