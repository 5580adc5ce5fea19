package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersExposed(t *testing.T) {
	before := testutil.ToFloat64(SpeechRestarts.WithLabelValues("busy"))
	SpeechRestarts.WithLabelValues("busy").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(SpeechRestarts.WithLabelValues("busy")))

	ChatTurns.WithLabelValues(OutcomeOK).Inc()
	SnapshotResolutions.WithLabelValues(PathTimeout).Inc()

	srv := httptest.NewServer(Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `hitomi_speech_restarts_total{reason="busy"}`)
	assert.Contains(t, string(body), `hitomi_chat_turns_total{outcome="ok"}`)
	assert.Contains(t, string(body), `hitomi_snapshot_resolutions_total{path="timeout"}`)
}
