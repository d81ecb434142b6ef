package mongosink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/failcore/runtime/runtime/trace"
)

func TestEventToBSONRoundTripsJSONTags(t *testing.T) {
	evt := trace.NewEvent(1, time.Now().UTC(), trace.LevelInfo, trace.RunInfo{
		RunID:     "run-1",
		CreatedAt: time.Now().UTC(),
		Tags:      []string{"proxy"},
	}, trace.EventEgress, &trace.StepRef{ID: "step-1", Tool: "proxy.anthropic"}, map[string]any{"status": float64(200)})

	doc, err := eventToBSON(evt)
	require.NoError(t, err)

	run, ok := doc["run"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "run-1", run["run_id"])

	body, ok := doc["event"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, string(trace.EventEgress), body["type"])
}

func TestNewSinkFlushAndCloseAreNoops(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Flush(nil))
	require.NoError(t, s.Close())
}
