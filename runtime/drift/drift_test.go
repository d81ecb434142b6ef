package drift_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/failcore/runtime/runtime/drift"
	"github.com/failcore/runtime/runtime/trace"
)

type snap struct {
	tool   string
	params map[string]any
	seq    uint64
}

func buildEvents(snaps []snap) []trace.Event {
	run := trace.RunInfo{RunID: "run_drift_test"}
	now := time.Now().UTC()
	events := make([]trace.Event, 0, len(snaps))
	for _, s := range snaps {
		step := &trace.StepRef{ID: "step", Tool: s.tool}
		events = append(events, trace.NewEvent(s.seq, now, trace.LevelInfo, run, trace.EventStepStart, step,
			map[string]any{"params": s.params}))
	}
	return events
}

// TestSameParametersNoDrift grounds
// tests/replay/drift/test_drift_basic.py::test_same_parameters_no_drift.
func TestSameParametersNoDrift(t *testing.T) {
	events := buildEvents([]snap{
		{tool: "read_file", params: map[string]any{"path": "/tmp/test.txt"}, seq: 1},
		{tool: "read_file", params: map[string]any{"path": "/tmp/test.txt"}, seq: 2},
		{tool: "read_file", params: map[string]any{"path": "/tmp/test.txt"}, seq: 3},
	})

	result := drift.ComputeDrift(events, nil)

	require.Len(t, result.DriftPoints, 3)
	for _, p := range result.DriftPoints {
		require.Equal(t, 0.0, p.DriftDelta)
	}
	require.Empty(t, result.InflectionPoints)
}

// TestSmallChangeLowDrift grounds test_small_change_low_drift: new
// fields added step over step score low (value_changed only).
func TestSmallChangeLowDrift(t *testing.T) {
	events := buildEvents([]snap{
		{tool: "read_file", params: map[string]any{"path": "/tmp/test.txt", "encoding": "utf-8"}, seq: 1},
		{tool: "read_file", params: map[string]any{"path": "/tmp/test.txt", "encoding": "utf-8", "mode": "r"}, seq: 2},
		{tool: "read_file", params: map[string]any{"path": "/tmp/test.txt", "encoding": "utf-8", "mode": "r", "buffering": 1}, seq: 3},
	})

	result := drift.ComputeDrift(events, nil)

	require.Equal(t, 0.0, result.DriftPoints[0].DriftDelta)
	require.Greater(t, result.DriftPoints[1].DriftDelta, 0.0)
	require.Less(t, result.DriftPoints[1].DriftDelta, 5.0)
	require.Greater(t, result.DriftPoints[2].DriftDelta, 0.0)
	require.Less(t, result.DriftPoints[2].DriftDelta, 5.0)

	require.NotContains(t, inflectionSeqs(result), uint64(1))

	change := result.DriftPoints[1].TopChanges[0]
	require.Equal(t, "mode", change.FieldPath)
	require.Equal(t, drift.ChangeValueChanged, change.ChangeType)
	require.Nil(t, change.BaselineValue)
	require.Equal(t, "r", change.CurrentValue)
	require.NotEmpty(t, change.Reason)
}

// TestDomainChangeHighDrift grounds test_domain_change_high_drift: a
// path field swapping root triggers domain_changed at high severity.
func TestDomainChangeHighDrift(t *testing.T) {
	events := buildEvents([]snap{
		{tool: "read_file", params: map[string]any{"path": "/tmp/test.txt"}, seq: 1},
		{tool: "read_file", params: map[string]any{"path": "/tmp/test.txt"}, seq: 2},
		{tool: "read_file", params: map[string]any{"path": "/etc/passwd"}, seq: 3},
	})

	result := drift.ComputeDrift(events, nil)

	require.Equal(t, 0.0, result.DriftPoints[0].DriftDelta)
	require.Equal(t, 0.0, result.DriftPoints[1].DriftDelta)
	require.GreaterOrEqual(t, result.DriftPoints[2].DriftDelta, 5.0)

	var found *drift.Change
	for i := range result.DriftPoints[2].TopChanges {
		c := result.DriftPoints[2].TopChanges[i]
		if c.ChangeType == drift.ChangeDomainChanged {
			found = &c
			break
		}
	}
	require.NotNil(t, found)
	require.Equal(t, "path", found.FieldPath)
	require.Equal(t, "/tmp/test.txt", found.BaselineValue)
	require.Equal(t, "/etc/passwd", found.CurrentValue)
	require.Equal(t, drift.SeverityHigh, found.Severity)
}

// TestIgnoreFieldsNormalization grounds test_ignore_fields_normalization
// and tests/drift/test_ignore_fields.py::test_ignore_multiple_fields.
func TestIgnoreFieldsNormalization(t *testing.T) {
	events := buildEvents([]snap{
		{tool: "test_tool", params: map[string]any{"path": "/tmp/test.txt", "request_id": "req1"}, seq: 1},
		{tool: "test_tool", params: map[string]any{"path": "/tmp/test.txt", "request_id": "req2"}, seq: 2},
		{tool: "test_tool", params: map[string]any{"path": "/tmp/test.txt", "request_id": "req3"}, seq: 3},
	})

	result := drift.ComputeDrift(events, nil)

	for _, p := range result.DriftPoints {
		require.Equal(t, 0.0, p.DriftDelta)
	}
	require.Empty(t, result.InflectionPoints)
}

// TestIgnoreNestedFieldNotIgnored grounds
// tests/drift/test_ignore_fields.py::test_ignore_nested_fields: ignore
// fields apply only at the top level, so a nested request id still
// drifts.
func TestIgnoreNestedFieldNotIgnored(t *testing.T) {
	events := buildEvents([]snap{
		{tool: "http_request", params: map[string]any{
			"url":     "https://api.example.com",
			"headers": map[string]any{"x-request-id": "req1"},
		}, seq: 1},
		{tool: "http_request", params: map[string]any{
			"url":     "https://api.example.com",
			"headers": map[string]any{"x-request-id": "req2"},
		}, seq: 2},
	})

	result := drift.ComputeDrift(events, nil)

	require.Equal(t, 0.0, result.DriftPoints[0].DriftDelta)
	require.Greater(t, result.DriftPoints[1].DriftDelta, 0.0)
}

// TestMagnitudeChangeDetection grounds test_magnitude_change_detection:
// weight is fixed at 2.0 regardless of how large the ratio is, only
// severity scales with it.
func TestMagnitudeChangeDetection(t *testing.T) {
	events := buildEvents([]snap{
		{tool: "test_tool", params: map[string]any{"timeout": 1}, seq: 1},
		{tool: "test_tool", params: map[string]any{"timeout": 5}, seq: 2},
		{tool: "test_tool", params: map[string]any{"timeout": 20}, seq: 3},
	})

	result := drift.ComputeDrift(events, nil)

	require.Equal(t, 0.0, result.DriftPoints[0].DriftDelta)
	medium := result.DriftPoints[1].TopChanges[0]
	require.Equal(t, drift.ChangeMagnitudeChanged, medium.ChangeType)
	require.Equal(t, 2.0, result.DriftPoints[1].DriftDelta)
	require.Equal(t, drift.SeverityMedium, medium.Severity)

	high := result.DriftPoints[2].TopChanges[0]
	require.Equal(t, drift.ChangeMagnitudeChanged, high.ChangeType)
	require.Equal(t, 2.0, result.DriftPoints[2].DriftDelta)
	require.Equal(t, drift.SeverityHigh, high.Severity)
}

// TestHostDomainChangeHighDrift grounds
// tests/drift/test_network_drift.py::test_host_domain_change_high_drift.
func TestHostDomainChangeHighDrift(t *testing.T) {
	events := buildEvents([]snap{
		{tool: "http_request", params: map[string]any{"host": "api.stripe.com", "path": "/v1/charges"}, seq: 1},
		{tool: "http_request", params: map[string]any{"host": "api.stripe.com", "path": "/v1/charges"}, seq: 2},
		{tool: "http_request", params: map[string]any{"host": "169.254.169.254", "path": "/v1/charges"}, seq: 3},
	})

	result := drift.ComputeDrift(events, nil)

	require.Equal(t, 0.0, result.DriftPoints[0].DriftDelta)
	require.Equal(t, 0.0, result.DriftPoints[1].DriftDelta)
	require.GreaterOrEqual(t, result.DriftPoints[2].DriftDelta, 5.0)

	var hostChange *drift.Change
	for i := range result.DriftPoints[2].TopChanges {
		c := result.DriftPoints[2].TopChanges[i]
		if c.FieldPath == "host" {
			hostChange = &c
		}
	}
	require.NotNil(t, hostChange)
	require.Equal(t, drift.ChangeDomainChanged, hostChange.ChangeType)
	require.Equal(t, drift.SeverityHigh, hostChange.Severity)
}

// TestHostPortChangeIsValueChanged grounds
// test_network_drift.py::test_host_port_change_value_changed: a port
// change on an otherwise identical host is a value change, not a
// domain change.
func TestHostPortChangeIsValueChanged(t *testing.T) {
	events := buildEvents([]snap{
		{tool: "http_request", params: map[string]any{"host": "api.example.com:443"}, seq: 1},
		{tool: "http_request", params: map[string]any{"host": "api.example.com:8080"}, seq: 2},
	})

	result := drift.ComputeDrift(events, nil)

	require.Equal(t, 0.0, result.DriftPoints[0].DriftDelta)
	require.Greater(t, result.DriftPoints[1].DriftDelta, 0.0)
	hostChange := result.DriftPoints[1].TopChanges[0]
	require.Equal(t, "host", hostChange.FieldPath)
	require.Equal(t, drift.ChangeValueChanged, hostChange.ChangeType)
}

// TestInflectionTriggeredByCompoundChanges grounds
// test_inflection_triggered.py::test_inflection_triggered_by_compound_changes:
// two simultaneous domain_changed fields (5.0 each) sum to 10.0 and
// cross the absolute threshold.
func TestInflectionTriggeredByCompoundChanges(t *testing.T) {
	events := buildEvents([]snap{
		{tool: "http_request", params: map[string]any{"host": "api.example.com", "path": "/v1/safe"}, seq: 1},
		{tool: "http_request", params: map[string]any{"host": "169.254.169.254", "path": "/latest/meta-data"}, seq: 2},
	})

	result := drift.ComputeDrift(events, nil)

	require.Equal(t, 10.0, result.DriftPoints[1].DriftDelta)
	seqs := inflectionSeqs(result)
	require.Contains(t, seqs, uint64(2))
}

// TestDriftCumulativeIsRunningSum grounds
// test_drift_points_shape.py::test_drift_cumulative_semantics.
func TestDriftCumulativeIsRunningSum(t *testing.T) {
	events := buildEvents([]snap{
		{tool: "test_tool", params: map[string]any{"timeout": 1}, seq: 1},
		{tool: "test_tool", params: map[string]any{"timeout": 5}, seq: 2},
		{tool: "test_tool", params: map[string]any{"timeout": 5}, seq: 3},
	})

	result := drift.ComputeDrift(events, nil)

	sum := 0.0
	for _, p := range result.DriftPoints {
		sum += p.DriftDelta
		require.Equal(t, sum, p.DriftCumulative)
	}
	// timeout 5 repeated: seq2 and seq3 score identical non-cumulative
	// drift_delta against the seq1 baseline.
	require.Equal(t, result.DriftPoints[1].DriftDelta, result.DriftPoints[2].DriftDelta)
}

func inflectionSeqs(result *drift.Result) []uint64 {
	seqs := make([]uint64, len(result.InflectionPoints))
	for i, ip := range result.InflectionPoints {
		seqs[i] = ip.Seq
	}
	return seqs
}
