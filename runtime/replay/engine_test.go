package replay_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/failcore/runtime/runtime/pipeline"
	"github.com/failcore/runtime/runtime/replay"
	"github.com/failcore/runtime/runtime/telemetry"
	"github.com/failcore/runtime/runtime/trace"
)

func historicalEvents() []trace.Event {
	run := trace.RunInfo{RunID: "run_hist"}
	now := time.Now().UTC()
	step := &trace.StepRef{ID: "s1", Tool: "fetch_url", Attempt: 1}

	start := trace.NewEvent(1, now, trace.LevelInfo, run, trace.EventStepStart, step,
		map[string]any{"params": map[string]any{"url": "https://example.com"}})
	end := trace.NewEvent(2, now, trace.LevelInfo, run, trace.EventStepEnd, step,
		map[string]any{
			"status": "OK",
			"output": map[string]any{"kind": "json", "value": map[string]any{"status": 200}},
		})
	return []trace.Event{start, end}
}

func TestEngineHitReturnsHistoricalOutput(t *testing.T) {
	events := historicalEvents()
	eng := replay.NewEngineFromEvents(replay.ModeMock, "hist.jsonl", events)

	fp := pipeline.Fingerprint("fetch_url", map[string]any{"url": "https://example.com"})
	outcome := eng.ReplayStep("s2", "fetch_url", map[string]any{"url": "https://example.com"}, fp, true, "")

	require.Equal(t, "HIT", outcome.HitType)
	require.Equal(t, "s1", outcome.MatchedStepID)
	require.NotNil(t, outcome.InjectedOutput)
	require.Equal(t, pipeline.KindJSON, outcome.InjectedOutput.Kind)
	require.Nil(t, outcome.PolicyDiff)
}

func TestEngineMissForUnseenParams(t *testing.T) {
	events := historicalEvents()
	eng := replay.NewEngineFromEvents(replay.ModeReport, "hist.jsonl", events)

	fp := pipeline.Fingerprint("fetch_url", map[string]any{"url": "https://other.example.com"})
	outcome := eng.ReplayStep("s2", "fetch_url", map[string]any{"url": "https://other.example.com"}, fp, true, "")

	require.Equal(t, "MISS", outcome.HitType)
}

func TestEnginePolicyDiffOnAllowedMismatch(t *testing.T) {
	run := trace.RunInfo{RunID: "run_hist"}
	now := time.Now().UTC()
	step := &trace.StepRef{ID: "s1", Tool: "delete_file", Attempt: 1}
	params := map[string]any{"path": "/tmp/a.txt"}

	start := trace.NewEvent(1, now, trace.LevelInfo, run, trace.EventStepStart, step,
		map[string]any{"params": params})
	end := trace.NewEvent(2, now, trace.LevelWarn, run, trace.EventStepEnd, step,
		map[string]any{"status": "BLOCKED"})

	eng := replay.NewEngineFromEvents(replay.ModeResume, "hist.jsonl", []trace.Event{start, end})
	fp := pipeline.Fingerprint("delete_file", params)
	outcome := eng.ReplayStep("s2", "delete_file", params, fp, true, "now allowed")

	require.Equal(t, "HIT", outcome.HitType)
	require.NotNil(t, outcome.PolicyDiff)
	require.False(t, outcome.PolicyDiff.HistoricalAllowed)
	require.True(t, outcome.PolicyDiff.CurrentAllowed)
}

func TestEngineSatisfiesPipelineReplayer(t *testing.T) {
	var _ pipeline.Replayer = (*replay.Engine)(nil)
}

// TestPipelineMockModeInjectsHistoricalOutputWithoutDispatch grounds
// spec.md §4.7: in mock mode, a replay HIT returns the historical
// output and the tool itself is never invoked.
func TestPipelineMockModeInjectsHistoricalOutputWithoutDispatch(t *testing.T) {
	events := historicalEvents()
	eng := replay.NewEngineFromEvents(replay.ModeMock, "hist.jsonl", events)

	tc := trace.NewContext("run_current", time.Now().UTC(), "", "")
	writer := trace.NewWriter(tc, nil, telemetry.NewNoopLogger())
	tools := pipeline.NewToolRegistry()

	called := false
	tools.Register("fetch_url", func(params map[string]any) (any, error) {
		called = true
		return "should not run", nil
	})

	p := pipeline.New(tools, writer, telemetry.NewNoopLogger())
	p.Replayer = eng

	result := p.Execute(context.Background(), pipeline.Step{
		ID: "s2", Tool: "fetch_url", Params: map[string]any{"url": "https://example.com"},
	})

	require.Equal(t, pipeline.StatusReplayed, result.Status)
	require.False(t, called)
	require.NotNil(t, result.Output)
	require.Equal(t, pipeline.KindJSON, result.Output.Kind)
}

// TestPipelineResumeModeDispatchesOnMiss grounds the §4.7 note that the
// tool is only ever actually executed when the replay mode is "resume".
func TestPipelineResumeModeDispatchesOnMiss(t *testing.T) {
	eng := replay.NewEngineFromEvents(replay.ModeResume, "hist.jsonl", nil)

	tc := trace.NewContext("run_current", time.Now().UTC(), "", "")
	writer := trace.NewWriter(tc, nil, telemetry.NewNoopLogger())
	tools := pipeline.NewToolRegistry()

	called := false
	tools.Register("fetch_url", func(params map[string]any) (any, error) {
		called = true
		return "fresh", nil
	})

	p := pipeline.New(tools, writer, telemetry.NewNoopLogger())
	p.Replayer = eng

	result := p.Execute(context.Background(), pipeline.Step{
		ID: "s3", Tool: "fetch_url", Params: map[string]any{"url": "https://new.example.com"},
	})

	require.Equal(t, pipeline.StatusOK, result.Status)
	require.True(t, called)
}
