package pipeline_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/failcore/runtime/runtime/pipeline"
	"github.com/failcore/runtime/runtime/semantic"
	"github.com/failcore/runtime/runtime/sideeffect"
	"github.com/failcore/runtime/runtime/telemetry"
	"github.com/failcore/runtime/runtime/trace"
	"github.com/failcore/runtime/runtime/validate/codes"
)

// memSink is an in-memory trace.Sink that records every appended event,
// for assertions without touching the filesystem.
type memSink struct {
	mu     sync.Mutex
	events []trace.Event
}

func (s *memSink) Append(_ context.Context, e trace.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}
func (s *memSink) Flush(context.Context) error { return nil }
func (s *memSink) Close() error                { return nil }

func (s *memSink) types() []trace.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]trace.EventType, len(s.events))
	for i, e := range s.events {
		out[i] = e.Event.Type
	}
	return out
}

func newTestPipeline(t *testing.T) (*pipeline.Pipeline, *memSink) {
	t.Helper()
	sink := &memSink{}
	tc := trace.NewContext("run_test", time.Now().UTC(), "", "")
	writer := trace.NewWriter(tc, sink, telemetry.NewNoopLogger())
	tools := pipeline.NewToolRegistry()
	p := pipeline.New(tools, writer, telemetry.NewNoopLogger())
	return p, sink
}

func TestPipelineBasicValidationBlocksEmptyTool(t *testing.T) {
	p, _ := newTestPipeline(t)
	result := p.Execute(context.Background(), pipeline.Step{ID: "s1", Tool: "", Params: map[string]any{}})
	require.Equal(t, pipeline.StatusBlocked, result.Status)
	require.Equal(t, codes.ParamInvalid, result.Error.Code)
}

func TestPipelineToolNotFoundFails(t *testing.T) {
	p, _ := newTestPipeline(t)
	result := p.Execute(context.Background(), pipeline.Step{ID: "s1", Tool: "ghost_tool", Params: map[string]any{}})
	require.Equal(t, pipeline.StatusFail, result.Status)
	require.Equal(t, codes.ToolNotFound, result.Error.Code)
}

func TestPipelineDispatchSuccessNormalizesTextOutput(t *testing.T) {
	p, sink := newTestPipeline(t)
	p.Tools.Register("echo", func(params map[string]any) (any, error) {
		return params["message"], nil
	})

	result := p.Execute(context.Background(), pipeline.Step{
		ID: "s1", Tool: "echo", Params: map[string]any{"message": "hello"},
	})

	require.Equal(t, pipeline.StatusOK, result.Status)
	require.NotNil(t, result.Output)
	require.Equal(t, pipeline.KindText, result.Output.Kind)
	require.Equal(t, "hello", result.Output.Value)
	require.Contains(t, sink.types(), trace.EventStepStart)
	require.Contains(t, sink.types(), trace.EventStepEnd)
}

// TestPipelineSideEffectBoundaryBlocksSandboxEscape grounds spec.md §8
// scenario 1: a write call inside a read_only boundary must be blocked
// before Dispatch ever runs the tool.
func TestPipelineSideEffectBoundaryBlocksSandboxEscape(t *testing.T) {
	p, _ := newTestPipeline(t)
	p.SideEffectGate = sideeffect.NewSideEffectBoundaryGate(sideeffect.GetBoundary("read_only"))

	called := false
	p.Tools.Register("write_file", func(params map[string]any) (any, error) {
		called = true
		return "should not run", nil
	})

	result := p.Execute(context.Background(), pipeline.Step{
		ID: "s1", Tool: "write_file", Params: map[string]any{"path": "/tmp/a.txt"},
	})

	require.Equal(t, pipeline.StatusBlocked, result.Status)
	require.Equal(t, "SIDE_EFFECT_BOUNDARY_CROSSED", result.Error.Code)
	require.False(t, called, "tool must not dispatch once the boundary gate blocks")
}

func TestPipelineSemanticGuardBlocksDangerousShell(t *testing.T) {
	p, _ := newTestPipeline(t)
	p.SemanticGuard = semantic.NewGuard(telemetry.NewNoopLogger())

	called := false
	p.Tools.Register("run_command", func(params map[string]any) (any, error) {
		called = true
		return "ok", nil
	})

	result := p.Execute(context.Background(), pipeline.Step{
		ID: "s1", Tool: "run_command", Params: map[string]any{"command": "rm -r -f /tmp/x"},
	})

	require.Equal(t, pipeline.StatusBlocked, result.Status)
	require.Equal(t, codes.SemanticViolation, result.Error.Code)
	require.False(t, called)
}

// TestPipelineOutputContractWarnsOnMismatch grounds spec.md §8 scenario 3:
// a declared contract mismatch is reported but, absent strict mode, does
// not fail the step.
func TestPipelineOutputContractWarnsOnMismatch(t *testing.T) {
	p, sink := newTestPipeline(t)
	p.Tools.Register("fetch", func(params map[string]any) (any, error) {
		return "not-json", nil
	})

	result := p.Execute(context.Background(), pipeline.Step{
		ID: "s1", Tool: "fetch", Params: map[string]any{}, ExpectedKind: pipeline.KindJSON,
	})

	require.Equal(t, pipeline.StatusOK, result.Status)
	require.Contains(t, sink.types(), trace.EventOutputNormalized)
}

func TestPipelineOutputContractStrictBlocksOnMismatch(t *testing.T) {
	p, _ := newTestPipeline(t)
	p.Config.StrictOutputContract = true
	p.Tools.Register("fetch", func(params map[string]any) (any, error) {
		return "not-json", nil
	})

	result := p.Execute(context.Background(), pipeline.Step{
		ID: "s1", Tool: "fetch", Params: map[string]any{}, ExpectedKind: pipeline.KindJSON,
	})

	require.Equal(t, pipeline.StatusBlocked, result.Status)
	require.Equal(t, codes.ContractTypeMismatch, result.Error.Code)
}

func TestPipelineAttemptCounterIncrementsPerStepID(t *testing.T) {
	p, _ := newTestPipeline(t)
	p.Tools.Register("noop", func(params map[string]any) (any, error) { return "ok", nil })

	step := pipeline.Step{ID: "s1", Tool: "noop", Params: map[string]any{}}
	first := p.Execute(context.Background(), step)
	second := p.Execute(context.Background(), step)

	require.Equal(t, 1, first.Meta["attempt"])
	require.Equal(t, 2, second.Meta["attempt"])
}

func TestPipelineRecoversToolPanic(t *testing.T) {
	p, _ := newTestPipeline(t)
	p.Tools.Register("boom", func(params map[string]any) (any, error) {
		panic("kaboom")
	})

	result := p.Execute(context.Background(), pipeline.Step{ID: "s1", Tool: "boom", Params: map[string]any{}})
	require.Equal(t, pipeline.StatusFail, result.Status)
	require.Equal(t, codes.ToolRaised, result.Error.Code)
}
