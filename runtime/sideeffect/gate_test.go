package sideeffect_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/failcore/runtime/runtime/sideeffect"
)

func TestGateAllowsWithinBoundary(t *testing.T) {
	gate := sideeffect.NewSideEffectBoundaryGate(sideeffect.GetBoundary("read_only"))
	allowed, result, predicted := gate.Check("read_file", map[string]any{"path": "/tmp/a.txt"}, "step_1")
	require.True(t, allowed)
	require.Nil(t, result)
	require.NotEmpty(t, predicted)
	require.Contains(t, predicted, sideeffect.PredictedSideEffect{Type: sideeffect.FSRead, Target: "/tmp/a.txt", Confidence: "high"})
}

func TestGateBlocksCrossingBoundary(t *testing.T) {
	gate := sideeffect.NewSideEffectBoundaryGate(sideeffect.GetBoundary("read_only"))
	allowed, result, predicted := gate.Check("write_file", map[string]any{"path": "/tmp/a.txt"}, "step_1")
	require.False(t, allowed)
	require.NotNil(t, result)
	require.True(t, result.IsBlocking())
	require.Equal(t, "SIDE_EFFECT_BOUNDARY_CROSSED", result.Code)
	require.Equal(t, "write_file", result.Tool)
	require.Equal(t, "step_1", result.StepID)
	require.NotEmpty(t, predicted)
}

func TestGateWithNilBoundaryAllowsEverything(t *testing.T) {
	gate := sideeffect.NewSideEffectBoundaryGate(nil)
	allowed, result, _ := gate.Check("run_shell", map[string]any{"command": "rm -rf /"}, "step_1")
	require.True(t, allowed)
	require.Nil(t, result)
}

func TestDetectFilesystemSideEffectRequiresPathParam(t *testing.T) {
	require.Equal(t, sideeffect.FSRead, sideeffect.DetectFilesystemSideEffect("read_file", map[string]any{"path": "x"}, "read"))
	require.Equal(t, sideeffect.SideEffectType(""), sideeffect.DetectFilesystemSideEffect("read_file", map[string]any{}, "read"))
	require.Equal(t, sideeffect.SideEffectType(""), sideeffect.DetectFilesystemSideEffect("unrelated_tool", map[string]any{"path": "x"}, "read"))
}

func TestDetectExecSideEffectVariants(t *testing.T) {
	require.Equal(t, sideeffect.ExecSubprocess, sideeffect.DetectExecSideEffect("run_subprocess", map[string]any{"command": "ls"}))
	require.Equal(t, sideeffect.ExecScript, sideeffect.DetectExecSideEffect("run_script", map[string]any{"command": "ls"}))
	require.Equal(t, sideeffect.ExecCommand, sideeffect.DetectExecSideEffect("run_command", map[string]any{"command": "ls"}))
}

func TestPredictSideEffectsCanYieldAllThreeFilesystemOperations(t *testing.T) {
	gate := sideeffect.NewSideEffectBoundaryGate(sideeffect.GetBoundary("permissive"))
	_, result, predicted := gate.Check("delete_file", map[string]any{"path": "/tmp/a.txt"}, "step_1")
	var types []sideeffect.SideEffectType
	for _, p := range predicted {
		types = append(types, p.Type)
	}
	require.Contains(t, types, sideeffect.FSRead)
	require.Contains(t, types, sideeffect.FSWrite)
	require.Contains(t, types, sideeffect.FSDelete)
	require.NotNil(t, result)
	require.Equal(t, "SIDE_EFFECT_BOUNDARY_CROSSED", result.Code)
}
