package taint_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/failcore/runtime/runtime/taint"
)

func TestMemStoreMarkAndGetTags(t *testing.T) {
	store := taint.NewMemStore()
	require.False(t, store.IsTainted("s1"))

	store.MarkTainted("s1", taint.TaintTag{
		Sensitivity:  taint.SensitivityPII,
		Source:       taint.SourceToolOutput,
		SourceTool:   "read_file",
		SourceStepID: "s1",
	})

	require.True(t, store.IsTainted("s1"))
	tags := store.GetTags("s1")
	require.Len(t, tags, 1)
	require.Equal(t, "read_file", tags[0].SourceTool)
}

func TestMemStoreDetectTaintedInputsByDependency(t *testing.T) {
	store := taint.NewMemStore()
	store.MarkTainted("s1", taint.TaintTag{Sensitivity: taint.SensitivityPII, SourceStepID: "s1"})

	tags := store.DetectTaintedInputs(map[string]any{"x": "y"}, []string{"s1"})
	require.Len(t, tags, 1)
	require.Equal(t, 1, tags[0].PropagationDepth)
}

func TestMemStoreDetectTaintedInputsByValue(t *testing.T) {
	store := taint.NewMemStore()
	customerData := map[string]any{"name": "John Doe", "email": "john@example.com"}

	store.MarkTainted("s1", taint.TaintTag{Sensitivity: taint.SensitivityPII, SourceStepID: "s1"})
	store.IndexValue("s1", customerData)

	params := map[string]any{
		"to":   "external@example.com",
		"body": customerData,
	}
	tags := store.DetectTaintedInputs(params, nil)
	require.Len(t, tags, 1)
	require.Equal(t, taint.SensitivityPII, tags[0].Sensitivity)
}

func TestMemStoreDetectTaintedInputsNoMatch(t *testing.T) {
	store := taint.NewMemStore()
	store.MarkTainted("s1", taint.TaintTag{Sensitivity: taint.SensitivityPII, SourceStepID: "s1"})
	store.IndexValue("s1", map[string]any{"email": "a@b.com"})

	tags := store.DetectTaintedInputs(map[string]any{"body": "unrelated text"}, nil)
	require.Empty(t, tags)
}

func TestMemStoreSinkRegistration(t *testing.T) {
	store := taint.NewMemStore()
	require.False(t, store.IsSinkTool("custom_sink"))
	store.RegisterSink("custom_sink")
	require.True(t, store.IsSinkTool("custom_sink"))
}

func TestMemStoreSummary(t *testing.T) {
	store := taint.NewMemStore()
	for i := 1; i <= 3; i++ {
		store.MarkTainted(string(rune('a'+i)), taint.TaintTag{
			Sensitivity: taint.SensitivityPII,
			Source:      taint.SourceToolOutput,
		})
	}
	summary := store.GetSummary()
	require.Equal(t, 3, summary.TaintedSteps)
	require.Equal(t, 3, summary.SensitivityDistribution["pii"])
	require.Equal(t, 3, summary.SourceDistribution["tool_output"])
}
