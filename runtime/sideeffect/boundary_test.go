package sideeffect_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/failcore/runtime/runtime/sideeffect"
)

func TestReadOnlyBoundaryAllowsReadBlocksWrite(t *testing.T) {
	boundary := sideeffect.GetBoundary("read_only")
	auditor := sideeffect.NewSideEffectAuditor(boundary)

	require.False(t, auditor.CheckCrossing(sideeffect.FSRead))
	require.True(t, auditor.CheckCrossing(sideeffect.FSWrite))
	require.True(t, auditor.CheckCrossing(sideeffect.FSDelete))
}

func TestStrictBoundaryBlocksMost(t *testing.T) {
	boundary := sideeffect.GetBoundary("strict")
	auditor := sideeffect.NewSideEffectAuditor(boundary)

	require.False(t, auditor.CheckCrossing(sideeffect.FSRead))
	require.True(t, auditor.CheckCrossing(sideeffect.FSWrite))
	require.True(t, auditor.CheckCrossing(sideeffect.FSDelete))
	require.True(t, auditor.CheckCrossing(sideeffect.NetEgress))
	require.True(t, auditor.CheckCrossing(sideeffect.ExecCommand))
}

func TestPermissiveBoundaryAllowsFilesystemAndNetworkBlocksExec(t *testing.T) {
	boundary := sideeffect.GetBoundary("permissive")
	auditor := sideeffect.NewSideEffectAuditor(boundary)

	require.False(t, auditor.CheckCrossing(sideeffect.FSRead))
	require.False(t, auditor.CheckCrossing(sideeffect.FSWrite))
	require.False(t, auditor.CheckCrossing(sideeffect.NetEgress))
	require.True(t, auditor.CheckCrossing(sideeffect.ExecCommand))
	require.True(t, auditor.CheckCrossing(sideeffect.ExecSubprocess))
}

func TestUnknownBoundaryNameIsUnrestricted(t *testing.T) {
	boundary := sideeffect.GetBoundary("does_not_exist")
	auditor := sideeffect.NewSideEffectAuditor(boundary)
	require.False(t, auditor.CheckCrossing(sideeffect.ExecCommand))
}
