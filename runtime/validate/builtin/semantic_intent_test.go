package builtin_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/failcore/runtime/runtime/validate"
	"github.com/failcore/runtime/runtime/validate/builtin"
)

func TestSemanticIntentValidatorBlocksDangerousShellCommand(t *testing.T) {
	v := builtin.SemanticIntentValidator{}
	ctx := validate.Context{
		Tool:   "run_command",
		Params: map[string]any{"command": "rm -rf --force /"},
	}
	decisions := v.Evaluate(ctx, nil)
	require.Len(t, decisions, 1)
	require.True(t, decisions[0].IsBlocking())
	require.Equal(t, "FC_SEMANTIC_SHELL_DANGEROUS", decisions[0].Code)
}

func TestSemanticIntentValidatorAllowsBenignCall(t *testing.T) {
	v := builtin.SemanticIntentValidator{}
	ctx := validate.Context{
		Tool:   "read_file",
		Params: map[string]any{"path": "notes.txt"},
	}
	require.Empty(t, v.Evaluate(ctx, nil))
}
