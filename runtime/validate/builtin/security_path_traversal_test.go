package builtin_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/failcore/runtime/runtime/validate"
	"github.com/failcore/runtime/runtime/validate/builtin"
)

func TestPathTraversalAllowsWithinSandbox(t *testing.T) {
	sandbox := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(sandbox, "a.txt"), []byte("x"), 0o644))

	v := builtin.PathTraversalValidator{}
	ctx := validate.Context{
		Tool:     "read_file",
		Params:   map[string]any{"path": "a.txt"},
		Metadata: map[string]any{"sandbox_root": sandbox},
	}
	decisions := v.Evaluate(ctx, nil)
	require.Empty(t, decisions)
}

func TestPathTraversalBlocksEscape(t *testing.T) {
	sandbox := t.TempDir()

	v := builtin.PathTraversalValidator{}
	ctx := validate.Context{
		Tool:     "read_file",
		Params:   map[string]any{"path": "../../etc/passwd"},
		Metadata: map[string]any{"sandbox_root": sandbox},
	}
	decisions := v.Evaluate(ctx, nil)
	require.Len(t, decisions, 1)
	require.True(t, decisions[0].IsBlocking())
	require.Equal(t, "FC_SEC_PATH_TRAVERSAL", decisions[0].Code)
}

func TestPathTraversalBlocksTrailingManipulation(t *testing.T) {
	sandbox := t.TempDir()

	v := builtin.PathTraversalValidator{}
	ctx := validate.Context{
		Tool:     "read_file",
		Params:   map[string]any{"path": "a.txt "},
		Metadata: map[string]any{"sandbox_root": sandbox},
	}
	decisions := v.Evaluate(ctx, nil)
	require.Len(t, decisions, 1)
	require.Equal(t, "FC_SEC_PATH_TRAILING_MANIPULATION", decisions[0].Code)
}

func TestPathTraversalBlocksMixedSeparators(t *testing.T) {
	sandbox := t.TempDir()

	v := builtin.PathTraversalValidator{}
	ctx := validate.Context{
		Tool:     "read_file",
		Params:   map[string]any{"path": `sub/dir\file.txt`},
		Metadata: map[string]any{"sandbox_root": sandbox},
	}
	decisions := v.Evaluate(ctx, nil)
	require.Len(t, decisions, 1)
	require.Equal(t, "FC_SEC_PATH_MIXED_SEPARATORS", decisions[0].Code)
}

func TestPathTraversalSkipsWhenNoPathParam(t *testing.T) {
	v := builtin.PathTraversalValidator{}
	decisions := v.Evaluate(validate.Context{Tool: "x", Params: map[string]any{}}, nil)
	require.Empty(t, decisions)
}
