package builtin_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/failcore/runtime/runtime/policy"
	"github.com/failcore/runtime/runtime/validate"
	"github.com/failcore/runtime/runtime/validate/builtin"
)

func TestResourceFileSizeAllowsSmallFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	v := builtin.ResourceFileSizeValidator{}
	decisions := v.Evaluate(validate.Context{Params: map[string]any{"path": path}}, nil)
	require.Empty(t, decisions)
}

func TestResourceFileSizeBlocksLargeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.txt")
	require.NoError(t, os.WriteFile(path, make([]byte, 1024), 0o644))

	v := builtin.ResourceFileSizeValidator{}
	cfg := &policy.ValidatorConfig{Config: map[string]any{"max_bytes": int64(100)}}
	decisions := v.Evaluate(validate.Context{Params: map[string]any{"path": path}}, cfg)
	require.Len(t, decisions, 1)
	require.Equal(t, "FC_RES_FILE_SIZE_EXCEEDED", decisions[0].Code)
}

func TestResourceFileSizeSkipsMissingFile(t *testing.T) {
	v := builtin.ResourceFileSizeValidator{}
	decisions := v.Evaluate(validate.Context{Params: map[string]any{"path": "/no/such/file"}}, nil)
	require.Empty(t, decisions)
}
