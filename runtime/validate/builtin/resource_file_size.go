package builtin

import (
	"fmt"
	"os"

	"github.com/failcore/runtime/runtime/policy"
	"github.com/failcore/runtime/runtime/validate"
	"github.com/failcore/runtime/runtime/validate/codes"
)

// ResourceFileSizeValidator blocks a call whose referenced file already
// exceeds a configured size, to prevent a tool from being used to read
// or otherwise process a file large enough to exhaust memory. It only
// checks files that already exist; a file a tool is about to create is
// out of scope (nothing to stat yet) and left to other resource limits.
type ResourceFileSizeValidator struct{}

var _ validate.BaseValidator = ResourceFileSizeValidator{}

func (ResourceFileSizeValidator) ID() string     { return "resource_file_size" }
func (ResourceFileSizeValidator) Domain() string { return "resource" }

func (ResourceFileSizeValidator) DefaultConfig() map[string]any {
	return map[string]any{
		"param_name": "path",
		"max_bytes":  int64(10 * 1024 * 1024),
	}
}

func (ResourceFileSizeValidator) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"param_name": map[string]any{"type": "string"},
			"max_bytes":  map[string]any{"type": "integer"},
		},
	}
}

func (v ResourceFileSizeValidator) Evaluate(ctx validate.Context, cfg *policy.ValidatorConfig) []validate.Decision {
	merged := validate.MergeConfig(v.DefaultConfig(), cfg)
	paramName, _ := merged["param_name"].(string)
	if paramName == "" {
		paramName = "path"
	}
	maxBytes := toInt64(merged["max_bytes"], 10*1024*1024)

	raw, ok := ctx.Param(paramName)
	if !ok {
		return nil
	}
	filePath, isStr := raw.(string)
	if !isStr {
		return []validate.Decision{blockDecision(
			codes.ResFileSizeParamType, v.ID(), ctx,
			fmt.Sprintf("Path parameter %q must be a string", paramName),
			map[string]any{"param": paramName, "got": fmt.Sprintf("%T", raw)},
		)}
	}

	info, err := os.Stat(filePath)
	if err != nil {
		// Nonexistent path: let the tool itself surface that error.
		return nil
	}
	if info.IsDir() {
		return nil
	}

	size := info.Size()
	if size > maxBytes {
		return []validate.Decision{blockDecision(
			codes.ResFileSizeExceeded, v.ID(), ctx,
			fmt.Sprintf("File size %d bytes exceeds limit %d bytes", size, maxBytes),
			map[string]any{
				"path": filePath, "size_bytes": size, "max_bytes": maxBytes,
				"size_mb": mb(size), "max_mb": mb(maxBytes),
			},
		)}
	}
	return nil
}

func mb(bytes int64) float64 {
	return float64(bytes) / 1024 / 1024
}

func toInt64(v any, def int64) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return def
	}
}
