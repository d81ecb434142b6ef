package builtin

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/failcore/runtime/runtime/policy"
	"github.com/failcore/runtime/runtime/validate"
	"github.com/failcore/runtime/runtime/validate/codes"
)

// PathTraversalValidator defends the sandbox boundary: it rejects
// trailing-dot/space manipulation, mixed separators, UNC paths, and any
// path whose resolved (symlink-following) location falls outside the
// sandbox root, walking up through parent directories that do not yet
// exist to find where the escape actually happens.
type PathTraversalValidator struct{}

var _ validate.BaseValidator = PathTraversalValidator{}

func (PathTraversalValidator) ID() string     { return "security_path_traversal" }
func (PathTraversalValidator) Domain() string { return "security" }

func (PathTraversalValidator) DefaultConfig() map[string]any {
	return map[string]any{
		"path_params":  []string{"path", "file_path", "relative_path"},
		"sandbox_root": "",
	}
}

func (PathTraversalValidator) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path_params":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"sandbox_root": map[string]any{"type": "string"},
		},
	}
}

func (v PathTraversalValidator) Evaluate(ctx validate.Context, cfg *policy.ValidatorConfig) []validate.Decision {
	merged := validate.MergeConfig(v.DefaultConfig(), cfg)
	pathParams := stringSlice(merged["path_params"])
	configSandboxRoot, _ := merged["sandbox_root"].(string)

	sandboxRoot, sandboxSource := resolveSandboxRoot(ctx, configSandboxRoot)

	var pathValue any
	var foundParam string
	for _, p := range pathParams {
		if pv, ok := ctx.Param(p); ok {
			pathValue = pv
			foundParam = p
			break
		}
	}
	if pathValue == nil {
		return nil
	}
	pathStr := fmt.Sprint(pathValue)
	if pathStr == "" {
		return nil
	}

	// Trailing dot/space manipulation must be caught before any
	// normalization: normalizing first would silently absorb the attack.
	cleaned := strings.TrimRight(pathStr, ". ")
	if cleaned != pathStr {
		return []validate.Decision{blockDecision(
			codes.SecPathTrailingManipulation, v.ID(), ctx,
			fmt.Sprintf("Path with trailing dots/spaces not allowed: %q", pathStr),
			map[string]any{
				"path": pathStr, "normalized": cleaned, "reason": "trailing_manipulation",
				"field": foundParam, "sandbox_root": sandboxRoot, "sandbox_root_source": sandboxSource,
			},
		)}
	}
	pathStr = strings.TrimSpace(pathStr)

	if strings.Contains(pathStr, "\\") && strings.Contains(pathStr, "/") {
		return []validate.Decision{blockDecision(
			codes.SecPathMixedSeparators, v.ID(), ctx,
			fmt.Sprintf("Mixed path separators not allowed: %q", pathStr),
			map[string]any{"path": pathStr, "reason": "mixed_separators", "field": foundParam},
		)}
	}

	if strings.HasPrefix(pathStr, `\\`) || strings.HasPrefix(pathStr, "//") {
		return []validate.Decision{blockDecision(
			codes.SecPathUNC, v.ID(), ctx,
			fmt.Sprintf("UNC paths are not allowed: %q", pathStr),
			map[string]any{
				"path": pathStr, "reason": "unc_path", "field": foundParam,
				"sandbox_root": sandboxRoot, "sandbox_root_source": sandboxSource,
			},
		)}
	}

	var fullPath string
	if filepath.IsAbs(pathStr) {
		fullPath = filepath.Clean(pathStr)
	} else {
		fullPath = filepath.Join(sandboxRoot, pathStr)
	}

	resolved, d := resolveWithinSandbox(fullPath, sandboxRoot, pathStr, foundParam, sandboxSource, v.ID(), ctx)
	if d != nil {
		return []validate.Decision{*d}
	}

	rel, err := filepath.Rel(sandboxRoot, resolved)
	if err != nil || strings.HasPrefix(rel, "..") {
		isTraversal := strings.Contains(pathStr, "..")
		code := codes.SecSandboxViolation
		msg := fmt.Sprintf("Path is outside sandbox boundary: %q", pathStr)
		reason := "outside_sandbox"
		if isTraversal {
			code = codes.SecPathTraversal
			msg = fmt.Sprintf("Path traversal detected: %q attempts to escape sandbox", pathStr)
			reason = "traversal"
		}
		return []validate.Decision{blockDecision(code, v.ID(), ctx, msg, map[string]any{
			"path": pathStr, "sandbox_root": sandboxRoot, "sandbox_root_source": sandboxSource,
			"resolved": resolved, "reason": reason, "field": foundParam,
		})}
	}

	return nil
}

// resolveWithinSandbox resolves symlinks along fullPath (falling back to
// the nearest existing ancestor when the path does not yet exist) and
// reports a Decision if any resolved component already lies outside the
// sandbox — catching escapes via symlink/junction before the final
// boundary check even runs.
func resolveWithinSandbox(fullPath, sandboxRoot, pathValue, foundParam, sandboxSource, validatorID string, ctx validate.Context) (string, *validate.Decision) {
	if _, err := os.Lstat(fullPath); err == nil {
		resolved, err := filepath.EvalSymlinks(fullPath)
		if err != nil {
			resolved = fullPath
		}
		current := resolved
		for {
			parent := filepath.Dir(current)
			if parent == current {
				break
			}
			current = parent
			if current == sandboxRoot {
				break
			}
			rel, err := filepath.Rel(sandboxRoot, current)
			if err != nil || strings.HasPrefix(rel, "..") {
				isTraversal := strings.Contains(pathValue, "..")
				d := blockDecisionPtr(codes.SecSandboxViolation, validatorID, ctx,
					fmt.Sprintf("Path escapes sandbox via symlink/junction: %q", pathValue),
					map[string]any{
						"path": pathValue, "sandbox_root": sandboxRoot, "sandbox_root_source": sandboxSource,
						"resolved": resolved, "escape_point": current, "reason": "symlink_escape",
						"field": foundParam, "is_traversal": isTraversal,
					})
				return "", d
			}
		}
		return resolved, nil
	}

	// Path does not exist yet: resolve the nearest existing ancestor and
	// check that instead, since a create-new-file call has no symlink to
	// walk through on the leaf itself.
	ancestor := filepath.Dir(fullPath)
	for {
		if _, err := os.Lstat(ancestor); err == nil {
			break
		}
		parent := filepath.Dir(ancestor)
		if parent == ancestor {
			break
		}
		ancestor = parent
	}
	resolvedAncestor, err := filepath.EvalSymlinks(ancestor)
	if err != nil {
		resolvedAncestor = ancestor
	}
	rel, err := filepath.Rel(sandboxRoot, resolvedAncestor)
	if err != nil || strings.HasPrefix(rel, "..") {
		isTraversal := strings.Contains(pathValue, "..")
		code := codes.SecSandboxViolation
		if isTraversal {
			code = codes.SecPathTraversal
		}
		d := blockDecisionPtr(code, validatorID, ctx,
			fmt.Sprintf("Path would be created outside sandbox: %q", pathValue),
			map[string]any{
				"path": pathValue, "sandbox_root": sandboxRoot, "sandbox_root_source": sandboxSource,
				"ancestor": resolvedAncestor, "reason": "ancestor_outside_sandbox", "field": foundParam,
			})
		return "", d
	}
	suffix, _ := filepath.Rel(ancestor, fullPath)
	return filepath.Join(resolvedAncestor, suffix), nil
}

// resolveSandboxRoot implements the documented priority: context
// metadata > context state > config > process cwd.
func resolveSandboxRoot(ctx validate.Context, configRoot string) (root, source string) {
	if ctx.Metadata != nil {
		if v, ok := ctx.Metadata["failcore.sys.sandbox_root"].(string); ok && v != "" {
			return cleanAbs(v), "context:metadata.failcore.sys.sandbox_root"
		}
		if v, ok := ctx.Metadata["sandbox_root"].(string); ok && v != "" {
			return cleanAbs(v), "context:metadata.sandbox_root"
		}
		if v, ok := ctx.Metadata["sandbox"].(string); ok && v != "" {
			return cleanAbs(v), "context:metadata.sandbox"
		}
	}
	if ctx.State != nil {
		if v, ok := ctx.State["sandbox_root"].(string); ok && v != "" {
			return cleanAbs(v), "context:state.sandbox_root"
		}
		if v, ok := ctx.State["sandbox"].(string); ok && v != "" {
			return cleanAbs(v), "context:state.sandbox"
		}
	}
	if configRoot != "" {
		return cleanAbs(configRoot), "config"
	}
	cwd, _ := os.Getwd()
	return cleanAbs(cwd), "cwd_fallback"
}

func cleanAbs(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	return abs
}
