package semantic

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// TokenizeShell splits a shell command line into program, flags, and
// positional args using a small POSIX-ish lexer (single/double quote
// handling, backslash escapes outside single quotes). Unterminated
// quotes fall back to a plain whitespace split rather than erroring,
// since this is a best-effort structural parse, not a shell itself.
func TokenizeShell(command string) ShellAST {
	tokens, ok := shellTokens(command)
	if !ok {
		tokens = strings.Fields(command)
	}

	var program string
	var flags, args []string
	var rest []string
	if len(tokens) > 0 {
		program = tokens[0]
		rest = tokens[1:]
	}
	for _, t := range rest {
		if strings.HasPrefix(t, "-") {
			flags = append(flags, t)
		} else {
			args = append(args, t)
		}
	}

	return ShellAST{
		Program:       program,
		Flags:         flags,
		Args:          args,
		RawTokens:     tokens,
		HasPipe:       strings.Contains(command, "|"),
		HasRedirect:   strings.Contains(command, ">") || strings.Contains(command, "<"),
		HasBackground: strings.Contains(command, "&"),
	}
}

// shellTokens is a minimal POSIX-mode shlex.split equivalent. Returns
// ok=false on an unterminated quote.
func shellTokens(s string) ([]string, bool) {
	var tokens []string
	var cur strings.Builder
	inToken := false
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == '\'':
			inToken = true
			j := strings.IndexByte(s[i+1:], '\'')
			if j < 0 {
				return nil, false
			}
			cur.WriteString(s[i+1 : i+1+j])
			i = i + 1 + j + 1
		case c == '"':
			inToken = true
			i++
			for i < len(s) && s[i] != '"' {
				if s[i] == '\\' && i+1 < len(s) && (s[i+1] == '"' || s[i+1] == '\\' || s[i+1] == '$' || s[i+1] == '`') {
					cur.WriteByte(s[i+1])
					i += 2
					continue
				}
				cur.WriteByte(s[i])
				i++
			}
			if i >= len(s) {
				return nil, false
			}
			i++
		case c == '\\':
			if i+1 >= len(s) {
				return nil, false
			}
			inToken = true
			cur.WriteByte(s[i+1])
			i += 2
		case c == ' ' || c == '\t' || c == '\n':
			if inToken {
				tokens = append(tokens, cur.String())
				cur.Reset()
				inToken = false
			}
			i++
		default:
			inToken = true
			cur.WriteByte(c)
			i++
		}
	}
	if inToken {
		tokens = append(tokens, cur.String())
	}
	return tokens, true
}

// ExtractDangerousFlags flags well-known destructive flag combinations on
// a small set of programs (rm/del, chmod, curl/wget piped to a shell).
func ExtractDangerousFlags(ast ShellAST) []string {
	var dangerous []string
	program := strings.ToLower(ast.Program)

	switch program {
	case "rm", "del", "remove":
		for _, f := range ast.Flags {
			if f == "-r" || f == "-R" || f == "--recursive" {
				dangerous = append(dangerous, "recursive_delete")
				break
			}
		}
		for _, f := range ast.Flags {
			if f == "-f" || f == "--force" {
				dangerous = append(dangerous, "force_delete")
				break
			}
		}
	case "chmod":
		for _, a := range ast.Args {
			if a == "777" || a == "000" || a == "+x" || a == "+w" {
				dangerous = append(dangerous, "dangerous_permissions")
				break
			}
		}
	case "curl", "wget":
		if ast.HasPipe {
			dangerous = append(dangerous, "download_and_execute")
		}
	}
	return dangerous
}

var sqlDangerousKeywords = []string{
	"union", "select", "insert", "update", "delete", "drop",
	"alter", "create", "exec", "execute", "xp_", "sp_",
}

var sqlCommentPattern = regexp.MustCompile(`--|/\*|\*/|#`)

// ExtractSQLKeywords scans a query string for dangerous keywords, comment
// markers, stacked statements, and union-based injection shape.
func ExtractSQLKeywords(query string) SQLFeatures {
	lower := strings.ToLower(query)

	var keywords []string
	for _, kw := range sqlDangerousKeywords {
		if matchesWholeWord(lower, kw) {
			keywords = append(keywords, kw)
		}
	}

	hasComments := sqlCommentPattern.MatchString(query)
	hasStacked := strings.Count(query, ";") > 1
	hasUnion := strings.Contains(lower, "union") && strings.Contains(lower, "select")

	return SQLFeatures{
		Keywords:     keywords,
		HasComments:  hasComments,
		HasStacked:   hasStacked,
		HasUnion:     hasUnion,
		KeywordCount: len(keywords),
	}
}

func matchesWholeWord(haystack, word string) bool {
	idx := 0
	for {
		i := strings.Index(haystack[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isWordByte(haystack[start-1])
		afterOK := end == len(haystack) || !isWordByte(haystack[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// IsInjectionLikely applies a coarse heuristic over parsed SQL features:
// two or more dangerous keywords, a stacked query with comments, or a
// union/select pair.
func IsInjectionLikely(f SQLFeatures) bool {
	if f.KeywordCount >= 2 {
		return true
	}
	if f.HasStacked && f.HasComments {
		return true
	}
	return f.HasUnion
}

var internalHostPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^127\.`),
	regexp.MustCompile(`^10\.`),
	regexp.MustCompile(`^172\.(1[6-9]|2[0-9]|3[01])\.`),
	regexp.MustCompile(`^192\.168\.`),
	regexp.MustCompile(`^169\.254\.`),
	regexp.MustCompile(`(?i)^localhost$`),
	regexp.MustCompile(`(?i)\.local$`),
}

// isInternalHost reports whether hostname looks like it targets a
// private or loopback network, using the same pattern families the
// network_ssrf validator blocks on (loopback/RFC1918/link-local/
// localhost), kept independent here since the guard only annotates
// intent and never itself blocks network access.
func isInternalHost(hostname string) (bool, string) {
	if hostname == "" {
		return false, ""
	}
	for _, pat := range internalHostPatterns {
		if pat.MatchString(hostname) {
			return true, pat.String()
		}
	}
	if ip := net.ParseIP(hostname); ip != nil {
		switch {
		case ip.IsLoopback():
			return true, "loopback"
		case ip.IsPrivate():
			return true, "private"
		case ip.IsLinkLocalUnicast():
			return true, "link_local"
		}
	}
	return false, ""
}

// ParseURL parses a URL parameter value into its normalized components,
// marking it is-internal the same way the guard's SSRF-intent rule
// consumes it.
func ParseURL(raw string) URLNorm {
	parsed, err := url.Parse(raw)
	if err != nil {
		return URLNorm{Valid: false, Raw: raw}
	}

	var port int
	if p := parsed.Port(); p != "" {
		port, _ = strconv.Atoi(p)
	}

	internal, reason := isInternalHost(parsed.Hostname())

	return URLNorm{
		Valid:          true,
		Raw:            raw,
		Scheme:         parsed.Scheme,
		Host:           parsed.Hostname(),
		Port:           port,
		Path:           parsed.Path,
		Query:          parsed.RawQuery,
		QueryParams:    parsed.Query(),
		Fragment:       parsed.Fragment,
		Netloc:         parsed.Host,
		IsInternal:     internal,
		InternalReason: reason,
	}
}

// sensitivePaths are absolute locations a tool call should essentially
// never legitimately target directly; shared by the guard's
// path-traversal-intent rule.
var sensitivePaths = []string{
	"/etc/passwd", "/etc/shadow", "/etc/hosts",
	`C:\Windows\System32`, `C:\Windows\config`,
}

// NormalizePath parses a path parameter, counting traversal segments and
// flagging known-sensitive absolute targets, without touching the
// filesystem (cleaning is lexical only, unlike security_path_traversal's
// symlink-aware sandbox check).
func NormalizePath(path string) PathNorm {
	parentCount := strings.Count(path, "../") + strings.Count(path, `..\`)

	isSensitive := false
	lower := strings.ToLower(path)
	for _, sp := range sensitivePaths {
		if strings.HasPrefix(lower, strings.ToLower(sp)) {
			isSensitive = true
			break
		}
	}

	normalized := path
	if path != "" {
		if abs, err := filepath.Abs(path); err == nil {
			normalized = filepath.Clean(abs)
		}
	}

	return PathNorm{
		Original:     path,
		Normalized:   normalized,
		ParentCount:  parentCount,
		HasTraversal: parentCount > 0,
		IsSensitive:  isSensitive,
		IsAbsolute:   path != "" && filepath.IsAbs(path),
	}
}

// ParseJSONPayload parses a JSON-looking string and enumerates every
// string-valued leaf with its path, for downstream scanning (secret
// patterns, suspicious keys) without re-parsing in every rule.
func ParseJSONPayload(payload string) JSONPayload {
	var data any
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return JSONPayload{Valid: false}
	}
	return JSONPayload{Valid: true, StringPaths: extractStringPaths(data, "")}
}

func extractStringPaths(data any, path string) []StringPath {
	var out []StringPath
	switch v := data.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			newPath := key
			if path != "" {
				newPath = path + "." + key
			}
			out = append(out, extractStringPaths(v[key], newPath)...)
		}
	case []any:
		for i, item := range v {
			newPath := fmt.Sprintf("%s[%d]", path, i)
			out = append(out, extractStringPaths(item, newPath)...)
		}
	case string:
		out = append(out, StringPath{Path: path, Value: v})
	}
	return out
}
