// Package semantic implements the pre-execution intent guard: a
// deterministic, rule-based inspector that parses string parameters into
// structured representations (shell tokens, SQL features, URL/path
// normal forms, JSON string paths) and evaluates a rule registry against
// them. It never performs ML/statistical inference; every rule is a
// plain function over the parsed structures.
package semantic

// ShellAST is the structured result of tokenizing a shell command line.
type ShellAST struct {
	Program       string   `json:"program"`
	Flags         []string `json:"flags"`
	Args          []string `json:"args"`
	RawTokens     []string `json:"raw_tokens"`
	HasPipe       bool     `json:"has_pipe"`
	HasRedirect   bool     `json:"has_redirect"`
	HasBackground bool     `json:"has_background"`
}

// SQLFeatures is the result of scanning a query string for injection
// indicators.
type SQLFeatures struct {
	Keywords     []string `json:"keywords"`
	HasComments  bool     `json:"has_comments"`
	HasStacked   bool     `json:"has_stacked"`
	HasUnion     bool     `json:"has_union"`
	KeywordCount int      `json:"keyword_count"`
}

// URLNorm is the normalized form of a parsed URL parameter.
type URLNorm struct {
	Valid          bool                `json:"valid"`
	Raw            string              `json:"raw"`
	Scheme         string              `json:"scheme"`
	Host           string              `json:"host"`
	Port           int                 `json:"port"`
	Path           string              `json:"path"`
	Query          string              `json:"query"`
	QueryParams    map[string][]string `json:"query_params"`
	Fragment       string              `json:"fragment"`
	Netloc         string              `json:"netloc"`
	IsInternal     bool                `json:"is_internal"`
	InternalReason string              `json:"internal_reason,omitempty"`
}

// PathNorm is the normalized form of a parsed path parameter.
type PathNorm struct {
	Original    string `json:"original"`
	Normalized  string `json:"normalized"`
	ParentCount int    `json:"parent_count"`
	HasTraversal bool  `json:"has_traversal"`
	IsSensitive bool   `json:"is_sensitive"`
	IsAbsolute  bool   `json:"is_absolute"`
}

// StringPath pairs a JSON path (e.g. "user.email" or "items[2].name")
// with the string value found there.
type StringPath struct {
	Path  string `json:"path"`
	Value string `json:"value"`
}

// JSONPayload is the result of parsing a JSON-looking string parameter.
type JSONPayload struct {
	Valid       bool         `json:"valid"`
	StringPaths []StringPath `json:"string_paths,omitempty"`
}

// ParsedParameters is the per-call unified AST: one entry per
// "<param>_<kind>" key, matching the shape surfaced in decision evidence.
type ParsedParameters map[string]any
