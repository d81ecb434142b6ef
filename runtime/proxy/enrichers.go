package proxy

import (
	"encoding/json"
	"strings"

	"github.com/failcore/runtime/runtime/taint"
)

// Enricher adds evidence to an Event before it is traced. Enrichers
// never block a request: EgressEngine.Emit recovers any panic an
// Enricher raises and continues with the remaining enrichers, matching
// tests/proxy/test_proxy_failopen.py::TestFailOpenEnricher.
type Enricher interface {
	Enrich(event *Event)
}

// UsageEnricher extracts token usage from a provider response body
// (OpenAI/Anthropic-shaped JSON with a top-level "usage" object) into
// event.Evidence["usage"]. Grounded on
// tests/proxy/test_proxy_pipeline.py's mock upstream response, which
// returns exactly this shape.
type UsageEnricher struct{}

func (UsageEnricher) Enrich(event *Event) {
	raw, ok := event.Evidence["response_body"]
	if !ok {
		return
	}
	body, ok := raw.([]byte)
	if !ok || len(body) == 0 {
		return
	}

	var parsed struct {
		Usage map[string]any `json:"usage"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Usage == nil {
		return
	}
	event.Evidence["usage"] = parsed.Usage
}

// DLPEnricher scans bounded evidence text for sensitive patterns and
// optionally redacts matches in place. Reuses runtime/taint.DLPScanner
// rather than reimplementing the same pattern registry a second time —
// the egress proxy and the taint engine's SANITIZE sink action scan for
// exactly the same secret shapes.
//
// Grounded on src/failcore/core/egress/enrichers/dlp.py.
type DLPEnricher struct {
	Scanner *taint.DLPScanner
	Redact  bool
}

// NewDLPEnricher builds a DLPEnricher with the default pattern set and
// redaction enabled, matching DLPEnricher()'s Python defaults.
func NewDLPEnricher() *DLPEnricher {
	return &DLPEnricher{Scanner: taint.NewDLPScanner(), Redact: true}
}

var dlpScanFields = []string{"tool_output", "output", "request_body", "body_preview", "response"}

func (d *DLPEnricher) Enrich(event *Event) {
	if event.Evidence == nil {
		return
	}
	text := extractTextForScan(event.Evidence)
	if text == "" {
		return
	}

	hits := d.Scanner.Scan(text)
	if len(hits) == 0 {
		return
	}
	event.Evidence["dlp_hits"] = hits

	if d.Redact {
		redactedAny := false
		for _, field := range dlpScanFields {
			v, ok := event.Evidence[field]
			if !ok {
				continue
			}
			s, ok := v.(string)
			if !ok {
				continue
			}
			redacted, did := d.Scanner.Redact(s)
			if did {
				event.Evidence[field] = redacted
				redactedAny = true
			}
		}
		if redactedAny {
			event.Evidence["dlp_redacted"] = true
		}
	}
}

func extractTextForScan(evidence map[string]any) string {
	var parts []string
	for _, field := range dlpScanFields {
		v, ok := evidence[field]
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			parts = append(parts, s)
		}
	}
	text := strings.Join(parts, "\n")
	const maxScanChars = 65536
	if len(text) > maxScanChars {
		text = text[:maxScanChars]
	}
	return text
}

// TaintEnricher labels the likely origin of an egress event's data for
// attribution: an explicit taint_source/input_source value if the
// evidence carries one, otherwise user or model for tool calls and
// unknown for everything else. Weak, best-effort, never blocking.
//
// Grounded on src/failcore/core/egress/enrichers/taint.py.
type TaintEnricher struct{}

func (TaintEnricher) Enrich(event *Event) {
	if event.Evidence == nil {
		event.Evidence = map[string]any{}
	}

	if explicit, ok := event.Evidence["taint_source"].(string); ok && explicit != "" {
		event.Evidence["taint_source"] = explicit
		event.Evidence["taint_confidence"] = "high"
		return
	}
	if explicit, ok := event.Evidence["input_source"].(string); ok && explicit != "" {
		event.Evidence["taint_source"] = explicit
		event.Evidence["taint_confidence"] = "high"
		return
	}

	if event.ToolName != "" {
		if looksUserInitiated(event.Evidence) {
			event.Evidence["taint_source"] = "user"
		} else {
			event.Evidence["taint_source"] = "model"
		}
		event.Evidence["taint_confidence"] = "medium"
		return
	}

	event.Evidence["taint_source"] = "unknown"
}

func looksUserInitiated(evidence map[string]any) bool {
	if v, ok := evidence["user_initiated"].(bool); ok {
		return v
	}
	return false
}
