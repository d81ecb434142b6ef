package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Fingerprint computes the stable replay key for a (tool, params) pair:
// "<tool>#sha256:<first 16 hex chars of sha256(canonical params)>", the same truncated-hex shape the
// original executor computes before consulting a historical trace. It
// lives in this package (not runtime/replay) so both the pipeline and
// the replay engine can call it without an import cycle between them.
func Fingerprint(tool string, params map[string]any) string {
	canonical := canonicalize(params)
	sum := sha256.Sum256([]byte(canonical))
	digest := hex.EncodeToString(sum[:])
	if len(digest) > 16 {
		digest = digest[:16]
	}
	return fmt.Sprintf("%s#sha256:%s", tool, digest)
}

// canonicalize renders params as JSON with object keys sorted at every
// nesting level, so the same parameter set fingerprints identically
// regardless of map iteration or construction order.
func canonicalize(v any) string {
	b, err := json.Marshal(sortKeys(v))
	if err != nil {
		return ""
	}
	return string(b)
}

// sortKeys recursively rewrites maps into a deterministic, ordered
// representation ([]keyValue) so json.Marshal's own key sort (which
// only sorts map[string]any at the top call) is applied uniformly at
// every depth, including inside slices.
func sortKeys(v any) any {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ordered := make([]orderedEntry, 0, len(keys))
		for _, k := range keys {
			ordered = append(ordered, orderedEntry{Key: k, Value: sortKeys(val[k])})
		}
		return orderedMap(ordered)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sortKeys(item)
		}
		return out
	default:
		return val
	}
}

type orderedEntry struct {
	Key   string
	Value any
}

// orderedMap marshals as a JSON object preserving insertion order, which
// sortKeys has already sorted lexicographically by key.
type orderedMap []orderedEntry

func (m orderedMap) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, entry := range m {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyJSON, err := json.Marshal(entry.Key)
		if err != nil {
			return nil, err
		}
		valJSON, err := json.Marshal(entry.Value)
		if err != nil {
			return nil, err
		}
		buf = append(buf, keyJSON...)
		buf = append(buf, ':')
		buf = append(buf, valJSON...)
	}
	buf = append(buf, '}')
	return buf, nil
}
