package drift

// normalizeParams drops ignored top-level keys from params, returning a
// shallow copy safe for baseline comparison. Only top-level keys are
// matched: a nested field with the same name (e.g. headers["x-request-id"])
// is not ignored.
func normalizeParams(params map[string]any, cfg *Config) map[string]any {
	ignore := make(map[string]bool, len(cfg.IgnoreFields))
	for _, f := range cfg.IgnoreFields {
		ignore[f] = true
	}

	out := make(map[string]any, len(params))
	for k, v := range params {
		if ignore[k] {
			continue
		}
		out[k] = v
	}
	return out
}

// flattenKeys returns dot-separated paths for every leaf key in d,
// recursing into nested maps without listing the intermediate map keys
// themselves, and skipping metadata keys (those with a leading underscore).
func flattenKeys(d map[string]any, prefix string) []string {
	var keys []string
	for k, v := range d {
		if len(k) > 0 && k[0] == '_' {
			continue
		}
		full := k
		if prefix != "" {
			full = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			keys = append(keys, flattenKeys(nested, full)...)
			continue
		}
		keys = append(keys, full)
	}
	return keys
}

// getNestedValue resolves a dot-separated path against d, returning
// (nil, false) if any segment is missing.
func getNestedValue(d map[string]any, path string) (any, bool) {
	cur := any(d)
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '.' {
			seg := path[start:i]
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			v, ok := m[seg]
			if !ok {
				return nil, false
			}
			cur = v
			start = i + 1
		}
	}
	return cur, true
}

// setNestedValue writes value at the dot-separated path in d, creating
// intermediate maps as needed.
func setNestedValue(d map[string]any, path string, value any) {
	cur := d
	segs := splitPath(path)
	for i, seg := range segs {
		if i == len(segs)-1 {
			cur[seg] = value
			return
		}
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
}

func splitPath(path string) []string {
	var segs []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '.' {
			segs = append(segs, path[start:i])
			start = i + 1
		}
	}
	return segs
}
