package taint

import (
	"encoding/json"
	"sort"
	"sync"
)

// Summary reports aggregate statistics over everything a Store has
// tracked, for diagnostics and end-of-run reporting.
type Summary struct {
	TaintedSteps            int
	SensitivityDistribution map[string]int
	SourceDistribution      map[string]int
}

// Store tracks which steps produced tainted output, the tags attached
// to each, and which tool names are registered as high-risk sinks. It
// also indexes tainted output values so that taint can be detected when
// the same value reappears in a later step's params without having been
// declared as an explicit dependency.
type Store interface {
	IsTainted(stepID string) bool
	GetTags(stepID string) []TaintTag
	MarkTainted(stepID string, tags ...TaintTag)
	IndexValue(stepID string, value any)
	DetectTaintedInputs(params map[string]any, dependencies []string) []TaintTag
	RegisterSink(tool string)
	IsSinkTool(tool string) bool
	GetSummary() Summary
}

// MemStore is the in-process default Store, guarded by a single mutex
// in the same shared-state idiom the trace writer and hooks bus use
// elsewhere in this module.
type MemStore struct {
	mu         sync.RWMutex
	tags       map[string][]TaintTag
	valueIndex map[string][]string
	sinks      map[string]bool
}

func NewMemStore() *MemStore {
	return &MemStore{
		tags:       make(map[string][]TaintTag),
		valueIndex: make(map[string][]string),
		sinks:      make(map[string]bool),
	}
}

var _ Store = (*MemStore)(nil)

func (m *MemStore) IsTainted(stepID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tags[stepID]) > 0
}

func (m *MemStore) GetTags(stepID string) []TaintTag {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]TaintTag(nil), m.tags[stepID]...)
}

func (m *MemStore) MarkTainted(stepID string, tags ...TaintTag) {
	if len(tags) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags[stepID] = append(m.tags[stepID], tags...)
}

// IndexValue records the canonical serialization of value against
// stepID so a later DetectTaintedInputs call can recognize the same
// value reappearing in another step's params, even when it was never
// declared as a dependency.
func (m *MemStore) IndexValue(stepID string, value any) {
	key, ok := canonicalJSON(value)
	if !ok {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.valueIndex[key] {
		if id == stepID {
			return
		}
	}
	m.valueIndex[key] = append(m.valueIndex[key], stepID)
}

// DetectTaintedInputs scans declared dependencies and, recursively, the
// call's params for values that trace back to a previously tainted
// step. Each inherited tag's propagation depth is incremented by one.
func (m *MemStore) DetectTaintedInputs(params map[string]any, dependencies []string) []TaintTag {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var out []TaintTag

	for _, dep := range dependencies {
		if seen[dep] {
			continue
		}
		if tags := m.tags[dep]; len(tags) > 0 {
			seen[dep] = true
			out = append(out, bumpDepth(tags)...)
		}
	}

	for _, stepID := range m.matchValueLocked(params) {
		if seen[stepID] {
			continue
		}
		if tags := m.tags[stepID]; len(tags) > 0 {
			seen[stepID] = true
			out = append(out, bumpDepth(tags)...)
		}
	}

	return out
}

func (m *MemStore) matchValueLocked(root any) []string {
	var stepIDs []string
	seen := make(map[string]bool)

	var walk func(v any)
	walk = func(v any) {
		if key, ok := canonicalJSON(v); ok {
			for _, id := range m.valueIndex[key] {
				if !seen[id] {
					seen[id] = true
					stepIDs = append(stepIDs, id)
				}
			}
		}
		switch vv := v.(type) {
		case map[string]any:
			keys := make([]string, 0, len(vv))
			for k := range vv {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(vv[k])
			}
		case []any:
			for _, item := range vv {
				walk(item)
			}
		}
	}
	walk(root)

	sort.Strings(stepIDs)
	return stepIDs
}

func (m *MemStore) RegisterSink(tool string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks[tool] = true
}

func (m *MemStore) IsSinkTool(tool string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sinks[tool]
}

func (m *MemStore) GetSummary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := Summary{
		SensitivityDistribution: make(map[string]int),
		SourceDistribution:      make(map[string]int),
	}
	for _, tags := range m.tags {
		if len(tags) == 0 {
			continue
		}
		summary.TaintedSteps++
		for _, t := range tags {
			summary.SensitivityDistribution[string(t.Sensitivity)]++
			summary.SourceDistribution[string(t.Source)]++
		}
	}
	return summary
}

// canonicalJSON returns a deterministic serialization of v suitable for
// value-equality comparison. encoding/json sorts map[string]any keys on
// marshal, so two structurally equal values with maps built in different
// orders still produce identical output.
func canonicalJSON(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	switch v.(type) {
	case string:
		// Bare strings are too common to index usefully (e.g. every
		// "ok" status would collide), so they are skipped; every other
		// non-nil value, numbers and booleans included, is indexed.
		return "", false
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(b), true
}
