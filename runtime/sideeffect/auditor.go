package sideeffect

// CrossingRecord describes one observed side-effect event that fell
// outside its boundary. StepSeq is the 1-based position of the event
// within the sequence passed to DetectCrossings, not a global counter;
// Ts, if the originating event carried a "ts" metadata key, is copied
// through unchanged for replay annotation purposes.
type CrossingRecord struct {
	CrossingType      SideEffectType
	Boundary          *SideEffectBoundary
	StepSeq           int
	Ts                string
	Target            string
	Tool              string
	StepID            string
	ObservedCategory  string
	AllowedCategories []string
}

// ToDict serializes the record the way it appears in trace output and
// replay annotations: crossing_type as the dotted SideEffectType string,
// never the boundary's internal representation.
func (c CrossingRecord) ToDict() map[string]any {
	boundaryName := ""
	if c.Boundary != nil {
		boundaryName = c.Boundary.Name
	}
	return map[string]any{
		"crossing_type":      string(c.CrossingType),
		"boundary":           boundaryName,
		"step_seq":           c.StepSeq,
		"ts":                 c.Ts,
		"target":             c.Target,
		"tool":               c.Tool,
		"step_id":            c.StepID,
		"observed_category":  c.ObservedCategory,
		"allowed_categories": c.AllowedCategories,
	}
}

// SideEffectAuditor checks observed or predicted side effects against a
// configured boundary.
type SideEffectAuditor struct {
	Boundary *SideEffectBoundary
}

// NewSideEffectAuditor constructs an auditor for boundary. A nil
// boundary audits as unrestricted — CheckCrossing always returns false.
func NewSideEffectAuditor(boundary *SideEffectBoundary) *SideEffectAuditor {
	return &SideEffectAuditor{Boundary: boundary}
}

// CheckCrossing reports whether t would cross the auditor's boundary —
// true means blocked.
func (a *SideEffectAuditor) CheckCrossing(t SideEffectType) bool {
	return !a.Boundary.Allows(t)
}

// DetectCrossings walks events in order and returns a CrossingRecord for
// every one that crosses the boundary, preserving event order.
func (a *SideEffectAuditor) DetectCrossings(events []SideEffectEvent) []CrossingRecord {
	var out []CrossingRecord
	for i, event := range events {
		if !a.CheckCrossing(event.Type) {
			continue
		}
		ts, _ := event.Metadata["ts"].(string)
		out = append(out, CrossingRecord{
			CrossingType:      event.Type,
			Boundary:          a.Boundary,
			StepSeq:           i + 1,
			Ts:                ts,
			Target:            event.Target,
			Tool:              event.Tool,
			StepID:            event.StepID,
			ObservedCategory:  string(event.Category()),
			AllowedCategories: a.Boundary.AllowedCategoryNames(),
		})
	}
	return out
}
