package sideeffect

// SideEffectEvent is one observed side effect: a tool call that the
// executor recorded as having actually happened, as opposed to the
// gate's pre-execution prediction.
type SideEffectEvent struct {
	Type     SideEffectType
	Target   string
	Tool     string
	StepID   string
	Metadata map[string]any
}

// Category returns the event's side-effect category.
func (e SideEffectEvent) Category() SideEffectCategory {
	return CategoryForType(e.Type)
}

// EmitFunc receives the trace-event-shaped payload a probe produces
// each time it records a side effect.
type EmitFunc func(event map[string]any)

// SideEffectProbe is a pure black-box recorder: it never blocks a call
// and never consults a boundary, it only remembers what happened so a
// SideEffectAuditor can later check the recorded events for crossings
// and a replay can diff them against a later run. Emit, if set, is
// called once per Record with a SIDE_EFFECT_APPLIED trace event.
type SideEffectProbe struct {
	Emit   EmitFunc
	events []SideEffectEvent
}

// NewSideEffectProbe returns a probe that emits through emit, which may
// be nil to disable emission (events are still recorded).
func NewSideEffectProbe(emit EmitFunc) *SideEffectProbe {
	return &SideEffectProbe{Emit: emit}
}

// Record appends a side-effect event and, if an Emit func is set,
// notifies it with the trace event shape.
func (p *SideEffectProbe) Record(effectType SideEffectType, target, tool, stepID string, metadata map[string]any) {
	event := SideEffectEvent{
		Type:     effectType,
		Target:   target,
		Tool:     tool,
		StepID:   stepID,
		Metadata: metadata,
	}
	p.events = append(p.events, event)
	if p.Emit != nil {
		p.Emit(map[string]any{
			"type": "SIDE_EFFECT_APPLIED",
			"data": map[string]any{
				"side_effect": map[string]any{
					"type":     string(event.Type),
					"target":   event.Target,
					"category": string(event.Category()),
					"tool":     event.Tool,
					"step_id":  event.StepID,
					"metadata": event.Metadata,
				},
			},
		})
	}
}

// GetEvents returns a copy of every event recorded so far.
func (p *SideEffectProbe) GetEvents() []SideEffectEvent {
	out := make([]SideEffectEvent, len(p.events))
	copy(out, p.events)
	return out
}

// Clear discards every recorded event.
func (p *SideEffectProbe) Clear() {
	p.events = nil
}
