// Package trace defines the versioned, append-only trace event model shared
// by the execution pipeline, the replay/drift engines, and the proxy. Every
// event written to a run's trace is a TraceEvent; the Writer assigns
// monotonic sequence numbers and serializes appends to a durable sink.
package trace

import (
	"encoding/json"
	"time"
)

// SchemaVersion is the current trace event schema identifier. Readers must
// tolerate unknown fields and unknown EventTypes from newer writers;
// versioning is append-only.
const SchemaVersion = "failcore.trace.v0.1.3"

// Level is the severity of a trace event.
type Level string

// Recognized trace levels.
const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// EventType discriminates the payload carried by a TraceEvent.
type EventType string

// Recognized event types. New types may be added in future schema versions;
// readers must tolerate types they do not recognize.
const (
	EventRunStart           EventType = "RUN_START"
	EventRunEnd             EventType = "RUN_END"
	EventStepStart          EventType = "STEP_START"
	EventStepEnd            EventType = "STEP_END"
	EventFingerprintComputed EventType = "FINGERPRINT_COMPUTED"
	EventValidationFailed   EventType = "VALIDATION_FAILED"
	EventPolicyDenied       EventType = "POLICY_DENIED"
	EventOutputNormalized   EventType = "OUTPUT_NORMALIZED"
	EventArtifactWritten    EventType = "ARTIFACT_WRITTEN"
	EventSideEffectApplied  EventType = "SIDE_EFFECT_APPLIED"
	EventReplayStepHit      EventType = "REPLAY_STEP_HIT"
	EventReplayStepMiss     EventType = "REPLAY_STEP_MISS"
	EventReplayPolicyDiff   EventType = "REPLAY_POLICY_DIFF"
	EventReplayOutputDiff   EventType = "REPLAY_OUTPUT_DIFF"
	EventReplayInjected     EventType = "REPLAY_INJECTED"
	EventAttempt            EventType = "ATTEMPT"
	EventResult             EventType = "RESULT"
	EventEgress             EventType = "EGRESS_EVENT"
)

type (
	// RunInfo is the run-level context block carried on every event.
	RunInfo struct {
		RunID       string    `json:"run_id"`
		CreatedAt   time.Time `json:"created_at"`
		SandboxRoot string    `json:"sandbox_root,omitempty"`
		Workspace   string    `json:"workspace,omitempty"`
		Tags        []string  `json:"tags,omitempty"`
	}

	// StepRef identifies the step an event pertains to, when applicable.
	StepRef struct {
		ID      string `json:"id"`
		Tool    string `json:"tool,omitempty"`
		Attempt int    `json:"attempt,omitempty"`
	}

	// EventBody is the typed payload of a TraceEvent.
	EventBody struct {
		Type EventType       `json:"type"`
		Step *StepRef        `json:"step,omitempty"`
		Data json.RawMessage `json:"data,omitempty"`
	}

	// Event is a single append-only trace record. Every line of the JSONL
	// trace file decodes into one Event.
	Event struct {
		Schema string    `json:"schema"`
		Seq    uint64    `json:"seq"`
		TS     time.Time `json:"ts"`
		Level  Level     `json:"level"`
		Run    RunInfo   `json:"run"`
		Event  EventBody `json:"event"`
	}
)

// NewEvent builds an Event with the current schema version. data is
// marshaled to JSON; a marshal failure degrades to an empty object rather
// than failing the caller, consistent with the writer's fail-open posture.
func NewEvent(seq uint64, ts time.Time, level Level, run RunInfo, typ EventType, step *StepRef, data any) Event {
	raw, err := json.Marshal(data)
	if err != nil || data == nil {
		raw = json.RawMessage("{}")
	}
	return Event{
		Schema: SchemaVersion,
		Seq:    seq,
		TS:     ts,
		Level:  level,
		Run:    run,
		Event: EventBody{
			Type: typ,
			Step: step,
			Data: raw,
		},
	}
}

// DataAs unmarshals the event's data payload into dest.
func (e Event) DataAs(dest any) error {
	if len(e.Event.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Event.Data, dest)
}
