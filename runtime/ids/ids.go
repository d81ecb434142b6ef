// Package ids provides strong string types for the identifiers that flow
// through the runtime so they cannot be accidentally mixed with free-form
// strings when used as map keys or API parameters.
package ids

import "github.com/google/uuid"

type (
	// RunID identifies a single run context scope.
	RunID string

	// StepID identifies a step as assigned by the caller or adapter.
	// Stable across attempts; see NewAttemptKey for per-attempt disambiguation.
	StepID string

	// SessionID groups related runs into a conversation thread.
	SessionID string
)

// NewRunID generates a fresh run identifier.
func NewRunID() RunID {
	return RunID(uuid.NewString())
}

// NewAttemptKey returns a stable per-attempt key for a step, used to
// disambiguate trace events emitted across repeated submissions of the
// same step id.
func NewAttemptKey(id StepID, attempt int) string {
	return string(id) + "#" + itoa(attempt)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
