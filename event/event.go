// Package event defines the stream event model shared by transports,
// the reducer, the journal and the replay server.
package event

import "encoding/json"

// Type identifies the kind of a stream event.
//
// The vocabulary is open-ended: servers may emit types this client has never
// seen, and they must flow through the pipeline without breaking it.
type Type string

// Known event types emitted during a task execution.
const (
	TypeContent    Type = "content"     // incremental answer text
	TypeThinking   Type = "thinking"    // incremental reasoning text
	TypePlanning   Type = "planning"    // initial plan (list of steps)
	TypeTaskUpdate Type = "task_update" // step status change
	TypeSearching  Type = "searching"   // agent is searching
	TypeSource     Type = "source"      // a source was found
	TypeInsight    Type = "insight"     // an insight was extracted
	TypeProgress   Type = "progress"    // advisory completion percentage
	TypeAnalyzing  Type = "analyzing"   // agent is analyzing collected material
	TypeGenerating Type = "generating"  // a file/artifact was generated
	TypeComplete   Type = "complete"    // terminal success
	TypeError      Type = "error"       // terminal failure
)

// String returns the string representation of the event type.
func (t Type) String() string {
	return string(t)
}

// IsTerminal returns true if the event type ends the task.
func (t Type) IsTerminal() bool {
	return t == TypeComplete || t == TypeError
}

// IsKnown returns true if the event type is part of the recognized vocabulary.
// Unknown types are still valid events; the reducer ignores them.
func (t Type) IsKnown() bool {
	switch t {
	case TypeContent, TypeThinking, TypePlanning, TypeTaskUpdate,
		TypeSearching, TypeSource, TypeInsight, TypeProgress,
		TypeAnalyzing, TypeGenerating, TypeComplete, TypeError:
		return true
	default:
		return false
	}
}

// Event is the unit of communication from server to client.
type Event struct {
	// Type tags the event kind. Never empty for a decoded event.
	Type Type `json:"type"`

	// Data is the type-dependent payload, kept raw so unknown types
	// round-trip untouched.
	Data json.RawMessage `json:"data,omitempty"`

	// Ts is an optional server timestamp in unix milliseconds. Advisory
	// only; arrival order is authoritative for event ordering.
	Ts int64 `json:"ts,omitempty"`
}
