// Package state holds the client-side projection of one task execution and
// the reducer that folds stream events into it.
package state

import (
	"time"

	"github.com/deepscout/runstream/event"
)

// Status represents the lifecycle status of a task execution.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusConnecting Status = "connecting"
	StatusRunning    Status = "running"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal returns true for the absorbing states.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ExecutionState is a point-in-time snapshot of one in-flight or completed
// task. Snapshots are deep copies; mutating one never affects the reducer.
type ExecutionState struct {
	TaskID string `json:"task_id"`
	Status Status `json:"status"`

	// Steps is the agent's plan in insertion order. Entries are unique by
	// ID and updated in place, never reordered.
	Steps []event.Step `json:"steps,omitempty"`

	// Content is every content chunk concatenated in arrival order.
	Content string `json:"content"`

	// Reasoning is every thinking chunk concatenated in arrival order.
	Reasoning string `json:"reasoning,omitempty"`

	// Phase is the last announced activity (searching, analyzing,
	// generating). Advisory, for display only.
	Phase string `json:"phase,omitempty"`

	// PhaseDetail carries the query or subject the phase announced.
	PhaseDetail string `json:"phase_detail,omitempty"`

	// Progress is the advisory completion percentage, clamped to [0,100].
	Progress float64 `json:"progress"`

	Sources           []event.SourceRef     `json:"sources,omitempty"`
	Insights          []event.Insight       `json:"insights,omitempty"`
	GeneratedFiles    []event.GeneratedFile `json:"generated_files,omitempty"`
	FollowUpQuestions []string              `json:"follow_up_questions,omitempty"`

	// Summary is set from the terminal complete payload.
	Summary string `json:"summary,omitempty"`

	// Err is set only by a terminal error event.
	Err *event.ErrorData `json:"error,omitempty"`

	StartedAt time.Time  `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Done returns true once the execution reached a terminal state.
func (s *ExecutionState) Done() bool {
	return s.Status.IsTerminal()
}

// StepByID returns the step with the given id, if present.
func (s *ExecutionState) StepByID(id string) (event.Step, bool) {
	for _, step := range s.Steps {
		if step.ID == id {
			return step, true
		}
	}
	return event.Step{}, false
}
