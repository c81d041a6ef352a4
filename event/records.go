package event

// StepStatus represents the lifecycle status of a plan step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// IsValid returns true if the status is a known step status.
func (s StepStatus) IsValid() bool {
	switch s {
	case StepPending, StepRunning, StepCompleted, StepFailed:
		return true
	default:
		return false
	}
}

// Step is one unit of the agent's plan. Steps are created on first sighting
// and updated in place by later events carrying the same ID.
type Step struct {
	ID          string     `json:"id"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Status      StepStatus `json:"status"`
	DurationMs  int64      `json:"duration_ms,omitempty"`
}

// SourceRef is a source discovered during the task.
type SourceRef struct {
	ID      string `json:"id,omitempty"`
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// Key returns the identity used for optional deduplication.
func (s SourceRef) Key() string {
	if s.ID != "" {
		return s.ID
	}
	return s.URL
}

// Insight is a finding extracted from collected material.
type Insight struct {
	ID         string  `json:"id,omitempty"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Key returns the identity used for optional deduplication.
func (i Insight) Key() string {
	if i.ID != "" {
		return i.ID
	}
	return i.Text
}

// GeneratedFile is an artifact produced by the agent.
type GeneratedFile struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type,omitempty"`
	URL      string `json:"url,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Key returns the identity used for optional deduplication.
func (f GeneratedFile) Key() string {
	if f.ID != "" {
		return f.ID
	}
	return f.Name
}
