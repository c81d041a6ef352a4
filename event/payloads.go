package event

import (
	"encoding/json"
	"fmt"
)

// ContentData is the payload of a content event.
type ContentData struct {
	Chunk string `json:"chunk"`
}

// ThinkingData is the payload of a thinking event.
type ThinkingData struct {
	Chunk string `json:"chunk"`
}

// PlanningData is the payload of a planning event.
type PlanningData struct {
	Steps []Step `json:"steps"`
}

// TaskUpdateData is the payload of a task_update event. Fields other than
// ID are optional; absent fields leave the existing step field untouched.
type TaskUpdateData struct {
	ID          string     `json:"id"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Status      StepStatus `json:"status,omitempty"`
	DurationMs  int64      `json:"duration_ms,omitempty"`
}

// SearchingData is the payload of a searching event.
type SearchingData struct {
	Query string `json:"query,omitempty"`
}

// SourceData is the payload of a source event.
type SourceData struct {
	SourceRef
}

// InsightData is the payload of an insight event.
type InsightData struct {
	Insight
}

// ProgressData is the payload of a progress event.
type ProgressData struct {
	Percent float64 `json:"percent"`
}

// AnalyzingData is the payload of an analyzing event.
type AnalyzingData struct {
	Subject string `json:"subject,omitempty"`
}

// GeneratingData is the payload of a generating event. File is set once the
// artifact is available; events without a file only signal the phase.
type GeneratingData struct {
	File *GeneratedFile `json:"file,omitempty"`
}

// CompleteData is the payload of a complete event.
type CompleteData struct {
	Summary           string   `json:"summary,omitempty"`
	FollowUpQuestions []string `json:"follow_up_questions,omitempty"`
	DurationMs        int64    `json:"duration_ms,omitempty"`
}

// ErrorData is the payload of an error event.
type ErrorData struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// ParseContent parses a content event payload.
func ParseContent(e Event) (*ContentData, error) {
	return parsePayload[ContentData](e, TypeContent)
}

// ParseThinking parses a thinking event payload.
func ParseThinking(e Event) (*ThinkingData, error) {
	return parsePayload[ThinkingData](e, TypeThinking)
}

// ParsePlanning parses a planning event payload.
func ParsePlanning(e Event) (*PlanningData, error) {
	return parsePayload[PlanningData](e, TypePlanning)
}

// ParseTaskUpdate parses a task_update event payload.
func ParseTaskUpdate(e Event) (*TaskUpdateData, error) {
	return parsePayload[TaskUpdateData](e, TypeTaskUpdate)
}

// ParseSearching parses a searching event payload.
func ParseSearching(e Event) (*SearchingData, error) {
	return parsePayload[SearchingData](e, TypeSearching)
}

// ParseSource parses a source event payload.
func ParseSource(e Event) (*SourceData, error) {
	return parsePayload[SourceData](e, TypeSource)
}

// ParseInsight parses an insight event payload.
func ParseInsight(e Event) (*InsightData, error) {
	return parsePayload[InsightData](e, TypeInsight)
}

// ParseProgress parses a progress event payload.
func ParseProgress(e Event) (*ProgressData, error) {
	return parsePayload[ProgressData](e, TypeProgress)
}

// ParseAnalyzing parses an analyzing event payload.
func ParseAnalyzing(e Event) (*AnalyzingData, error) {
	return parsePayload[AnalyzingData](e, TypeAnalyzing)
}

// ParseGenerating parses a generating event payload.
func ParseGenerating(e Event) (*GeneratingData, error) {
	return parsePayload[GeneratingData](e, TypeGenerating)
}

// ParseComplete parses a complete event payload.
func ParseComplete(e Event) (*CompleteData, error) {
	return parsePayload[CompleteData](e, TypeComplete)
}

// ParseError parses an error event payload.
func ParseError(e Event) (*ErrorData, error) {
	return parsePayload[ErrorData](e, TypeError)
}

func parsePayload[T any](e Event, want Type) (*T, error) {
	if e.Type != want {
		return nil, fmt.Errorf("expected %s event, got %s", want, e.Type)
	}
	var data T
	if len(e.Data) > 0 {
		if err := json.Unmarshal(e.Data, &data); err != nil {
			return nil, fmt.Errorf("failed to parse %s payload: %w", want, err)
		}
	}
	return &data, nil
}
