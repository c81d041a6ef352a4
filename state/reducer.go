package state

import (
	"strings"
	"sync"
	"time"

	"github.com/deepscout/runstream/event"
)

// Reducer folds ordered stream events into one ExecutionState.
//
// The projection is a pure left-fold: replaying the same events in the same
// order into a fresh reducer always yields the same state. Events must be
// applied from a single goroutine, in arrival order; Snapshot may be called
// from anywhere.
type Reducer struct {
	mu sync.Mutex

	taskID    string
	status    Status
	steps     []event.Step
	stepIndex map[string]int

	content   strings.Builder
	reasoning strings.Builder

	phase       string
	phaseDetail string
	progress    float64

	sources  []event.SourceRef
	insights []event.Insight
	files    []event.GeneratedFile
	followUp []string
	summary  string
	errData  *event.ErrorData

	startedAt time.Time
	endedAt   *time.Time

	dedup    bool
	seenKeys map[string]bool

	onComplete func(ExecutionState)
	onError    func(ExecutionState)
	onFile     func(event.GeneratedFile)

	completeFired bool
	errorFired    bool
}

// ReducerOption configures a Reducer.
type ReducerOption func(*Reducer)

// WithDedupByID drops sources, insights and generated files whose identity
// was already seen. Off by default: the wire contract does not guarantee
// unique IDs, so deduplication is an explicit caller choice.
func WithDedupByID(on bool) ReducerOption {
	return func(r *Reducer) { r.dedup = on }
}

// WithOnComplete registers a callback fired exactly once, on the terminal
// complete event, with the frozen final state.
func WithOnComplete(fn func(ExecutionState)) ReducerOption {
	return func(r *Reducer) { r.onComplete = fn }
}

// WithOnError registers a callback fired exactly once, on the terminal error
// event, with the frozen final state.
func WithOnError(fn func(ExecutionState)) ReducerOption {
	return func(r *Reducer) { r.onError = fn }
}

// WithOnFile registers a callback fired whenever a generated file becomes
// available.
func WithOnFile(fn func(event.GeneratedFile)) ReducerOption {
	return func(r *Reducer) { r.onFile = fn }
}

// NewReducer creates a reducer for one task, starting from an empty state.
func NewReducer(taskID string, opts ...ReducerOption) *Reducer {
	r := &Reducer{
		taskID:    taskID,
		status:    StatusIdle,
		stepIndex: make(map[string]int),
		seenKeys:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MarkConnecting moves idle -> connecting. No-op in any other state.
func (r *Reducer) MarkConnecting() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == StatusIdle {
		r.status = StatusConnecting
		r.startedAt = time.Now()
	}
}

// Apply folds one event into the state. Events applied after a terminal
// state, and events whose payload fails to parse, are no-ops: arrival of bad
// or late data never aborts the consuming loop.
func (r *Reducer) Apply(e event.Event) {
	r.mu.Lock()
	if r.status.IsTerminal() {
		r.mu.Unlock()
		return
	}

	// Any event implies the task is running.
	if r.status == StatusIdle || r.status == StatusConnecting {
		r.status = StatusRunning
		if r.startedAt.IsZero() {
			r.startedAt = time.Now()
		}
	}

	var fireComplete, fireError bool
	var fireFile *event.GeneratedFile

	switch e.Type {
	case event.TypeContent:
		if data, err := event.ParseContent(e); err == nil {
			r.content.WriteString(data.Chunk)
		}

	case event.TypeThinking:
		if data, err := event.ParseThinking(e); err == nil {
			r.reasoning.WriteString(data.Chunk)
		}

	case event.TypePlanning:
		if data, err := event.ParsePlanning(e); err == nil {
			for _, step := range data.Steps {
				if step.Status == "" {
					step.Status = event.StepPending
				}
				r.upsertStep(step)
			}
		}

	case event.TypeTaskUpdate:
		if data, err := event.ParseTaskUpdate(e); err == nil && data.ID != "" {
			r.applyTaskUpdate(data)
		}

	case event.TypeSearching:
		r.phase = "searching"
		if data, err := event.ParseSearching(e); err == nil {
			r.phaseDetail = data.Query
		}

	case event.TypeAnalyzing:
		r.phase = "analyzing"
		if data, err := event.ParseAnalyzing(e); err == nil {
			r.phaseDetail = data.Subject
		}

	case event.TypeGenerating:
		r.phase = "generating"
		r.phaseDetail = ""
		if data, err := event.ParseGenerating(e); err == nil && data.File != nil {
			if r.appendFile(*data.File) {
				f := *data.File
				fireFile = &f
			}
		}

	case event.TypeSource:
		if data, err := event.ParseSource(e); err == nil && data.URL != "" {
			r.appendSource(data.SourceRef)
		}

	case event.TypeInsight:
		if data, err := event.ParseInsight(e); err == nil && data.Text != "" {
			r.appendInsight(data.Insight)
		}

	case event.TypeProgress:
		if data, err := event.ParseProgress(e); err == nil {
			r.progress = clamp(data.Percent, 0, 100)
		}

	case event.TypeComplete:
		data, err := event.ParseComplete(e)
		if err != nil {
			data = &event.CompleteData{}
		}
		r.status = StatusCompleted
		r.summary = data.Summary
		r.followUp = append(r.followUp, data.FollowUpQuestions...)
		r.progress = 100
		now := time.Now()
		r.endedAt = &now
		if r.onComplete != nil && !r.completeFired {
			r.completeFired = true
			fireComplete = true
		}

	case event.TypeError:
		data, err := event.ParseError(e)
		if err != nil {
			data = &event.ErrorData{Message: "task failed"}
		}
		r.status = StatusFailed
		r.errData = data
		now := time.Now()
		r.endedAt = &now
		if r.onError != nil && !r.errorFired {
			r.errorFired = true
			fireError = true
		}

	default:
		// Unknown type: tolerated and ignored.
	}

	var snap ExecutionState
	if fireComplete || fireError {
		snap = r.snapshotLocked()
	}
	r.mu.Unlock()

	// Callbacks run outside the lock so they may call Snapshot.
	if fireFile != nil && r.onFile != nil {
		r.onFile(*fireFile)
	}
	if fireComplete {
		r.onComplete(snap)
	}
	if fireError {
		r.onError(snap)
	}
}

// Snapshot returns a deep copy of the current state, safe to hand to a
// renderer or another goroutine.
func (r *Reducer) Snapshot() ExecutionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Done returns true once the execution reached a terminal state.
func (r *Reducer) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status.IsTerminal()
}

func (r *Reducer) snapshotLocked() ExecutionState {
	snap := ExecutionState{
		TaskID:      r.taskID,
		Status:      r.status,
		Steps:       append([]event.Step(nil), r.steps...),
		Content:     r.content.String(),
		Reasoning:   r.reasoning.String(),
		Phase:       r.phase,
		PhaseDetail: r.phaseDetail,
		Progress:    r.progress,
		Summary:     r.summary,
		StartedAt:   r.startedAt,
	}
	snap.Sources = append([]event.SourceRef(nil), r.sources...)
	snap.Insights = append([]event.Insight(nil), r.insights...)
	snap.GeneratedFiles = append([]event.GeneratedFile(nil), r.files...)
	snap.FollowUpQuestions = append([]string(nil), r.followUp...)
	if r.errData != nil {
		errCopy := *r.errData
		snap.Err = &errCopy
	}
	if r.endedAt != nil {
		ended := *r.endedAt
		snap.EndedAt = &ended
	}
	return snap
}

// upsertStep replaces the step with the same ID in place, or appends it.
// Existing steps are never reordered.
func (r *Reducer) upsertStep(step event.Step) {
	if step.ID == "" {
		return
	}
	if idx, ok := r.stepIndex[step.ID]; ok {
		r.steps[idx] = step
		return
	}
	r.stepIndex[step.ID] = len(r.steps)
	r.steps = append(r.steps, step)
}

// applyTaskUpdate merges a partial update into an existing step, or inserts
// a new step when the ID is unseen.
func (r *Reducer) applyTaskUpdate(data *event.TaskUpdateData) {
	idx, ok := r.stepIndex[data.ID]
	if !ok {
		status := data.Status
		if !status.IsValid() {
			status = event.StepPending
		}
		r.upsertStep(event.Step{
			ID:          data.ID,
			Title:       data.Title,
			Description: data.Description,
			Status:      status,
			DurationMs:  data.DurationMs,
		})
		return
	}
	step := &r.steps[idx]
	if data.Title != "" {
		step.Title = data.Title
	}
	if data.Description != "" {
		step.Description = data.Description
	}
	if data.Status.IsValid() {
		step.Status = data.Status
	}
	if data.DurationMs > 0 {
		step.DurationMs = data.DurationMs
	}
}

func (r *Reducer) appendSource(s event.SourceRef) {
	if r.dedup {
		key := "source:" + s.Key()
		if r.seenKeys[key] {
			return
		}
		r.seenKeys[key] = true
	}
	r.sources = append(r.sources, s)
}

func (r *Reducer) appendInsight(i event.Insight) {
	if r.dedup {
		key := "insight:" + i.Key()
		if r.seenKeys[key] {
			return
		}
		r.seenKeys[key] = true
	}
	r.insights = append(r.insights, i)
}

// appendFile reports whether the file was added (false when deduplicated).
func (r *Reducer) appendFile(f event.GeneratedFile) bool {
	if r.dedup {
		key := "file:" + f.Key()
		if r.seenKeys[key] {
			return false
		}
		r.seenKeys[key] = true
	}
	r.files = append(r.files, f)
	return true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
