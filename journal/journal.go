// Package journal persists received stream events per task so a projection
// can be rebuilt by replaying them in order.
package journal

import (
	"context"
	"time"

	"github.com/deepscout/runstream/event"
)

// TaskStatus mirrors the terminal outcome recorded for a journaled task.
type TaskStatus string

const (
	TaskStatusActive    TaskStatus = "ACTIVE"
	TaskStatusCompleted TaskStatus = "COMPLETED"
	TaskStatusFailed    TaskStatus = "FAILED"
)

// TaskRecord is the journal's view of one task.
type TaskRecord struct {
	TaskID    string     `json:"task_id"`
	Query     string     `json:"query"`
	Status    TaskStatus `json:"status"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Entry is one journaled event. Seq is assigned by the writer in arrival
// order and is the replay order.
type Entry struct {
	TaskID string      `json:"task_id"`
	Seq    int64       `json:"seq"`
	Ts     int64       `json:"ts"` // unix milliseconds, recorded at receipt
	Event  event.Event `json:"event"`
}

// Store defines the journal persistence interface.
type Store interface {
	// Task operations
	CreateTask(ctx context.Context, task *TaskRecord) error
	GetTask(ctx context.Context, taskID string) (*TaskRecord, error)
	UpdateTaskStatus(ctx context.Context, taskID string, status TaskStatus) error
	ListTasks(ctx context.Context, limit int) ([]TaskRecord, error)

	// Event operations
	Append(ctx context.Context, entry *Entry) error
	List(ctx context.Context, taskID string, afterSeq int64, limit int) ([]Entry, error)

	// Lifecycle
	Close() error
}
