package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/deepscout/runstream/event"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) a journal database. Use ":memory:" for
// an ephemeral journal.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			task_id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			ended_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			task_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			data TEXT,
			event_ts INTEGER,
			PRIMARY KEY (task_id, seq),
			FOREIGN KEY (task_id) REFERENCES tasks(task_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_task ON events(task_id, seq)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateTask records a new task.
func (s *SQLiteStore) CreateTask(ctx context.Context, task *TaskRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (task_id, query, status, started_at) VALUES (?, ?, ?, ?)`,
		task.TaskID, task.Query, task.Status, task.StartedAt)
	return err
}

// GetTask retrieves a task by ID. Returns nil when not found.
func (s *SQLiteStore) GetTask(ctx context.Context, taskID string) (*TaskRecord, error) {
	var task TaskRecord
	var endedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT task_id, query, status, started_at, ended_at FROM tasks WHERE task_id = ?`,
		taskID).Scan(&task.TaskID, &task.Query, &task.Status, &task.StartedAt, &endedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if endedAt.Valid {
		task.EndedAt = &endedAt.Time
	}
	return &task, nil
}

// UpdateTaskStatus sets the task status; terminal statuses also stamp ended_at.
func (s *SQLiteStore) UpdateTaskStatus(ctx context.Context, taskID string, status TaskStatus) error {
	if status == TaskStatusCompleted || status == TaskStatusFailed {
		_, err := s.db.ExecContext(ctx,
			`UPDATE tasks SET status = ?, ended_at = CURRENT_TIMESTAMP WHERE task_id = ?`,
			status, taskID)
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ? WHERE task_id = ?`, status, taskID)
	return err
}

// ListTasks returns the most recently started tasks.
func (s *SQLiteStore) ListTasks(ctx context.Context, limit int) ([]TaskRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT task_id, query, status, started_at, ended_at FROM tasks
		 ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []TaskRecord
	for rows.Next() {
		var task TaskRecord
		var endedAt sql.NullTime
		if err := rows.Scan(&task.TaskID, &task.Query, &task.Status, &task.StartedAt, &endedAt); err != nil {
			return nil, err
		}
		if endedAt.Valid {
			task.EndedAt = &endedAt.Time
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// Append records one event.
func (s *SQLiteStore) Append(ctx context.Context, entry *Entry) error {
	var data string
	if len(entry.Event.Data) > 0 {
		data = string(entry.Event.Data)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (task_id, seq, ts, type, data, event_ts) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.TaskID, entry.Seq, entry.Ts, string(entry.Event.Type), data, entry.Event.Ts)
	return err
}

// List returns events for a task with seq > afterSeq, in seq order.
func (s *SQLiteStore) List(ctx context.Context, taskID string, afterSeq int64, limit int) ([]Entry, error) {
	query := `SELECT task_id, seq, ts, type, data, event_ts FROM events
		WHERE task_id = ? AND seq > ? ORDER BY seq ASC`
	args := []interface{}{taskID, afterSeq}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var evType string
		var data sql.NullString
		var eventTs sql.NullInt64
		if err := rows.Scan(&entry.TaskID, &entry.Seq, &entry.Ts, &evType, &data, &eventTs); err != nil {
			return nil, err
		}
		entry.Event.Type = event.Type(evType)
		if data.Valid && data.String != "" {
			entry.Event.Data = json.RawMessage(data.String)
		}
		if eventTs.Valid {
			entry.Event.Ts = eventTs.Int64
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
