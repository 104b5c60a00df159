package a2a

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

const taskTable = "agent_tasks"

// SQLiteTaskStore persists tasks in a SQLite database so records
// survive a process restart. It implements the same TaskStore contract
// as the memory store; the handler does not know which one it holds.
type SQLiteTaskStore struct {
	db *sql.DB
}

// OpenSQLiteTaskStore opens (or creates) the database at path and
// ensures the schema.
func OpenSQLiteTaskStore(path string) (*SQLiteTaskStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	store, err := NewSQLiteTaskStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteTaskStore wraps an existing database handle and ensures the
// schema.
func NewSQLiteTaskStore(db *sql.DB) (*SQLiteTaskStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			context_id TEXT NOT NULL,
			status_state TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			task_json BLOB NOT NULL
		);`, taskTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_context ON %s(context_id);`, taskTable, taskTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_status ON %s(status_state);`, taskTable, taskTable),
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}
	return &SQLiteTaskStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteTaskStore) Close() error {
	return s.db.Close()
}

// CreateTask implements TaskStore.
func (s *SQLiteTaskStore) CreateTask(ctx context.Context, message *Message) (*Task, error) {
	if message == nil {
		return nil, fmt.Errorf("message is nil")
	}

	taskID := uuid.NewString()
	contextID := message.ContextID
	if contextID == "" {
		contextID = uuid.NewString()
	}

	msg := cloneMessage(message)
	msg.TaskID = taskID
	msg.ContextID = contextID

	task := &Task{
		ID:        taskID,
		ContextID: contextID,
		Status:    NewStatus(TaskStateSubmitted, msg),
		History:   []*Message{msg},
	}
	if err := s.writeTask(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// AppendHistory implements TaskStore.
func (s *SQLiteTaskStore) AppendHistory(ctx context.Context, taskID string, message *Message) error {
	if message == nil {
		return fmt.Errorf("message is nil")
	}
	return s.mutate(ctx, taskID, func(task *Task) error {
		task.History = append(task.History, cloneMessage(message))
		return nil
	})
}

// UpdateStatus implements TaskStore.
func (s *SQLiteTaskStore) UpdateStatus(ctx context.Context, taskID string, status TaskStatus) error {
	return s.mutate(ctx, taskID, func(task *Task) error {
		if task.Status.State.IsTerminal() {
			return fmt.Errorf("task %q is in terminal state %s", taskID, task.Status.State)
		}
		task.Status = status
		return nil
	})
}

// AddArtifacts implements TaskStore.
func (s *SQLiteTaskStore) AddArtifacts(ctx context.Context, taskID string, artifacts []Artifact) error {
	if len(artifacts) == 0 {
		return nil
	}
	return s.mutate(ctx, taskID, func(task *Task) error {
		task.Artifacts = append(task.Artifacts, artifacts...)
		return nil
	})
}

// GetTask implements TaskStore.
func (s *SQLiteTaskStore) GetTask(ctx context.Context, taskID string, historyLength int) (*Task, error) {
	task, err := s.readTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return filterTask(task, historyLength), nil
}

// CancelTask implements TaskStore.
func (s *SQLiteTaskStore) CancelTask(ctx context.Context, taskID string) (*Task, error) {
	var out *Task
	err := s.mutate(ctx, taskID, func(task *Task) error {
		if task.Status.State.IsTerminal() {
			return fmt.Errorf("task %q is in terminal state %s", taskID, task.Status.State)
		}
		task.Status = NewStatus(TaskStateCanceled, task.Status.Message)
		out = cloneTask(task)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteTaskStore) readTask(ctx context.Context, taskID string) (*Task, error) {
	var raw []byte
	query := fmt.Sprintf(`SELECT task_json FROM %s WHERE id = ?`, taskTable)
	if err := s.db.QueryRowContext(ctx, query, taskID).Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("task %q not found", taskID)
		}
		return nil, fmt.Errorf("read task: %w", err)
	}
	var task Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	return &task, nil
}

func (s *SQLiteTaskStore) writeTask(ctx context.Context, task *Task) error {
	raw, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, context_id, status_state, updated_at, task_json)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status_state = excluded.status_state,
			updated_at = excluded.updated_at,
			task_json = excluded.task_json`, taskTable)
	_, err = s.db.ExecContext(ctx, query,
		task.ID, task.ContextID, string(task.Status.State), time.Now().UnixMilli(), raw)
	if err != nil {
		return fmt.Errorf("write task: %w", err)
	}
	return nil
}

func (s *SQLiteTaskStore) mutate(ctx context.Context, taskID string, fn func(*Task) error) error {
	task, err := s.readTask(ctx, taskID)
	if err != nil {
		return err
	}
	if err := fn(task); err != nil {
		return err
	}
	return s.writeTask(ctx, task)
}
