package a2a

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskStore provides access to task records. Implementations must be
// safe for concurrent use; the dispatch logic never touches storage
// directly so the backend can be swapped without touching it.
type TaskStore interface {
	CreateTask(ctx context.Context, message *Message) (*Task, error)
	AppendHistory(ctx context.Context, taskID string, message *Message) error
	UpdateStatus(ctx context.Context, taskID string, status TaskStatus) error
	AddArtifacts(ctx context.Context, taskID string, artifacts []Artifact) error
	GetTask(ctx context.Context, taskID string, historyLength int) (*Task, error)
	CancelTask(ctx context.Context, taskID string) (*Task, error)
}

// MemoryTaskStore keeps tasks in process memory. A restart loses all
// tasks, which matches the volatile-task contract.
type MemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*taskRecord
}

type taskRecord struct {
	task      *Task
	updatedAt time.Time
}

// NewMemoryTaskStore creates a new in-memory task store.
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{tasks: make(map[string]*taskRecord)}
}

// CreateTask stores a new task in the submitted state and returns it.
func (s *MemoryTaskStore) CreateTask(_ context.Context, message *Message) (*Task, error) {
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

	s.mu.Lock()
	s.tasks[taskID] = &taskRecord{task: task, updatedAt: time.Now().UTC()}
	s.mu.Unlock()

	return cloneTask(task), nil
}

// AppendHistory adds a message to the task history.
func (s *MemoryTaskStore) AppendHistory(_ context.Context, taskID string, message *Message) error {
	if message == nil {
		return fmt.Errorf("message is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %q not found", taskID)
	}
	record.task.History = append(record.task.History, cloneMessage(message))
	record.updatedAt = time.Now().UTC()
	return nil
}

// UpdateStatus updates the task status. A terminal task is never
// re-opened.
func (s *MemoryTaskStore) UpdateStatus(_ context.Context, taskID string, status TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %q not found", taskID)
	}
	if record.task.Status.State.IsTerminal() {
		return fmt.Errorf("task %q is in terminal state %s", taskID, record.task.Status.State)
	}
	record.task.Status = status
	record.updatedAt = time.Now().UTC()
	return nil
}

// AddArtifacts appends artifacts to the task.
func (s *MemoryTaskStore) AddArtifacts(_ context.Context, taskID string, artifacts []Artifact) error {
	if len(artifacts) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %q not found", taskID)
	}
	record.task.Artifacts = append(record.task.Artifacts, artifacts...)
	record.updatedAt = time.Now().UTC()
	return nil
}

// GetTask returns a task, optionally truncating history to the last N
// messages.
func (s *MemoryTaskStore) GetTask(_ context.Context, taskID string, historyLength int) (*Task, error) {
	// The clone must happen under the read lock; writers mutate the
	// history and artifact slices in place.
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("task %q not found", taskID)
	}
	return filterTask(record.task, historyLength), nil
}

// CancelTask marks a non-terminal task as canceled and returns it.
func (s *MemoryTaskStore) CancelTask(_ context.Context, taskID string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("task %q not found", taskID)
	}
	if record.task.Status.State.IsTerminal() {
		return nil, fmt.Errorf("task %q is in terminal state %s", taskID, record.task.Status.State)
	}
	record.task.Status = NewStatus(TaskStateCanceled, record.task.Status.Message)
	record.updatedAt = time.Now().UTC()
	return cloneTask(record.task), nil
}

func filterTask(task *Task, historyLength int) *Task {
	cloned := cloneTask(task)
	if historyLength > 0 && historyLength < len(cloned.History) {
		cloned.History = cloned.History[len(cloned.History)-historyLength:]
	}
	return cloned
}

func cloneTask(task *Task) *Task {
	if task == nil {
		return nil
	}
	out := *task
	out.History = make([]*Message, len(task.History))
	for i, msg := range task.History {
		out.History[i] = cloneMessage(msg)
	}
	out.Artifacts = append([]Artifact(nil), task.Artifacts...)
	if task.Status.Message != nil {
		out.Status.Message = cloneMessage(task.Status.Message)
	}
	return &out
}

func cloneMessage(message *Message) *Message {
	if message == nil {
		return nil
	}
	out := *message
	out.Parts = append([]Part(nil), message.Parts...)
	return &out
}
