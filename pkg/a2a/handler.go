package a2a

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ExecResult is the outcome of one orchestration run.
type ExecResult struct {
	// Content is the final answer text.
	Content string
	// Truncated is set when the run stopped at the iteration ceiling
	// rather than by the model finishing on its own.
	Truncated bool
}

// Executor runs the orchestration for one utterance.
type Executor interface {
	Run(ctx context.Context, message *Message) (*ExecResult, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, message *Message) (*ExecResult, error)

// Run implements Executor.
func (f ExecutorFunc) Run(ctx context.Context, message *Message) (*ExecResult, error) {
	return f(ctx, message)
}

// SendMessageRequest is the payload of the SendMessage operation.
type SendMessageRequest struct {
	Message       *Message                  `json:"message"`
	Configuration *MessageSendConfiguration `json:"configuration,omitempty"`
}

// MessageSendConfiguration tunes how a message send behaves.
type MessageSendConfiguration struct {
	Blocking bool `json:"blocking"`
}

// GetTaskRequest is the payload of the GetTask operation.
type GetTaskRequest struct {
	ID            string `json:"id"`
	HistoryLength int    `json:"historyLength,omitempty"`
}

// CancelTaskRequest is the payload of the CancelTask operation.
type CancelTaskRequest struct {
	ID string `json:"id"`
}

// Handler implements the task protocol operations over a TaskStore and
// an Executor.
type Handler struct {
	Store    TaskStore
	Executor Executor
	Logger   *slog.Logger
}

// NewHandler wires a handler.
func NewHandler(store TaskStore, executor Executor, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Store: store, Executor: executor, Logger: logger}
}

// SendMessage accepts an utterance, runs the orchestration, and
// returns the task. The task reaches exactly one terminal state; an
// orchestration fault yields a failed task, not an RPC error.
func (h *Handler) SendMessage(ctx context.Context, req *SendMessageRequest) (*Task, error) {
	if h.Store == nil || h.Executor == nil {
		return nil, status.Error(codes.FailedPrecondition, "handler not configured")
	}
	message := req.Message
	if message == nil || message.Text() == "" {
		return nil, status.Error(codes.InvalidArgument, "message with at least one text part is required")
	}
	if message.Role == "" {
		message.Role = RoleUser
	}

	task, err := h.ensureTask(ctx, message)
	if err != nil {
		return nil, err
	}

	blocking := true
	if req.Configuration != nil {
		blocking = req.Configuration.Blocking
	}
	if blocking {
		h.executeTask(ctx, task, message)
		final, err := h.Store.GetTask(ctx, task.ID, 0)
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		return final, nil
	}

	go h.runAsync(task.ID, message)
	return task, nil
}

// GetTask returns the current task record. Reads are idempotent: a
// completed task returns the same artifacts every time.
func (h *Handler) GetTask(ctx context.Context, req *GetTaskRequest) (*Task, error) {
	if h.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "task store not configured")
	}
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "task id is required")
	}
	task, err := h.Store.GetTask(ctx, req.ID, req.HistoryLength)
	if err != nil {
		return nil, status.Error(codes.NotFound, err.Error())
	}
	return task, nil
}

// CancelTask cancels a non-terminal task.
func (h *Handler) CancelTask(ctx context.Context, req *CancelTaskRequest) (*Task, error) {
	if h.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "task store not configured")
	}
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "task id is required")
	}
	task, err := h.Store.CancelTask(ctx, req.ID)
	if err != nil {
		return nil, status.Error(codes.NotFound, err.Error())
	}
	return task, nil
}

func (h *Handler) ensureTask(ctx context.Context, message *Message) (*Task, error) {
	if message.TaskID == "" {
		task, err := h.Store.CreateTask(ctx, message)
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		return task, nil
	}

	task, err := h.Store.GetTask(ctx, message.TaskID, 0)
	if err != nil {
		return nil, status.Error(codes.NotFound, err.Error())
	}
	if task.Status.State.IsTerminal() {
		return nil, status.Error(codes.FailedPrecondition, "task is in terminal state")
	}
	message.ContextID = task.ContextID
	if err := h.Store.AppendHistory(ctx, task.ID, message); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return task, nil
}

func (h *Handler) executeTask(ctx context.Context, task *Task, message *Message) {
	_ = h.Store.UpdateStatus(ctx, task.ID, NewStatus(TaskStateWorking, message))

	result, err := h.Executor.Run(ctx, message)
	if err != nil {
		h.Logger.Error("task execution failed", "task_id", task.ID, "error", err)
		failure := NewTextMessage(RoleAgent, err.Error())
		failure.TaskID = task.ID
		failure.ContextID = task.ContextID
		_ = h.Store.AppendHistory(ctx, task.ID, failure)
		_ = h.Store.UpdateStatus(ctx, task.ID, NewStatus(TaskStateFailed, failure))
		return
	}

	// A run that hit the iteration ceiling with nothing to show needs
	// more input from the caller rather than a hollow completion.
	if result.Truncated && result.Content == "" {
		prompt := NewTextMessage(RoleAgent, "I could not finish answering within the allotted steps. Please rephrase or narrow the question.")
		prompt.TaskID = task.ID
		prompt.ContextID = task.ContextID
		_ = h.Store.AppendHistory(ctx, task.ID, prompt)
		_ = h.Store.UpdateStatus(ctx, task.ID, NewStatus(TaskStateInputRequired, prompt))
		return
	}

	answer := NewTextMessage(RoleAgent, result.Content)
	answer.TaskID = task.ID
	answer.ContextID = task.ContextID
	_ = h.Store.AppendHistory(ctx, task.ID, answer)
	_ = h.Store.AddArtifacts(ctx, task.ID, []Artifact{TextArtifact("answer", result.Content)})
	_ = h.Store.UpdateStatus(ctx, task.ID, NewStatus(TaskStateCompleted, answer))
}

func (h *Handler) runAsync(taskID string, message *Message) {
	ctx := context.Background()
	task, err := h.Store.GetTask(ctx, taskID, 0)
	if err != nil {
		return
	}
	h.executeTask(ctx, task, message)
}
