// Package a2a implements the agent-interoperability surface: task
// submission and polling over a JSON-RPC binding, a task lifecycle
// state machine, and the published agent card.
package a2a

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskState enumerates the task lifecycle states.
type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateFailed        TaskState = "failed"
	TaskStateRejected      TaskState = "rejected"
	TaskStateAuthRequired  TaskState = "auth-required"
)

// IsTerminal reports whether a state may never transition again.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCanceled, TaskStateRejected:
		return true
	default:
		return false
	}
}

// MessageRole identifies the sender of a message.
type MessageRole string

const (
	RoleUser  MessageRole = "user"
	RoleAgent MessageRole = "agent"
)

// Part is one content segment of a message or artifact. Only text
// parts are produced today; Kind keeps the wire shape open.
type Part struct {
	Kind string `json:"kind"`
	Text string `json:"text,omitempty"`
}

// TextPart builds a text content part.
func TextPart(text string) Part {
	return Part{Kind: "text", Text: text}
}

// Message is a single unit of communication between user and agent.
type Message struct {
	MessageID string      `json:"messageId"`
	TaskID    string      `json:"taskId,omitempty"`
	ContextID string      `json:"contextId,omitempty"`
	Role      MessageRole `json:"role"`
	Parts     []Part      `json:"parts"`
}

// NewTextMessage builds a message with a single text part.
func NewTextMessage(role MessageRole, text string) *Message {
	return &Message{
		MessageID: uuid.NewString(),
		Role:      role,
		Parts:     []Part{TextPart(text)},
	}
}

// Text joins the message's text parts.
func (m *Message) Text() string {
	if m == nil {
		return ""
	}
	var parts []string
	for _, p := range m.Parts {
		if p.Kind == "text" && p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// TaskStatus is the task's current state plus an optional message.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewStatus builds a status stamped with the current time.
func NewStatus(state TaskState, message *Message) TaskStatus {
	return TaskStatus{State: state, Message: message, Timestamp: time.Now().UTC()}
}

// Artifact is a generated result attached to a task.
type Artifact struct {
	ArtifactID string `json:"artifactId"`
	Name       string `json:"name,omitempty"`
	Parts      []Part `json:"parts"`
}

// TextArtifact builds an artifact holding one text part.
func TextArtifact(name, text string) Artifact {
	return Artifact{
		ArtifactID: uuid.NewString(),
		Name:       name,
		Parts:      []Part{TextPart(text)},
	}
}

// Task is a unit of orchestrated work with a defined lifecycle.
type Task struct {
	ID        string     `json:"id"`
	ContextID string     `json:"contextId"`
	Status    TaskStatus `json:"status"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
	History   []*Message `json:"history,omitempty"`
}

// AgentCapabilities declares optional protocol features.
type AgentCapabilities struct {
	Streaming         bool `json:"streaming"`
	PushNotifications bool `json:"pushNotifications"`
}

// AgentSkill describes one unit of capability the agent offers.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	Examples    []string `json:"examples,omitempty"`
}

// AgentCard is the static, publicly discoverable description of the
// agent's identity, skills, and endpoint.
type AgentCard struct {
	ProtocolVersion    string                `json:"protocolVersion"`
	Name               string                `json:"name"`
	Description        string                `json:"description"`
	URL                string                `json:"url"`
	Version            string                `json:"version"`
	Capabilities       AgentCapabilities     `json:"capabilities"`
	SecuritySchemes    map[string]any        `json:"securitySchemes,omitempty"`
	Security           []map[string][]string `json:"security,omitempty"`
	DefaultInputModes  []string              `json:"defaultInputModes"`
	DefaultOutputModes []string              `json:"defaultOutputModes"`
	Skills             []AgentSkill          `json:"skills"`
}
