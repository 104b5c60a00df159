package agent

// Phase names the pipeline stage a progress event refers to.
type Phase string

const (
	PhaseAgent Phase = "agent"
	PhaseLLM   Phase = "llm"
	PhaseMCP   Phase = "mcp"
	PhaseTool  Phase = "tool"
	PhaseDone  Phase = "done"
)

// EventStatus marks a stage as started or finished.
type EventStatus string

const (
	StatusActive   EventStatus = "active"
	StatusComplete EventStatus = "complete"
)

// Event is one advisory progress signal. Consumers observe these for
// display only; correctness never depends on them.
type Event struct {
	Phase  Phase       `json:"phase"`
	Status EventStatus `json:"status"`
	Detail string      `json:"detail,omitempty"`
	Tool   string      `json:"tool,omitempty"`
}

// EventSink receives progress events. Sinks must not block; slow
// consumers should buffer or drop on their side.
type EventSink func(Event)

func (a *Agent) emit(event Event) {
	if a.sink != nil {
		a.sink(event)
	}
}
