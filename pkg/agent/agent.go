// SPDX-License-Identifier: Apache-2.0

// Package agent implements the bounded tool-use loop: alternate
// between a model call and tool execution until the model stops
// requesting tools or the iteration ceiling is reached.
package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/foodscout/foodscout/pkg/errors"
	"github.com/foodscout/foodscout/pkg/llm"
	"github.com/foodscout/foodscout/pkg/memory"
)

const (
	defaultMaxIterations = 8
	defaultHistoryWindow = 40

	// DefaultSystemPrompt frames the agent's role for the model.
	DefaultSystemPrompt = "You are a food product assistant. Answer questions about food products " +
		"using the available tools to look up real catalog data. Cite concrete values " +
		"(ingredients, allergens, Nutri-Score, nutrition facts) from tool results rather " +
		"than guessing. If a product cannot be found, say so plainly."
)

// Result is the outcome of one orchestrated answer.
type Result struct {
	// Content is the final answer text. May be empty when the loop was
	// truncated before the model produced any content.
	Content string
	// Truncated is set when the iteration ceiling stopped the loop.
	Truncated bool
	// Iterations is the number of model calls made.
	Iterations int
	// ToolCalls is the total number of tool invocations executed.
	ToolCalls int
}

// Agent owns the orchestration loop for a set of conversations. Each
// conversation is processed serially; concurrent utterances for the
// same conversation queue behind the in-flight loop.
type Agent struct {
	provider      llm.Provider
	source        ToolSource
	conversation  memory.ConversationMemory
	logger        *slog.Logger
	tracer        trace.Tracer
	sink          EventSink
	systemPrompt  string
	model         string
	temperature   float64
	maxIterations int

	locks sync.Map // conversation id -> *sync.Mutex
}

// Option customizes the agent.
type Option func(*Agent)

// WithSystemPrompt overrides the default system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) {
		if prompt != "" {
			a.systemPrompt = prompt
		}
	}
}

// WithMaxIterations sets the round-trip ceiling.
func WithMaxIterations(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(a *Agent) { a.temperature = t }
}

// WithEventSink registers a progress event consumer.
func WithEventSink(sink EventSink) Option {
	return func(a *Agent) { a.sink = sink }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithConversationMemory sets the conversation store.
func WithConversationMemory(mem memory.ConversationMemory) Option {
	return func(a *Agent) { a.conversation = mem }
}

// New creates an agent over a model provider and a tool source.
func New(provider llm.Provider, source ToolSource, model string, opts ...Option) *Agent {
	a := &Agent{
		provider:      provider,
		source:        source,
		model:         model,
		logger:        slog.Default(),
		tracer:        otel.Tracer("foodscout/agent"),
		systemPrompt:  DefaultSystemPrompt,
		maxIterations: defaultMaxIterations,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.conversation == nil {
		a.conversation = memory.NewInMemoryConversation(memory.ConversationConfig{
			TruncationStrategy: &memory.WindowStrategy{
				MaxMessages:        defaultHistoryWindow,
				KeepSystemMessages: true,
			},
		})
	}
	return a
}

// Answer runs the loop for one utterance in the given conversation.
func (a *Agent) Answer(ctx context.Context, conversationID, utterance string) (*Result, error) {
	if utterance == "" {
		return nil, errors.Newf(errors.CodeInvalidInput, "utterance is empty")
	}

	lock := a.conversationLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	ctx, span := a.tracer.Start(ctx, "Agent.Answer",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)))
	defer span.End()

	a.emit(Event{Phase: PhaseAgent, Status: StatusActive, Detail: "processing request"})
	a.logger.Info("agent.answer.start", "conversation_id", conversationID)

	a.remember(ctx, conversationID, string(llm.RoleUser), utterance, "")

	llmTools := a.resolveTools(ctx)
	messages := a.buildMessages(ctx, conversationID)

	var (
		lastContent string
		toolCalls   int
	)
	for iteration := 0; iteration < a.maxIterations; iteration++ {
		a.emit(Event{Phase: PhaseLLM, Status: StatusActive, Detail: "thinking"})
		resp, err := a.provider.Chat(ctx, llm.ChatRequest{
			Model:       a.model,
			Messages:    messages,
			Tools:       llmTools,
			Temperature: a.temperature,
		})
		if err != nil {
			span.RecordError(err)
			a.logger.Error("agent.llm.error", "conversation_id", conversationID, "error", err)
			return nil, errors.New(errors.CodeLLMError, "text generation failed", err)
		}
		a.emit(Event{Phase: PhaseLLM, Status: StatusComplete})
		lastContent = resp.Content

		if len(resp.ToolCalls) == 0 {
			a.remember(ctx, conversationID, string(llm.RoleAssistant), resp.Content, "")
			a.emit(Event{Phase: PhaseDone, Status: StatusComplete})
			span.SetAttributes(
				attribute.Int("agent.iterations", iteration+1),
				attribute.Int("agent.tool_calls", toolCalls),
			)
			a.logger.Info("agent.answer.done",
				"conversation_id", conversationID,
				"iterations", iteration+1,
				"tool_calls", toolCalls)
			return &Result{Content: resp.Content, Iterations: iteration + 1, ToolCalls: toolCalls}, nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			toolCalls++
			resultText := a.executeToolCall(ctx, call)
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    resultText,
				ToolCallID: call.ID,
			})
			a.remember(ctx, conversationID, string(llm.RoleTool), resultText, call.ID)
		}
	}

	// Ceiling reached: stop with whatever the model said last. The
	// caller decides how to surface an empty truncated answer.
	a.emit(Event{Phase: PhaseDone, Status: StatusComplete, Detail: "iteration ceiling reached"})
	a.logger.Warn("agent.answer.truncated",
		"conversation_id", conversationID,
		"iterations", a.maxIterations,
		"tool_calls", toolCalls)
	if lastContent != "" {
		a.remember(ctx, conversationID, string(llm.RoleAssistant), lastContent, "")
	}
	return &Result{
		Content:    lastContent,
		Truncated:  true,
		Iterations: a.maxIterations,
		ToolCalls:  toolCalls,
	}, nil
}

// executeToolCall runs one requested invocation and renders its result
// as a conversational turn. Tool failures come back as text so the
// model can react to them; only argument parsing produces a synthetic
// error turn directly.
func (a *Agent) executeToolCall(ctx context.Context, call llm.ToolCall) string {
	name := call.Function.Name
	a.emit(Event{Phase: PhaseTool, Status: StatusActive, Tool: name, Detail: "calling " + name})

	args := map[string]any{}
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			a.emit(Event{Phase: PhaseTool, Status: StatusComplete, Tool: name})
			return "tool " + name + " failed: invalid arguments: " + err.Error()
		}
	}

	result, err := a.source.CallTool(ctx, name, args)
	a.emit(Event{Phase: PhaseTool, Status: StatusComplete, Tool: name})
	if err != nil {
		a.logger.Warn("agent.tool.dispatch_error", "tool", name, "error", err)
		return "tool " + name + " failed: " + err.Error()
	}

	text := extractText(result)
	if result.IsError {
		a.logger.Debug("agent.tool.error_result", "tool", name)
		if text == "" {
			text = "tool " + name + " reported an error"
		}
	}
	return text
}

// resolveTools fetches the live catalog and converts it to model
// function declarations. An unreachable source yields an empty catalog
// rather than a failed answer.
func (a *Agent) resolveTools(ctx context.Context) []llm.Tool {
	a.emit(Event{Phase: PhaseMCP, Status: StatusActive, Detail: "loading tools"})
	catalog, err := a.source.ListTools(ctx)
	a.emit(Event{Phase: PhaseMCP, Status: StatusComplete})
	if err != nil {
		a.logger.Warn("agent.tools.list_error", "error", err)
		return nil
	}

	defs := make([]llm.Tool, 0, len(catalog))
	for _, tool := range catalog {
		var params any = tool.InputSchema
		if tool.RawInputSchema != nil {
			params = tool.RawInputSchema
		}
		defs = append(defs, llm.Tool{
			Type: llm.ToolTypeFunction,
			Function: llm.FunctionDef{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  params,
			},
		})
	}
	return defs
}

func (a *Agent) buildMessages(ctx context.Context, conversationID string) []llm.Message {
	messages := []llm.Message{{Role: llm.RoleSystem, Content: a.systemPrompt}}

	history, err := a.conversation.GetMessages(ctx, conversationID)
	if err != nil {
		a.logger.Warn("agent.conversation.load_error", "conversation_id", conversationID, "error", err)
		return messages
	}
	for _, msg := range history {
		if msg.Role == string(llm.RoleSystem) {
			continue
		}
		messages = append(messages, llm.Message{
			Role:       llm.Role(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		})
	}
	return messages
}

func (a *Agent) remember(ctx context.Context, conversationID, role, content, toolCallID string) {
	if content == "" {
		return
	}
	err := a.conversation.AppendMessage(ctx, conversationID, memory.ConversationMessage{
		Role:       role,
		Content:    content,
		ToolCallID: toolCallID,
	})
	if err != nil {
		a.logger.Warn("agent.conversation.store_error", "conversation_id", conversationID, "error", err)
	}
}

func (a *Agent) conversationLock(conversationID string) *sync.Mutex {
	lock, _ := a.locks.LoadOrStore(conversationID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func extractText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	var parts []string
	for _, item := range result.Content {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}
