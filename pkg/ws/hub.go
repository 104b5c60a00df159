// SPDX-License-Identifier: Apache-2.0

// Package ws implements the interactive websocket channel for conversing
// with the agent. Every outbound frame is a typed envelope; only the
// response and error envelopes carry the answer, the rest are advisory
// progress signals.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/foodscout/foodscout/pkg/agent"
)

// Envelope is the frame shape in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound chat payload. Raw text frames that do not parse as an
// envelope are treated as chat content directly.
type chatPayload struct {
	Content        string `json:"content"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type welcomePayload struct {
	Agent          string `json:"agent"`
	Version        string `json:"version"`
	ConversationID string `json:"conversation_id"`
}

type responsePayload struct {
	Content        string `json:"content"`
	Truncated      bool   `json:"truncated,omitempty"`
	ConversationID string `json:"conversation_id"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type statusPayload struct {
	Detail string `json:"detail"`
}

type toolCallPayload struct {
	Tool   string `json:"tool"`
	Status string `json:"status"`
}

// Answerer runs one conversational turn. *agent.Agent satisfies it.
type Answerer interface {
	Answer(ctx context.Context, conversationID, utterance string) (*agent.Result, error)
}

type conn struct {
	ws             *websocket.Conn
	conversationID string
	cancel         context.CancelFunc
}

// Hub accepts websocket connections, feeds chat turns to the agent and
// broadcasts pipeline progress to every connected client.
type Hub struct {
	answerer Answerer
	logger   *slog.Logger
	name     string
	version  string

	mu    sync.RWMutex
	conns map[*conn]struct{}
}

// NewHub creates a hub serving the given agent identity.
func NewHub(answerer Answerer, name, version string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		answerer: answerer,
		logger:   logger,
		name:     name,
		version:  version,
		conns:    make(map[*conn]struct{}),
	}
}

// SetAnswerer installs the agent after construction. The hub is built
// first so it can be handed to the agent as its event sink.
func (h *Hub) SetAnswerer(answerer Answerer) {
	h.answerer = answerer
}

// ServeHTTP upgrades the request and runs the connection's read loop.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Origin checking is left to the reverse proxy in front of
		// the service; the endpoint itself accepts any origin.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &conn{ws: ws, conversationID: uuid.NewString(), cancel: cancel}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("websocket connected", "remote", r.RemoteAddr, "conversation", c.conversationID)

	h.send(ctx, c, "welcome", welcomePayload{
		Agent:          h.name,
		Version:        h.version,
		ConversationID: c.conversationID,
	})

	defer func() {
		h.remove(c)
		_ = ws.Close(websocket.StatusNormalClosure, "")
	}()
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			return
		}
		h.handleFrame(ctx, c, data)
	}
}

// handleFrame decodes one inbound frame. A typed chat envelope and a
// bare text frame are equivalent.
func (h *Hub) handleFrame(ctx context.Context, c *conn, data []byte) {
	var env Envelope
	chat := chatPayload{}
	if err := json.Unmarshal(data, &env); err == nil && env.Type != "" {
		switch env.Type {
		case "chat":
			if err := json.Unmarshal(env.Payload, &chat); err != nil {
				h.send(ctx, c, "error", errorPayload{Message: "malformed chat payload"})
				return
			}
		case "ping":
			h.send(ctx, c, "pong", nil)
			return
		default:
			h.send(ctx, c, "error", errorPayload{Message: "unknown envelope type: " + env.Type})
			return
		}
	} else {
		chat.Content = string(data)
	}

	conversationID := chat.ConversationID
	if conversationID == "" {
		conversationID = c.conversationID
	}

	if h.answerer == nil {
		h.send(ctx, c, "error", errorPayload{Message: "agent not ready"})
		return
	}
	result, err := h.answerer.Answer(ctx, conversationID, chat.Content)
	if err != nil {
		h.send(ctx, c, "error", errorPayload{Message: err.Error()})
		return
	}
	h.send(ctx, c, "response", responsePayload{
		Content:        result.Content,
		Truncated:      result.Truncated,
		ConversationID: conversationID,
	})
}

// ForwardEvent bridges agent progress events onto the channel. Wire it
// as the agent's event sink. Advisory only; it never blocks a caller
// beyond the write deadline of a slow socket.
func (h *Hub) ForwardEvent(event agent.Event) {
	ctx := context.Background()
	h.broadcast(ctx, "pipeline", event)
	if event.Tool != "" {
		h.broadcast(ctx, "tool_call", toolCallPayload{Tool: event.Tool, Status: string(event.Status)})
	}
	if event.Detail != "" {
		h.broadcast(ctx, "status", statusPayload{Detail: event.Detail})
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) send(ctx context.Context, c *conn, kind string, payload any) {
	data, err := encodeEnvelope(kind, payload)
	if err != nil {
		h.logger.Error("websocket encode failed", "type", kind, "error", err)
		return
	}
	if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
		h.logger.Debug("websocket write failed", "error", err)
		go h.remove(c)
	}
}

func (h *Hub) broadcast(ctx context.Context, kind string, payload any) {
	data, err := encodeEnvelope(kind, payload)
	if err != nil {
		h.logger.Error("websocket encode failed", "type", kind, "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
			h.logger.Debug("websocket write failed", "error", err)
			go h.remove(c)
		}
	}
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c]; ok {
		c.cancel()
		delete(h.conns, c)
		h.logger.Info("websocket disconnected", "conversation", c.conversationID)
	}
}

func encodeEnvelope(kind string, payload any) ([]byte, error) {
	env := Envelope{Type: kind}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}
