// Package gateway exposes the tool catalog over a JSON-RPC 2.0 HTTP
// binding with per-client sessions. POST carries single or batched
// envelopes, GET holds an advisory event stream open, DELETE closes
// the session.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/foodscout/foodscout/pkg/errors"
	"github.com/foodscout/foodscout/pkg/tools"
)

// ProtocolVersion is the tool-protocol revision this gateway declares.
const ProtocolVersion = "2024-11-05"

const defaultKeepalive = 15 * time.Second

// Server is the JSON-RPC dispatcher over the tool registry.
type Server struct {
	registry  *tools.Registry
	sessions  SessionStore
	logger    *slog.Logger
	tracer    trace.Tracer
	name      string
	version   string
	keepalive time.Duration
}

// Option customizes the server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithKeepalive sets the advisory-stream keepalive interval.
func WithKeepalive(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.keepalive = d
		}
	}
}

// WithSessionStore replaces the session registry.
func WithSessionStore(store SessionStore) Option {
	return func(s *Server) {
		if store != nil {
			s.sessions = store
		}
	}
}

// NewServer creates a gateway over the given registry.
func NewServer(name, version string, registry *tools.Registry, opts ...Option) *Server {
	s := &Server{
		registry:  registry,
		sessions:  NewMemorySessionStore(),
		logger:    slog.Default(),
		tracer:    otel.Tracer("foodscout/gateway"),
		name:      name,
		version:   version,
		keepalive: defaultKeepalive,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServeHTTP implements http.Handler. The HTTP method selects the
// operation: POST submits envelopes, GET opens the advisory stream,
// DELETE tears down the session.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r)
	case http.MethodGet:
		s.handleStream(w, r)
	case http.MethodDelete:
		s.handleClose(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	sess := s.resolveSession(r)
	w.Header().Set(SessionHeader, sess.ID)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeSingle(w, errorResponse(nil, -32700, "failed to read request body"))
		return
	}

	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		s.handleBatch(w, r.Context(), body)
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeSingle(w, errorResponse(nil, -32700, "invalid json"))
		return
	}

	resp := s.dispatch(r.Context(), req)
	if resp == nil {
		// Notification: acknowledged via transport status only.
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeSingle(w, *resp)
}

func (s *Server) handleBatch(w http.ResponseWriter, ctx context.Context, body []byte) {
	var reqs []json.RawMessage
	if err := json.Unmarshal(body, &reqs); err != nil {
		writeSingle(w, errorResponse(nil, -32700, "invalid json"))
		return
	}
	if len(reqs) == 0 {
		writeSingle(w, errorResponse(nil, -32600, "empty batch"))
		return
	}

	// Items are processed independently and in order; notifications
	// contribute no entry to the response array.
	responses := make([]rpcResponse, 0, len(reqs))
	for _, raw := range reqs {
		var req rpcRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			responses = append(responses, errorResponse(nil, -32700, "invalid json"))
			continue
		}
		if resp := s.dispatch(ctx, req); resp != nil {
			responses = append(responses, *resp)
		}
	}

	if len(responses) == 0 {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(responses)
}

// handleStream holds an advisory event stream open with periodic
// keepalive comments. No protocol content is pushed.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sess := s.resolveSession(r)
	w.Header().Set(SessionHeader, sess.ID)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(s.keepalive)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if id := r.Header.Get(SessionHeader); id != "" {
		s.sessions.Delete(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// resolveSession accepts a recognized session token or mints a fresh
// one; unrecognized tokens are replaced, not rejected with an error.
func (s *Server) resolveSession(r *http.Request) Session {
	if id := r.Header.Get(SessionHeader); id != "" {
		if sess, ok := s.sessions.Get(id); ok {
			return sess
		}
	}
	sess := s.sessions.Create()
	s.logger.Debug("session created", "session_id", sess.ID)
	return sess
}

// dispatch routes one envelope. A nil return means the envelope was a
// notification and produces no response body.
func (s *Server) dispatch(ctx context.Context, req rpcRequest) *rpcResponse {
	if req.JSONRPC != "2.0" || req.Method == "" {
		return respPtr(errorResponse(req.ID, -32600, "invalid request"))
	}

	// Any envelope without an identifier is a notification and gets no
	// response entry, whatever the method names.
	if req.ID == nil {
		return nil
	}

	switch req.Method {
	case "initialize":
		return respPtr(s.handleInitialize(req))
	case "ping":
		return respPtr(resultResponse(req.ID, struct{}{}))
	case "tools/list":
		return respPtr(resultResponse(req.ID, listToolsResult{Tools: s.registry.List()}))
	case "tools/call":
		return respPtr(s.handleToolsCall(ctx, req))
	default:
		return respPtr(errorResponse(req.ID, -32601, "method not found"))
	}
}

func (s *Server) handleInitialize(req rpcRequest) rpcResponse {
	var params struct {
		ProtocolVersion string             `json:"protocolVersion"`
		ClientInfo      mcp.Implementation `json:"clientInfo"`
	}
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, -32602, "invalid initialize params")
		}
	}
	s.logger.Info("client initialized",
		"client", params.ClientInfo.Name,
		"client_version", params.ClientInfo.Version,
		"protocol_version", params.ProtocolVersion)

	return resultResponse(req.ID, initializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    capabilities{Tools: &toolsCapability{}},
		ServerInfo:      mcp.Implementation{Name: s.name, Version: s.version},
	})
}

func (s *Server) handleToolsCall(ctx context.Context, req rpcRequest) rpcResponse {
	var params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, -32602, "invalid tools/call params")
	}

	ctx, span := s.tracer.Start(ctx, "tools/call",
		trace.WithAttributes(attribute.String("tool.name", params.Name)))
	defer span.End()

	result, err := s.registry.Call(ctx, params.Name, params.Arguments)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, errors.CodeInvalidInput) {
			return errorResponse(req.ID, -32602, err.Error())
		}
		s.logger.Error("tool dispatch failed", "tool", params.Name, "error", err)
		return errorResponse(req.ID, -32603, "internal error")
	}
	if result.IsError {
		span.SetAttributes(attribute.Bool("tool.is_error", true))
	}
	return resultResponse(req.ID, result)
}

type initializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    capabilities       `json:"capabilities"`
	ServerInfo      mcp.Implementation `json:"serverInfo"`
}

type capabilities struct {
	Tools *toolsCapability `json:"tools,omitempty"`
}

type toolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

type listToolsResult struct {
	Tools []mcp.Tool `json:"tools"`
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func resultResponse(id json.RawMessage, result any) rpcResponse {
	return rpcResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id json.RawMessage, code int, message string) rpcResponse {
	return rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}}
}

func respPtr(resp rpcResponse) *rpcResponse {
	return &resp
}

func writeSingle(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
