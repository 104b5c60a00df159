package a2a

import (
	"encoding/json"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// JSONRPCServer exposes the task protocol over a JSON-RPC 2.0 HTTP
// binding: a single submit endpoint carrying SendMessage, GetTask, and
// CancelTask methods.
type JSONRPCServer struct {
	Handler *Handler
}

// NewJSONRPCServer wraps a handler.
func NewJSONRPCServer(handler *Handler) *JSONRPCServer {
	return &JSONRPCServer{Handler: handler}
}

// ServeHTTP handles JSON-RPC 2.0 requests.
func (s *JSONRPCServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.Handler == nil {
		writeError(w, nil, rpcError{Code: -32001, Message: "handler not configured"})
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, rpcError{Code: -32700, Message: "invalid json"})
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		writeError(w, req.ID, rpcError{Code: -32600, Message: "invalid request"})
		return
	}

	switch req.Method {
	case "SendMessage", "message/send":
		payload := &SendMessageRequest{}
		if err := decodeParams(req.Params, payload); err != nil {
			writeError(w, req.ID, rpcError{Code: -32602, Message: err.Error()})
			return
		}
		task, err := s.Handler.SendMessage(r.Context(), payload)
		if err != nil {
			writeRPCError(w, req.ID, err)
			return
		}
		writeResult(w, req.ID, task)
	case "GetTask", "tasks/get":
		payload := &GetTaskRequest{}
		if err := decodeParams(req.Params, payload); err != nil {
			writeError(w, req.ID, rpcError{Code: -32602, Message: err.Error()})
			return
		}
		task, err := s.Handler.GetTask(r.Context(), payload)
		if err != nil {
			writeRPCError(w, req.ID, err)
			return
		}
		writeResult(w, req.ID, task)
	case "CancelTask", "tasks/cancel":
		payload := &CancelTaskRequest{}
		if err := decodeParams(req.Params, payload); err != nil {
			writeError(w, req.ID, rpcError{Code: -32602, Message: err.Error()})
			return
		}
		task, err := s.Handler.CancelTask(r.Context(), payload)
		if err != nil {
			writeRPCError(w, req.ID, err)
			return
		}
		writeResult(w, req.ID, task)
	default:
		writeError(w, req.ID, rpcError{Code: -32601, Message: "method not found"})
	}
}

func decodeParams(params json.RawMessage, target any) error {
	if len(params) == 0 {
		return status.Error(codes.InvalidArgument, "missing params")
	}
	return json.Unmarshal(params, target)
}

func writeResult(w http.ResponseWriter, id json.RawMessage, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		writeRPCError(w, id, status.Error(codes.Internal, err.Error()))
		return
	}
	writeJSON(w, rpcResponse{JSONRPC: "2.0", ID: id, Result: json.RawMessage(raw)})
}

func writeRPCError(w http.ResponseWriter, id json.RawMessage, err error) {
	st, ok := status.FromError(err)
	if !ok {
		writeError(w, id, rpcError{Code: -32000, Message: err.Error()})
		return
	}
	code := -32000
	switch st.Code() {
	case codes.InvalidArgument:
		code = -32602
	case codes.NotFound:
		code = -32004
	case codes.Unauthenticated:
		code = -32001
	case codes.PermissionDenied:
		code = -32003
	case codes.FailedPrecondition:
		code = -32002
	case codes.Unimplemented:
		code = -32601
	}
	writeError(w, id, rpcError{Code: code, Message: st.Message()})
}

func writeError(w http.ResponseWriter, id json.RawMessage, err rpcError) {
	writeJSON(w, rpcResponse{JSONRPC: "2.0", ID: id, Error: &err})
}

func writeJSON(w http.ResponseWriter, payload rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
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
