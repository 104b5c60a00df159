package a2a

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newRPCServer() *JSONRPCServer {
	return NewJSONRPCServer(NewHandler(NewMemoryTaskStore(), echoExecutor(), nil))
}

func rpcCall(t *testing.T, srv *JSONRPCServer, body string) rpcResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/a2a", bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var resp rpcResponse
	raw := rec.Body.Bytes()
	var envelope struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Result  json.RawMessage `json:"result"`
		Error   *rpcError       `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("decode response: %v (%s)", err, raw)
	}
	resp.JSONRPC = envelope.JSONRPC
	resp.ID = envelope.ID
	if envelope.Result != nil {
		resp.Result = envelope.Result
	}
	resp.Error = envelope.Error
	return resp
}

func TestJSONRPCSendAndGet(t *testing.T) {
	srv := newRPCServer()

	resp := rpcCall(t, srv, `{"jsonrpc":"2.0","id":1,"method":"SendMessage","params":{"message":{"messageId":"m1","role":"user","parts":[{"kind":"text","text":"hi"}]}}}`)
	if resp.Error != nil {
		t.Fatalf("SendMessage error: %+v", resp.Error)
	}

	var task Task
	if err := json.Unmarshal(resp.Result.(json.RawMessage), &task); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	if task.Status.State != TaskStateCompleted {
		t.Fatalf("state = %s", task.Status.State)
	}

	resp = rpcCall(t, srv, `{"jsonrpc":"2.0","id":2,"method":"GetTask","params":{"id":"`+task.ID+`"}}`)
	if resp.Error != nil {
		t.Fatalf("GetTask error: %+v", resp.Error)
	}
	var fetched Task
	if err := json.Unmarshal(resp.Result.(json.RawMessage), &fetched); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fetched.ID != task.ID || fetched.Status.State != TaskStateCompleted {
		t.Errorf("fetched = %+v", fetched)
	}
}

func TestJSONRPCUnknownTask(t *testing.T) {
	srv := newRPCServer()
	resp := rpcCall(t, srv, `{"jsonrpc":"2.0","id":3,"method":"GetTask","params":{"id":"missing"}}`)
	if resp.Error == nil || resp.Error.Code != -32004 {
		t.Errorf("expected -32004, got %+v", resp.Error)
	}
}

func TestJSONRPCProtocolErrors(t *testing.T) {
	srv := newRPCServer()

	resp := rpcCall(t, srv, `{oops`)
	if resp.Error == nil || resp.Error.Code != -32700 {
		t.Errorf("parse: %+v", resp.Error)
	}

	resp = rpcCall(t, srv, `{"jsonrpc":"2.0","id":1,"method":"Teleport","params":{}}`)
	if resp.Error == nil || resp.Error.Code != -32601 {
		t.Errorf("method not found: %+v", resp.Error)
	}

	resp = rpcCall(t, srv, `{"jsonrpc":"2.0","id":1,"method":"SendMessage"}`)
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("missing params: %+v", resp.Error)
	}

	resp = rpcCall(t, srv, `{"jsonrpc":"2.0","id":1,"method":"SendMessage","params":{"message":{"messageId":"m","role":"user","parts":[]}}}`)
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("empty message: %+v", resp.Error)
	}
}

func TestJSONRPCMethodAliases(t *testing.T) {
	srv := newRPCServer()
	resp := rpcCall(t, srv, `{"jsonrpc":"2.0","id":1,"method":"message/send","params":{"message":{"messageId":"m1","role":"user","parts":[{"kind":"text","text":"hi"}]}}}`)
	if resp.Error != nil {
		t.Fatalf("message/send alias: %+v", resp.Error)
	}
}
