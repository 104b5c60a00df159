// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/foodscout/foodscout/pkg/gateway"
	"github.com/foodscout/foodscout/pkg/tools"
)

type recordedRequest struct {
	Method  string
	Session string
}

// headerRecorder wraps the gateway handler and records the session
// header of every inbound request.
type headerRecorder struct {
	inner http.Handler

	mu       sync.Mutex
	requests []recordedRequest
}

func (h *headerRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.requests = append(h.requests, recordedRequest{
		Method:  r.Method,
		Session: r.Header.Get(gateway.SessionHeader),
	})
	h.mu.Unlock()
	h.inner.ServeHTTP(w, r)
}

func (h *headerRecorder) recorded() []recordedRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]recordedRequest(nil), h.requests...)
}

func newGatewayFixture(t *testing.T, token string) (*httptest.Server, *headerRecorder) {
	t.Helper()
	registry := tools.NewRegistry(&testSource{})
	var handler http.Handler = gateway.NewServer("foodscout", "test", registry)
	if token != "" {
		handler = gateway.BearerAuth(token)(handler)
	}
	recorder := &headerRecorder{inner: handler}
	srv := httptest.NewServer(recorder)
	t.Cleanup(srv.Close)
	return srv, recorder
}

func TestGatewaySourceListsTools(t *testing.T) {
	srv, _ := newGatewayFixture(t, "")
	src := NewGatewaySource(srv.URL, "")
	t.Cleanup(func() { _ = src.Close(context.Background()) })

	list, err := src.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(list) != 5 {
		t.Errorf("catalog size = %d, want 5", len(list))
	}
}

func TestGatewaySourceReusesSession(t *testing.T) {
	srv, recorder := newGatewayFixture(t, "")
	src := NewGatewaySource(srv.URL, "")
	t.Cleanup(func() { _ = src.Close(context.Background()) })

	if _, err := src.ListTools(context.Background()); err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if _, err := src.CallTool(context.Background(), "search_products", map[string]any{"query": "peanut"}); err != nil {
		t.Fatalf("CallTool: %v", err)
	}

	requests := recorder.recorded()
	if len(requests) < 3 {
		t.Fatalf("expected handshake plus calls, got %d requests", len(requests))
	}
	// Every request after the handshake must carry the minted session.
	var session string
	for _, req := range requests[1:] {
		if req.Session == "" {
			t.Errorf("request %q sent without session token", req.Method)
			continue
		}
		if session == "" {
			session = req.Session
		} else if req.Session != session {
			t.Errorf("session changed across calls: %q then %q", session, req.Session)
		}
	}
}

func TestGatewaySourceSendsBearerToken(t *testing.T) {
	srv, _ := newGatewayFixture(t, "secret")

	authed := NewGatewaySource(srv.URL, "secret")
	t.Cleanup(func() { _ = authed.Close(context.Background()) })
	if _, err := authed.ListTools(context.Background()); err != nil {
		t.Fatalf("authorized call failed: %v", err)
	}

	anon := NewGatewaySource(srv.URL, "")
	if _, err := anon.ListTools(context.Background()); err == nil {
		t.Fatal("expected error without bearer token")
	}
}

func TestGatewaySourceToolError(t *testing.T) {
	srv, _ := newGatewayFixture(t, "")
	src := NewGatewaySource(srv.URL, "")
	t.Cleanup(func() { _ = src.Close(context.Background()) })

	// Domain failures travel inside the result, not as a dispatch error.
	result, err := src.CallTool(context.Background(), "get_product_by_barcode", map[string]any{"barcode": "404404"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !result.IsError {
		t.Error("expected IsError result for an unknown barcode")
	}
}

func TestGatewaySourceHealthy(t *testing.T) {
	srv, _ := newGatewayFixture(t, "")
	src := NewGatewaySource(srv.URL, "")
	t.Cleanup(func() { _ = src.Close(context.Background()) })
	if !src.Healthy(context.Background()) {
		t.Error("live gateway should report healthy")
	}

	dead := NewGatewaySource("http://127.0.0.1:1/mcp", "")
	if dead.Healthy(context.Background()) {
		t.Error("unreachable gateway should report unhealthy")
	}
}

func TestGatewaySourceCloseEndsSession(t *testing.T) {
	srv, recorder := newGatewayFixture(t, "")
	src := NewGatewaySource(srv.URL, "")

	if _, err := src.ListTools(context.Background()); err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if err := src.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Close again is a no-op on an already torn down client.
	if err := src.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	var sawDelete bool
	for _, req := range recorder.recorded() {
		if req.Method == http.MethodDelete {
			sawDelete = true
		}
	}
	if !sawDelete {
		t.Error("expected the session to be closed with DELETE")
	}
}

func TestInProcessSourceAlwaysHealthy(t *testing.T) {
	src := &InProcessSource{Registry: tools.NewRegistry(&testSource{})}
	if !src.Healthy(context.Background()) {
		t.Error("in-process source must always be healthy")
	}
	names := []string{}
	list, err := src.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	for _, tool := range list {
		names = append(names, tool.Name)
	}
	if !strings.Contains(strings.Join(names, ","), "compare_products") {
		t.Errorf("catalog missing compare_products: %v", names)
	}
}
