// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/foodscout/foodscout/pkg/errors"
	"github.com/foodscout/foodscout/pkg/resilience"
	"github.com/foodscout/foodscout/pkg/tools"
)

// ToolSource abstracts where tool calls execute. The loop never knows
// whether it talks to the RPC gateway or to the in-process registry.
type ToolSource interface {
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
	Healthy(ctx context.Context) bool
}

// InProcessSource executes tools directly against the registry.
type InProcessSource struct {
	Registry *tools.Registry
}

func (s *InProcessSource) ListTools(context.Context) ([]mcp.Tool, error) {
	return s.Registry.List(), nil
}

func (s *InProcessSource) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	return s.Registry.Call(ctx, name, args)
}

func (s *InProcessSource) Healthy(context.Context) bool { return true }

const healthProbeTimeout = 2 * time.Second

// GatewaySource executes tools through the gateway's streamable HTTP
// endpoint using the mcp-go client, which owns the handshake and the
// session token across calls.
type GatewaySource struct {
	URL   string
	Token string

	mu     sync.Mutex
	client mcpclient.MCPClient
}

// NewGatewaySource creates a client against the gateway endpoint. The
// connection is dialed lazily on first use.
func NewGatewaySource(url, token string) *GatewaySource {
	return &GatewaySource{URL: url, Token: token}
}

// connect dials the gateway and performs the initialize handshake once;
// later calls reuse the established session.
func (s *GatewaySource) connect(ctx context.Context) (mcpclient.MCPClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}

	var opts []transport.StreamableHTTPCOption
	if s.Token != "" {
		opts = append(opts, transport.WithHTTPHeaders(map[string]string{
			"Authorization": "Bearer " + s.Token,
		}))
	}
	c, err := mcpclient.NewStreamableHttpClient(s.URL, opts...)
	if err != nil {
		return nil, errors.New(errors.CodeUpstream, "gateway client setup failed", err).WithRecoverable(true)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "foodscout-agent",
		Version: "0.1.0",
	}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return nil, errors.New(errors.CodeUpstream, "gateway initialize failed", err).WithRecoverable(true)
	}

	s.client = c
	return c, nil
}

// ListTools implements ToolSource.
func (s *GatewaySource) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	c, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	result, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, errors.New(errors.CodeUpstream, "gateway tools/list failed", err).WithRecoverable(true)
	}
	return result.Tools, nil
}

// CallTool implements ToolSource. Tool-level failures arrive inside the
// result with IsError set; an error return means the call never reached
// a tool.
func (s *GatewaySource) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	c, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	result, err := c.CallTool(ctx, req)
	if err != nil {
		return nil, errors.Newf(errors.CodeUpstream, "gateway tools/call %s failed: %v", name, err).WithRecoverable(true)
	}
	return result, nil
}

// Healthy implements ToolSource with a short ping probe.
func (s *GatewaySource) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()
	c, err := s.connect(ctx)
	if err != nil {
		return false
	}
	return c.Ping(ctx) == nil
}

// Close tears down the gateway session. The next call re-dials.
func (s *GatewaySource) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

// FailoverSource prefers the primary source while it is healthy and
// switches to the fallback otherwise. The selection is invisible to
// the caller.
type FailoverSource struct {
	Primary  ToolSource
	Fallback ToolSource
}

func (s *FailoverSource) pick(ctx context.Context) ToolSource {
	if s.Primary != nil && s.Primary.Healthy(ctx) {
		return s.Primary
	}
	return s.Fallback
}

// ListTools implements ToolSource.
func (s *FailoverSource) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	list, err := s.pick(ctx).ListTools(ctx)
	if err != nil && s.Fallback != nil {
		return s.Fallback.ListTools(ctx)
	}
	return list, err
}

// CallTool implements ToolSource. An upstream transport failure on the
// primary retries once on the fallback; tool-level errors pass through.
func (s *FailoverSource) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	return resilience.WithFallback(ctx,
		func() (*mcp.CallToolResult, error) {
			return s.pick(ctx).CallTool(ctx, name, args)
		},
		resilience.FallbackFunc[*mcp.CallToolResult](func(ctx context.Context, primaryErr error) (*mcp.CallToolResult, error) {
			if s.Fallback == nil || !errors.Is(primaryErr, errors.CodeUpstream) {
				return nil, primaryErr
			}
			return s.Fallback.CallTool(ctx, name, args)
		}),
	)
}

// Healthy implements ToolSource.
func (s *FailoverSource) Healthy(ctx context.Context) bool {
	if s.Primary != nil && s.Primary.Healthy(ctx) {
		return true
	}
	return s.Fallback != nil && s.Fallback.Healthy(ctx)
}
