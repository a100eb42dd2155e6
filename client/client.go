// Package client implements the MCP client runtime: the handshake state
// machine, the call_tool surface, and the secure-value substitution pass
// that rewrites outbound arguments before they leave the process.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kosz78/mcp-core/engine"
	"github.com/kosz78/mcp-core/jsonrpc"
	"github.com/kosz78/mcp-core/transport"
)

// Builder accumulates the configuration for a Client before Build.
type Builder struct {
	transport       transport.Transport
	protocolVersion jsonrpc.ProtocolVersion
	clientInfo      jsonrpc.ClientInfo
	secureValues    *SecureValueMap
	strict          bool
}

// NewBuilder starts a Builder over t, identifying this client as
// clientInfo and requesting protocolVersion during initialize.
func NewBuilder(t transport.Transport, protocolVersion jsonrpc.ProtocolVersion, clientInfo jsonrpc.ClientInfo) *Builder {
	return &Builder{transport: t, protocolVersion: protocolVersion, clientInfo: clientInfo}
}

// WithSecureValues installs the secure-value map call_tool substitutes
// against. strict additionally rejects any remaining unsubstituted key
// name found in the argument tree after substitution.
func (b *Builder) WithSecureValues(m *SecureValueMap, strict bool) *Builder {
	b.secureValues = m
	b.strict = strict
	return b
}

// Build constructs a Client. Call Open then Initialize before CallTool.
func (b *Builder) Build() *Client {
	return &Client{
		eng:             engine.New(b.transport),
		protocolVersion: b.protocolVersion,
		clientInfo:      b.clientInfo,
		secureValues:    b.secureValues,
		strict:          b.strict,
	}
}

// Client is an MCP client session: one engine, one handshake state.
type Client struct {
	eng             *engine.Engine
	protocolVersion jsonrpc.ProtocolVersion
	clientInfo      jsonrpc.ClientInfo

	secureValues *SecureValueMap
	strict       bool

	serverInfo   jsonrpc.ServerInfo
	capabilities jsonrpc.Capabilities
}

// Open opens the underlying transport and starts the engine's reader.
func (c *Client) Open(ctx context.Context) error {
	return c.eng.Open(ctx)
}

// Close tears down the session.
func (c *Client) Close() error {
	return c.eng.Close()
}

// Initialize performs the handshake and stores the server's advertised
// capabilities.
func (c *Client) Initialize(ctx context.Context) (jsonrpc.ServerInfo, error) {
	params, err := json.Marshal(jsonrpc.InitializeParams{
		ProtocolVersion: c.protocolVersion,
		ClientInfo:      c.clientInfo,
	})
	if err != nil {
		return jsonrpc.ServerInfo{}, err
	}

	raw, err := c.eng.Request(ctx, "initialize", params, engine.RequestOptions{})
	if err != nil {
		return jsonrpc.ServerInfo{}, err
	}

	var result jsonrpc.InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return jsonrpc.ServerInfo{}, fmt.Errorf("client: malformed initialize result: %w", err)
	}

	c.serverInfo = result.ServerInfo
	c.capabilities = result.Capabilities
	return c.serverInfo, nil
}

// Capabilities returns the server's advertised capabilities, populated
// after a successful Initialize.
func (c *Client) Capabilities() jsonrpc.Capabilities { return c.capabilities }

// ListTools issues the tools/list request.
func (c *Client) ListTools(ctx context.Context) ([]jsonrpc.Tool, error) {
	raw, err := c.eng.Request(ctx, "tools/list", nil, engine.RequestOptions{})
	if err != nil {
		return nil, err
	}
	var result jsonrpc.ToolsListResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("client: malformed tools/list result: %w", err)
	}
	return result.Tools, nil
}

// CallTool substitutes secure values into arguments, then issues
// tools/call and decodes the wrapped result. See spec.md §4.5.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (jsonrpc.CallToolResult, error) {
	substituted, err := c.substitute(arguments)
	if err != nil {
		return jsonrpc.CallToolResult{}, err
	}

	params, err := json.Marshal(jsonrpc.CallToolRequest{Name: name, Arguments: substituted})
	if err != nil {
		return jsonrpc.CallToolResult{}, err
	}

	raw, err := c.eng.Request(ctx, "tools/call", params, engine.RequestOptions{})
	if err != nil {
		return jsonrpc.CallToolResult{}, err
	}

	var result jsonrpc.CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return jsonrpc.CallToolResult{}, fmt.Errorf("client: malformed tools/call result: %w", err)
	}
	return result, nil
}

// Request exposes the raw engine surface for method names not covered by
// the typed helpers above.
func (c *Client) Request(ctx context.Context, method string, params json.RawMessage, timeout time.Duration) (json.RawMessage, error) {
	return c.eng.Request(ctx, method, params, engine.RequestOptions{Timeout: timeout})
}

// Notify exposes the raw fire-and-forget engine surface.
func (c *Client) Notify(ctx context.Context, method string, params json.RawMessage) error {
	return c.eng.Notify(ctx, method, params)
}
