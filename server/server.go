// Package server implements the MCP server runtime: the tool registry,
// the initialize handshake, and the built-in method handlers that turn
// tools/list and tools/call into registered handler invocations.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/kosz78/mcp-core/engine"
	"github.com/kosz78/mcp-core/internal/auditlog"
	"github.com/kosz78/mcp-core/jsonrpc"
	"github.com/kosz78/mcp-core/tool"
	"github.com/kosz78/mcp-core/transport"
)

// state is the per-session handshake state machine of spec.md §3.
type state int

const (
	stateUninitialized state = iota
	stateInitializing
	stateReady
	stateClosed
)

// DuplicateToolError is returned by Build when two tools register under
// the same name.
type DuplicateToolError struct{ Name string }

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("server: duplicate tool registration: %q", e.Name)
}

// Builder accumulates server identity, capabilities, and tools before
// freezing them into a Server via Build.
type Builder struct {
	name                      string
	version                   string
	supportedProtocolVersions map[jsonrpc.ProtocolVersion]bool
	capabilities              jsonrpc.Capabilities
	tools                     []tool.Descriptor
	names                     map[string]bool
	auditLogPath              string
	disabledTools             map[string]bool
}

// NewBuilder starts a Builder for a server identified by name/version,
// accepting the given protocol versions during initialize.
func NewBuilder(name, version string, protocolVersions ...jsonrpc.ProtocolVersion) *Builder {
	supported := make(map[jsonrpc.ProtocolVersion]bool, len(protocolVersions))
	for _, v := range protocolVersions {
		supported[v] = true
	}
	return &Builder{
		name:                      name,
		version:                   version,
		supportedProtocolVersions: supported,
		capabilities:              jsonrpc.Capabilities{Tools: &jsonrpc.ToolsCapability{}},
		names:                     make(map[string]bool),
	}
}

// WithCapabilities overrides the advertised capabilities.
func (b *Builder) WithCapabilities(c jsonrpc.Capabilities) *Builder {
	b.capabilities = c
	return b
}

// WithAuditLog enables an flock-guarded JSONL audit trail of every
// tools/call at path.
func (b *Builder) WithAuditLog(path string) *Builder {
	b.auditLogPath = path
	return b
}

// RegisterTool adds a (descriptor, handler) pair to the registry.
func (b *Builder) RegisterTool(d tool.Descriptor) *Builder {
	b.names[d.Tool.Name] = true
	b.tools = append(b.tools, d)
	return b
}

// WithDisabledTools excludes the named tools from the registry entirely: a
// disabled tool never appears in tools/list and tools/call rejects it with
// -32602, as if it had never been registered. Typically sourced from a
// manifest's disabled_tools allow/deny list.
func (b *Builder) WithDisabledTools(names []string) *Builder {
	if b.disabledTools == nil {
		b.disabledTools = make(map[string]bool, len(names))
	}
	for _, n := range names {
		b.disabledTools[n] = true
	}
	return b
}

// Build freezes the registry. Registering the same tool name twice is
// rejected here with *DuplicateToolError, per the spec's own recommended
// resolution of its duplicate-registration Open Question.
func (b *Builder) Build() (*Server, error) {
	seen := make(map[string]bool, len(b.tools))
	for _, d := range b.tools {
		if seen[d.Tool.Name] {
			return nil, &DuplicateToolError{Name: d.Tool.Name}
		}
		seen[d.Tool.Name] = true
	}

	var audit *auditlog.Writer
	if b.auditLogPath != "" {
		w, err := auditlog.Open(b.auditLogPath)
		if err != nil {
			return nil, fmt.Errorf("server: opening audit log: %w", err)
		}
		audit = w
	}

	order := make([]string, 0, len(b.tools))
	handlers := make(map[string]tool.Handler, len(b.tools))
	descriptors := make(map[string]jsonrpc.Tool, len(b.tools))
	for _, d := range b.tools {
		if b.disabledTools[d.Tool.Name] {
			continue
		}
		order = append(order, d.Tool.Name)
		handlers[d.Tool.Name] = d.Handler
		descriptors[d.Tool.Name] = d.Tool
	}

	return &Server{
		name:             b.name,
		version:          b.version,
		supportedVersion: b.supportedProtocolVersions,
		capabilities:     b.capabilities,
		order:            order,
		handlers:         handlers,
		descriptors:      descriptors,
		audit:            audit,
	}, nil
}

// Server is a frozen tool registry, ready to be run over a transport via
// Serve. Each Serve call keeps its own handshake state.
type Server struct {
	name             string
	version          string
	supportedVersion map[jsonrpc.ProtocolVersion]bool
	capabilities     jsonrpc.Capabilities
	order            []string
	handlers         map[string]tool.Handler
	descriptors      map[string]jsonrpc.Tool
	audit            *auditlog.Writer

	mu    sync.Mutex
	state state
}

// Serve runs one session's engine over t until the transport closes.
// It blocks until the session ends.
func (s *Server) Serve(ctx context.Context, t transport.Transport) error {
	// The registry is shared read-only; the handshake state is per session.
	sess := &Server{
		name: s.name, version: s.version, supportedVersion: s.supportedVersion,
		capabilities: s.capabilities, order: s.order, handlers: s.handlers,
		descriptors: s.descriptors, audit: s.audit,
	}
	eng := engine.New(t)
	eng.RegisterHandler("initialize", sess.handleInitialize)
	eng.RegisterHandler("tools/list", sess.handleToolsList)
	eng.RegisterHandler("tools/call", sess.handleToolsCall)

	if err := eng.Open(ctx); err != nil {
		return err
	}

	select {
	case <-eng.Done():
		return nil
	case <-ctx.Done():
		return eng.Close()
	}
}

func (s *Server) handleInitialize(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var params jsonrpc.InitializeParams
	if raw != nil {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, engine.InvalidParamsError("invalid initialize params: " + err.Error())
		}
	}

	s.mu.Lock()
	if s.state != stateUninitialized {
		s.mu.Unlock()
		return nil, &engine.HandlerError{Code: jsonrpc.CodeInvalidRequest, Message: "initialize called more than once on this session"}
	}
	s.state = stateInitializing
	s.mu.Unlock()

	if !s.supportedVersion[params.ProtocolVersion] {
		s.mu.Lock()
		s.state = stateUninitialized
		s.mu.Unlock()
		return nil, &engine.HandlerError{Code: jsonrpc.CodeInvalidParams, Message: "unsupported protocol version"}
	}

	s.mu.Lock()
	s.state = stateReady
	s.mu.Unlock()

	result := jsonrpc.InitializeResult{
		ProtocolVersion: params.ProtocolVersion,
		Capabilities:    s.capabilities,
		ServerInfo:      jsonrpc.ServerInfo{Name: s.name, Version: s.version},
	}
	return json.Marshal(result)
}

func (s *Server) handleToolsList(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	if !s.isReady() {
		return nil, &engine.HandlerError{Code: jsonrpc.CodeInvalidRequest, Message: "session is not initialized"}
	}

	tools := make([]jsonrpc.Tool, 0, len(s.order))
	for _, name := range s.order {
		tools = append(tools, s.descriptors[name])
	}
	return json.Marshal(jsonrpc.ToolsListResult{Tools: tools})
}

func (s *Server) handleToolsCall(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var params jsonrpc.CallToolRequest
	if raw != nil {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, engine.InvalidParamsError("invalid tools/call params: " + err.Error())
		}
	}

	handler, ok := s.handlers[params.Name]
	if !ok {
		return nil, &engine.HandlerError{Code: jsonrpc.CodeInvalidParams, Message: "unknown tool: " + params.Name}
	}

	start := time.Now()
	content, err := handler(ctx, params.Arguments)
	duration := time.Since(start)

	result := jsonrpc.CallToolResult{IsError: err != nil}
	if err != nil {
		result.Content = []jsonrpc.ToolResponseContent{tool.TextContent(err.Error())}
	} else {
		result.Content = []jsonrpc.ToolResponseContent{content}
	}

	if s.audit != nil {
		s.audit.Record(auditlog.Entry{
			Time:       start,
			Tool:       params.Name,
			IsError:    err != nil,
			DurationMs: duration.Milliseconds(),
		})
	}

	return json.Marshal(result)
}

func (s *Server) isReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateReady
}

// AuditStats returns the number of calls and bytes the server's audit
// writer has recorded so far, or (0, 0) if no audit log was configured.
func (s *Server) AuditStats() (calls int, bytes int64) {
	if s.audit == nil {
		return 0, 0
	}
	return s.audit.Stats()
}

// Summary returns a human-readable one-line startup/shutdown summary,
// e.g. "llm-echo v1.0.0: 3 tools, 128 calls served, 4.2 kB logged".
func (s *Server) Summary(callsServed int, auditBytes int64) string {
	return fmt.Sprintf("%s v%s: %s tools, %s calls served, %s logged",
		s.name, s.version,
		humanize.Comma(int64(len(s.order))),
		humanize.Comma(int64(callsServed)),
		humanize.Bytes(uint64(auditBytes)))
}
