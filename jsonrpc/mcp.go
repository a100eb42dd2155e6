package jsonrpc

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

// ProtocolVersion is one of the MCP protocol version tags both peers must
// agree on during initialize.
type ProtocolVersion string

const (
	ProtocolVersion20241105 ProtocolVersion = "2024-11-05"
	ProtocolVersion20250326 ProtocolVersion = "2025-03-26"
)

// ToolAnnotations carries optional hints about a tool's behaviour. The
// zero value is NOT the documented default; use DefaultToolAnnotations.
type ToolAnnotations struct {
	Title           string `json:"title,omitempty"`
	ReadOnlyHint    bool   `json:"readOnlyHint"`
	DestructiveHint bool   `json:"destructiveHint"`
	IdempotentHint  bool   `json:"idempotentHint"`
	OpenWorldHint   bool   `json:"openWorldHint"`
}

// DefaultToolAnnotations returns the documented defaults:
// readOnlyHint=false, destructiveHint=true, idempotentHint=false,
// openWorldHint=true.
func DefaultToolAnnotations() ToolAnnotations {
	return ToolAnnotations{
		ReadOnlyHint:    false,
		DestructiveHint: true,
		IdempotentHint:  false,
		OpenWorldHint:   true,
	}
}

// Tool is a descriptor advertised by a server via tools/list.
type Tool struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	InputSchema *jsonschema.Schema `json:"inputSchema"`
	Annotations *ToolAnnotations   `json:"annotations,omitempty"`
}

// CallToolRequest is the params shape of a tools/call request.
type CallToolRequest struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ContentKind tags the variant of a ToolResponseContent value.
type ContentKind string

const (
	ContentText     ContentKind = "text"
	ContentImage    ContentKind = "image"
	ContentResource ContentKind = "resource"
)

// ToolResponseContent is a tagged union over the three content shapes a
// tool may return.
type ToolResponseContent struct {
	Type     ContentKind `json:"type"`
	Text     string      `json:"text,omitempty"`
	Data     string      `json:"data,omitempty"`     // base64 image bytes
	MimeType string      `json:"mimeType,omitempty"` // image / resource mime type
	URI      string      `json:"uri,omitempty"`      // resource identifier
}

// CallToolResult is the wrapped result returned from a tools/call request.
type CallToolResult struct {
	Content []ToolResponseContent `json:"content"`
	IsError bool                  `json:"isError"`
}

// ToolsCapability advertises whether a server's tool list can change after
// initialize.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// Capabilities carries per-peer feature flags. Only Tools is interpreted
// by the core; Resources, Prompts and Logging round-trip as opaque JSON.
type Capabilities struct {
	Tools     *ToolsCapability `json:"tools,omitempty"`
	Resources json.RawMessage  `json:"resources,omitempty"`
	Prompts   json.RawMessage  `json:"prompts,omitempty"`
	Logging   json.RawMessage  `json:"logging,omitempty"`
}

// ClientInfo / ServerInfo identify a peer during the handshake.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeParams is the params shape of an initialize request.
type InitializeParams struct {
	ProtocolVersion ProtocolVersion `json:"protocolVersion"`
	Capabilities    Capabilities    `json:"capabilities"`
	ClientInfo      ClientInfo      `json:"clientInfo"`
}

// InitializeResult is the result shape of an initialize request.
type InitializeResult struct {
	ProtocolVersion ProtocolVersion `json:"protocolVersion"`
	Capabilities    Capabilities    `json:"capabilities"`
	ServerInfo      ServerInfo      `json:"serverInfo"`
}

// ToolsListResult is the result shape of a tools/list request.
type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}
