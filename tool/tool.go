// Package tool defines the contract a registered MCP tool must satisfy: a
// descriptor (schema + metadata) paired with a handler. The declarative
// macro that would normally generate both from an annotated function is
// out of scope here; this package only defines the shape its output must
// conform to.
package tool

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kosz78/mcp-core/jsonrpc"
)

// Handler computes a tool's result from its raw arguments map. It must be
// safe to invoke concurrently with other handlers and with itself: the
// engine dispatches every tools/call on its own goroutine.
type Handler func(ctx context.Context, arguments map[string]any) (jsonrpc.ToolResponseContent, error)

// Descriptor pairs a jsonrpc.Tool with its Handler, ready for registration
// with a server.Builder.
type Descriptor struct {
	Tool    jsonrpc.Tool
	Handler Handler
}

// Param describes one parameter of a hand-written tool's input schema.
// Hidden parameters are omitted from the advertised schema but still
// deserialized from arguments if present (used for client-injected secure
// values).
type Param struct {
	Name        string
	Description string
	Type        string // "string", "number", "boolean", "object", "array"
	Optional    bool
	Hidden      bool
}

// Schema builds a *jsonschema.Schema from a list of Params, honouring the
// rules in the spec: optional parameters are excluded from Required; every
// other parameter is listed; numeric Go types collapse to the JSON Schema
// "number" type; hidden parameters are omitted from Properties entirely
// (but a handler may still read them out of the raw arguments map).
func Schema(params ...Param) *jsonschema.Schema {
	props := make(map[string]*jsonschema.Schema)
	var required []string

	for _, p := range params {
		if p.Hidden {
			continue
		}
		typ := p.Type
		switch typ {
		case "integer", "int", "int8", "int16", "int32", "int64",
			"uint", "uint8", "uint16", "uint32", "uint64", "float32", "float64":
			typ = "number"
		}
		props[p.Name] = &jsonschema.Schema{
			Type:        typ,
			Description: p.Description,
		}
		if !p.Optional {
			required = append(required, p.Name)
		}
	}

	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

// TextContent constructs a text-variant ToolResponseContent.
func TextContent(s string) jsonrpc.ToolResponseContent {
	return jsonrpc.ToolResponseContent{Type: jsonrpc.ContentText, Text: s}
}

// TextResponse is a shortcut for the common case of a handler returning a
// single successful text content block.
func TextResponse(s string) (jsonrpc.ToolResponseContent, error) {
	return TextContent(s), nil
}
