// Package jsonrpc defines the JSON-RPC 2.0 wire envelope and the MCP
// payload shapes carried inside it.
package jsonrpc

import "encoding/json"

// Version is the JSON-RPC version string carried by every envelope.
const Version = "2.0"

// Request is an outbound or inbound JSON-RPC request: it expects a Response
// or an Error in reply.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Notification is a fire-and-forget request: no id, no reply expected.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response carries a successful result for a given request id.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
}

// ErrorResponse carries a failed result for a given request id.
type ErrorResponse struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      uint64       `json:"id"`
	Error   *ErrorObject `json:"error"`
}

// ErrorObject is the JSON-RPC 2.0 error shape.
type ErrorObject struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Standard JSON-RPC 2.0 error codes, plus the MCP application-error band.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeApplicationErr = -32000
)

// Envelope is the tagged union of the four wire shapes described in the
// protocol: a Request, a Response, an ErrorResponse, or a Notification.
// Exactly one of these fields is non-nil after a successful decode.
type Envelope struct {
	Request       *Request
	Response      *Response
	ErrorResponse *ErrorResponse
	Notification  *Notification
}

// envelopeShape is used to sniff which of the four variants a raw message
// is, without committing to a concrete type ahead of time.
type envelopeShape struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	Result  json.RawMessage `json:"result"`
	Error   *ErrorObject    `json:"error"`
}

// ParseEnvelope decodes a single JSON-RPC message and classifies it into
// one of the four wire shapes. A malformed envelope (wrong jsonrpc version,
// or neither a method nor an id) is reported as *ValidationError. A message
// with an id and no method or error is treated as a Response, whether or
// not it carries a result.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var shape envelopeShape
	if err := json.Unmarshal(data, &shape); err != nil {
		return nil, err
	}
	if shape.JSONRPC != Version {
		return nil, &ValidationError{Reason: "jsonrpc field must be \"2.0\""}
	}

	switch {
	case shape.Method != "" && shape.ID != nil:
		return &Envelope{Request: &Request{
			JSONRPC: shape.JSONRPC,
			ID:      *shape.ID,
			Method:  shape.Method,
			Params:  shape.Params,
		}}, nil
	case shape.Method != "":
		return &Envelope{Notification: &Notification{
			JSONRPC: shape.JSONRPC,
			Method:  shape.Method,
			Params:  shape.Params,
		}}, nil
	case shape.Error != nil && shape.ID != nil:
		return &Envelope{ErrorResponse: &ErrorResponse{
			JSONRPC: shape.JSONRPC,
			ID:      *shape.ID,
			Error:   shape.Error,
		}}, nil
	case shape.ID != nil:
		return &Envelope{Response: &Response{
			JSONRPC: shape.JSONRPC,
			ID:      *shape.ID,
			Result:  shape.Result,
		}}, nil
	default:
		return nil, &ValidationError{Reason: "message is neither a request, response, error, nor notification"}
	}
}

// ValidationError reports a well-formed JSON document that is not a valid
// JSON-RPC envelope.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + e.Reason
}

// Marshal serializes whichever single variant of the Envelope is set. It
// panics if no variant is set, since that is always a programming error on
// the send path (never on the receive path, which goes through
// ParseEnvelope instead).
func (e *Envelope) Marshal() ([]byte, error) {
	switch {
	case e.Request != nil:
		return json.Marshal(e.Request)
	case e.Response != nil:
		return json.Marshal(e.Response)
	case e.ErrorResponse != nil:
		return json.Marshal(e.ErrorResponse)
	case e.Notification != nil:
		return json.Marshal(e.Notification)
	default:
		panic("jsonrpc: empty Envelope cannot be marshaled")
	}
}
