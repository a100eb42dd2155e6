// Package transport defines the duplex, message-at-a-time channel contract
// that carries jsonrpc.Envelope values, plus its two concrete bindings:
// stdio (transport/stdio) and SSE (transport/sse).
package transport

import (
	"context"
	"errors"

	"github.com/kosz78/mcp-core/jsonrpc"
)

// ErrClosed is returned by Send/Receive once the transport has been
// closed, or by Receive once the remote peer's stream has ended.
var ErrClosed = errors.New("transport: closed")

// ErrUnavailable is returned by Open when the underlying channel could not
// be established (I/O failure, handshake failure, ...).
var ErrUnavailable = errors.New("transport: unavailable")

// ParseError is implemented by a binding's malformed-message error when it
// can still offer a best-effort request id for the resulting -32700 reply.
// Receive returning an error satisfying this interface is recoverable: the
// caller should reply (if RequestID is ok) and keep reading, rather than
// treat it like a closed connection.
type ParseError interface {
	error
	RequestID() (id uint64, ok bool)
}

// Transport is a duplex channel carrying one jsonrpc.Envelope at a time.
// Receive never returns a partial message: either a complete envelope or
// an error.
type Transport interface {
	// Open establishes the channel. Safe to call once; calling Open again
	// on an already-open transport is a no-op.
	Open(ctx context.Context) error

	// Send enqueues one outbound message, returning once it has been
	// handed to the OS/network. Fails with ErrClosed if the channel has
	// closed.
	Send(ctx context.Context, env *jsonrpc.Envelope) error

	// Receive yields the next inbound message, or ErrClosed once the
	// stream has ended.
	Receive(ctx context.Context) (*jsonrpc.Envelope, error)

	// Close flushes and releases the channel. All subsequent Send/Receive
	// calls fail with ErrClosed.
	Close() error
}
