// Package engine implements the symmetric JSON-RPC protocol engine shared
// by both the client and server runtimes: id allocation, the pending
// response table, inbound dispatch, and per-request timeouts.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kosz78/mcp-core/jsonrpc"
	"github.com/kosz78/mcp-core/transport"
	"golang.org/x/sync/errgroup"
)

// DefaultTimeout is the deadline applied to Request calls that don't pass
// an explicit timeout.
const DefaultTimeout = 60 * time.Second

// MaxConcurrentHandlers bounds how many inbound requests this engine will
// dispatch to handler goroutines at once, so a pathological peer cannot
// fork the process unboundedly.
const MaxConcurrentHandlers = 64

// Handler computes the result for an inbound request. A non-nil error
// becomes an application-error envelope (-32000) unless it is a
// *HandlerError (such as one built by InvalidParamsError, -32602), which
// is reported with its own Code.
type Handler func(ctx context.Context, params json.RawMessage) (json.RawMessage, error)

// NotificationHandler handles an inbound notification; it has no result to
// return.
type NotificationHandler func(ctx context.Context, params json.RawMessage)

// HandlerError lets a Handler signal a specific JSON-RPC error code
// (-32600, -32601, -32602, ...) instead of the default -32000 application
// error a plain error value produces.
type HandlerError struct {
	Code    int
	Message string
}

func (e *HandlerError) Error() string { return e.Message }

// InvalidParamsError is a HandlerError pinned to -32602, the common case
// of a handler rejecting its arguments.
func InvalidParamsError(message string) *HandlerError {
	return &HandlerError{Code: jsonrpc.CodeInvalidParams, Message: message}
}

// RemoteError is returned from Request when the peer replied with a
// JSON-RPC error envelope.
type RemoteError struct {
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}

// ErrTimeout is returned from Request when the deadline elapsed before a
// reply arrived.
var ErrTimeout = fmt.Errorf("engine: request timed out")

// ErrConnectionClosed is returned from Request (and from the result of any
// outstanding request) once the transport has ended.
var ErrConnectionClosed = fmt.Errorf("engine: connection closed")

// pending is one outstanding request's completion slot.
type pending struct {
	resultCh chan pendingResult
	timer    *time.Timer
}

type pendingResult struct {
	result json.RawMessage
	err    error
}

// Engine owns one transport's id counter, pending table, and handler
// registries. Both client and server runtimes embed one.
type Engine struct {
	t transport.Transport

	nextID uint64 // atomic, allocated via atomic.AddUint64

	mu      sync.Mutex
	pending map[uint64]*pending
	closed  bool

	handlers      map[string]Handler
	notifications map[string]NotificationHandler

	group *errgroup.Group

	stderr *os.File
	done   chan struct{}
}

// New constructs an Engine over t. Call Open to start the reader loop.
func New(t transport.Transport) *Engine {
	g := new(errgroup.Group)
	g.SetLimit(MaxConcurrentHandlers)
	return &Engine{
		t:             t,
		pending:       make(map[uint64]*pending),
		handlers:      make(map[string]Handler),
		notifications: make(map[string]NotificationHandler),
		group:         g,
		stderr:        os.Stderr,
		done:          make(chan struct{}),
	}
}

// Done returns a channel that is closed once the session has shut down
// (transport closed, either by the peer or via Close).
func (e *Engine) Done() <-chan struct{} { return e.done }

// RegisterHandler registers (or replaces) the handler for method.
func (e *Engine) RegisterHandler(method string, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[method] = h
}

// RegisterNotificationHandler registers (or replaces) the handler for an
// inbound notification method.
func (e *Engine) RegisterNotificationHandler(method string, h NotificationHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notifications[method] = h
}

// Open opens the underlying transport and starts the single reader
// goroutine that drives inbound dispatch.
func (e *Engine) Open(ctx context.Context) error {
	if err := e.t.Open(ctx); err != nil {
		return err
	}
	go e.dispatchLoop(ctx)
	return nil
}

// RequestOptions configures a single outbound Request call.
type RequestOptions struct {
	Timeout time.Duration // zero means DefaultTimeout
}

// Request allocates an id, sends method+params, and awaits the matching
// response. Exactly one of (result, *RemoteError, ErrTimeout,
// ErrConnectionClosed, ctx.Err()) resolves the call.
func (e *Engine) Request(ctx context.Context, method string, params json.RawMessage, opts RequestOptions) (json.RawMessage, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	id := atomic.AddUint64(&e.nextID, 1)

	p := &pending{resultCh: make(chan pendingResult, 1)}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrConnectionClosed
	}
	e.pending[id] = p
	e.mu.Unlock()

	p.timer = time.AfterFunc(timeout, func() {
		e.mu.Lock()
		_, stillPending := e.pending[id]
		delete(e.pending, id)
		e.mu.Unlock()
		if stillPending {
			p.resultCh <- pendingResult{err: ErrTimeout}
		}
	})

	env := &jsonrpc.Envelope{Request: &jsonrpc.Request{
		JSONRPC: jsonrpc.Version,
		ID:      id,
		Method:  method,
		Params:  params,
	}}
	if err := e.t.Send(ctx, env); err != nil {
		e.removePending(id)
		p.timer.Stop()
		return nil, fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}

	select {
	case r := <-p.resultCh:
		p.timer.Stop()
		return r.result, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Notify sends a fire-and-forget notification; there is no pending slot
// and no reply to await.
func (e *Engine) Notify(ctx context.Context, method string, params json.RawMessage) error {
	env := &jsonrpc.Envelope{Notification: &jsonrpc.Notification{
		JSONRPC: jsonrpc.Version,
		Method:  method,
		Params:  params,
	}}
	return e.t.Send(ctx, env)
}

func (e *Engine) removePending(id uint64) {
	e.mu.Lock()
	delete(e.pending, id)
	e.mu.Unlock()
}

// dispatchLoop is the engine's single reader task.
func (e *Engine) dispatchLoop(ctx context.Context) {
	for {
		env, err := e.t.Receive(ctx)
		if err != nil {
			if pe, ok := err.(transport.ParseError); ok {
				e.handleParseError(ctx, pe)
				continue
			}
			e.shutdown()
			return
		}

		switch {
		case env.Response != nil:
			e.resolvePending(env.Response.ID, pendingResult{result: env.Response.Result})

		case env.ErrorResponse != nil:
			e.resolvePending(env.ErrorResponse.ID, pendingResult{
				err: &RemoteError{Code: env.ErrorResponse.Error.Code, Message: env.ErrorResponse.Error.Message},
			})

		case env.Request != nil:
			e.dispatchRequest(ctx, env.Request)

		case env.Notification != nil:
			e.mu.Lock()
			h, ok := e.notifications[env.Notification.Method]
			e.mu.Unlock()
			if ok {
				go h(ctx, env.Notification.Params)
			}
		}
	}
}

// handleParseError answers a malformed inbound message per spec.md §7: a
// single bad line never ends the session. When the binding recovered a
// request id from the malformed line, it gets a -32700 reply referencing
// that id; otherwise the message is dropped with a log line, since there is
// no id to reply against.
func (e *Engine) handleParseError(ctx context.Context, pe transport.ParseError) {
	if id, ok := pe.RequestID(); ok {
		e.replyError(ctx, id, jsonrpc.CodeParseError, "Parse error: "+pe.Error())
		return
	}
	fmt.Fprintf(e.stderr, "mcp: dropping malformed message with no recoverable id: %v\n", pe)
}

func (e *Engine) resolvePending(id uint64, r pendingResult) {
	e.mu.Lock()
	p, ok := e.pending[id]
	if ok {
		delete(e.pending, id)
	}
	e.mu.Unlock()

	if !ok {
		fmt.Fprintf(e.stderr, "mcp: dropping late/duplicate reply for request id %d\n", id)
		return
	}
	p.timer.Stop()
	p.resultCh <- r
}

// dispatchRequest spawns one goroutine (bounded by the errgroup limit) per
// inbound request, so a slow handler never stalls the reader and
// responses from concurrent handlers may arrive in any order.
func (e *Engine) dispatchRequest(ctx context.Context, req *jsonrpc.Request) {
	e.mu.Lock()
	h, ok := e.handlers[req.Method]
	e.mu.Unlock()

	if !ok {
		e.replyError(ctx, req.ID, jsonrpc.CodeMethodNotFound, "Method not found: "+req.Method)
		return
	}

	e.group.Go(func() error {
		result, err := h(ctx, req.Params)
		if err != nil {
			if he, ok := err.(*HandlerError); ok {
				e.replyError(ctx, req.ID, he.Code, he.Message)
			} else {
				e.replyError(ctx, req.ID, jsonrpc.CodeApplicationErr, err.Error())
			}
			return nil
		}
		_ = e.t.Send(ctx, &jsonrpc.Envelope{Response: &jsonrpc.Response{
			JSONRPC: jsonrpc.Version,
			ID:      req.ID,
			Result:  result,
		}})
		return nil
	})
}

func (e *Engine) replyError(ctx context.Context, id uint64, code int, message string) {
	_ = e.t.Send(ctx, &jsonrpc.Envelope{ErrorResponse: &jsonrpc.ErrorResponse{
		JSONRPC: jsonrpc.Version,
		ID:      id,
		Error:   &jsonrpc.ErrorObject{Code: code, Message: message},
	}})
}

// shutdown marks the session closed and fails every outstanding request.
func (e *Engine) shutdown() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	pending := e.pending
	e.pending = make(map[uint64]*pending)
	e.handlers = make(map[string]Handler)
	e.notifications = make(map[string]NotificationHandler)
	e.mu.Unlock()

	for _, p := range pending {
		p.timer.Stop()
		p.resultCh <- pendingResult{err: ErrConnectionClosed}
	}
	close(e.done)
}

// Close tears down the transport and fails every outstanding request.
func (e *Engine) Close() error {
	e.shutdown()
	return e.t.Close()
}
