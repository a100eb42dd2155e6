// Package sse implements the HTTP + Server-Sent-Events transport binding:
// a GET /sse stream paired with a POST back-channel per session. The
// session registry follows the teacher retrieval pack's sync.Map-based SSE
// handler (CCpro10-mcp_examples/go/sse/main.go), generalized to the
// session-id-as-URL-path scheme and sessions.RWMutex discipline the spec
// requires.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/kosz78/mcp-core/jsonrpc"
	"github.com/kosz78/mcp-core/transport"
)

const (
	pathSSE       = "/sse"
	sessionPrefix = "/session/"
	eventEndpoint = "endpoint"
	eventMessage  = "message"
)

// session is one active SSE stream and its paired inbound queue.
type session struct {
	id       string
	outbound chan *jsonrpc.Envelope
	inbound  chan *jsonrpc.Envelope
	done     chan struct{}
}

// ServerTransport implements transport.Transport for a single accepted
// SSE session. One ServerTransport exists per connected client; Handler
// hands a fresh one to NewSession for each GET /sse that completes its
// handshake.
type ServerTransport struct {
	sess *session
}

func (t *ServerTransport) Open(ctx context.Context) error { return nil }

func (t *ServerTransport) Send(ctx context.Context, env *jsonrpc.Envelope) error {
	select {
	case t.sess.outbound <- env:
		return nil
	case <-t.sess.done:
		return transport.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *ServerTransport) Receive(ctx context.Context) (*jsonrpc.Envelope, error) {
	select {
	case env, ok := <-t.sess.inbound:
		if !ok {
			return nil, transport.ErrClosed
		}
		return env, nil
	case <-t.sess.done:
		return nil, transport.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *ServerTransport) Close() error {
	select {
	case <-t.sess.done:
	default:
		close(t.sess.done)
	}
	return nil
}

// Handler is the net/http.Handler serving GET /sse and POST
// /session/<id>. NewSession is invoked once per established SSE stream,
// on its own goroutine, with a ServerTransport the caller should hand to
// an engine/server.
type Handler struct {
	mu       sync.RWMutex
	sessions map[string]*session

	// NewSession is called once a GET /sse stream's handshake is
	// complete (endpoint event sent). The caller is expected to run its
	// protocol engine against the returned transport on its own
	// goroutine; Handler only pumps bytes.
	NewSession func(*ServerTransport)
}

// NewHandler constructs an SSE Handler. newSession is required and is
// invoked once per accepted connection.
func NewHandler(newSession func(*ServerTransport)) *Handler {
	return &Handler{
		sessions:   make(map[string]*session),
		NewSession: newSession,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == pathSSE:
		h.serveStream(w, r)
	case r.Method == http.MethodPost && len(r.URL.Path) > len(sessionPrefix) && r.URL.Path[:len(sessionPrefix)] == sessionPrefix:
		h.serveMessage(w, r, r.URL.Path[len(sessionPrefix):])
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) serveStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	id := uuid.NewString()
	sess := &session{
		id:       id,
		outbound: make(chan *jsonrpc.Envelope, 16),
		inbound:  make(chan *jsonrpc.Envelope, 16),
		done:     make(chan struct{}),
	}

	h.mu.Lock()
	h.sessions[id] = sess
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.sessions, id)
		h.mu.Unlock()
		close(sess.inbound)
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeEvent(w, flusher, eventEndpoint, sessionPrefix+id)

	if h.NewSession != nil {
		go h.NewSession(&ServerTransport{sess: sess})
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			t := &ServerTransport{sess: sess}
			_ = t.Close()
			return
		case <-sess.done:
			return
		case env, ok := <-sess.outbound:
			if !ok {
				return
			}
			data, err := env.Marshal()
			if err != nil {
				continue
			}
			writeEvent(w, flusher, eventMessage, string(data))
		}
	}
}

func (h *Handler) serveMessage(w http.ResponseWriter, r *http.Request, id string) {
	h.mu.RLock()
	sess, ok := h.sessions[id]
	h.mu.RUnlock()
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}

	env, err := jsonrpc.ParseEnvelope(raw)
	if err != nil {
		http.Error(w, fmt.Sprintf("malformed envelope: %v", err), http.StatusBadRequest)
		return
	}

	select {
	case sess.inbound <- env:
		w.WriteHeader(http.StatusAccepted)
	case <-sess.done:
		http.Error(w, "session closed", http.StatusNotFound)
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}
