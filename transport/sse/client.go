package sse

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/kosz78/mcp-core/jsonrpc"
	"github.com/kosz78/mcp-core/transport"
)

// ClientTransport opens an SSE GET stream, waits for the endpoint event to
// learn the POST back-channel URL, and then implements Send by POSTing
// and Receive by draining parsed "message" events.
type ClientTransport struct {
	baseURL string
	headers http.Header
	client  *http.Client

	endpointReady chan struct{} // closed once endpointURL is set (one-shot gate)
	endpointOnce  sync.Once
	endpointURL   string
	endpointErr   error

	messages  chan *jsonrpc.Envelope
	closed    chan struct{}
	closeOnce sync.Once

	body io.ReadCloser
}

// NewClientTransport configures (without opening) an SSE client against
// baseURL (the server's GET /sse endpoint). headers are attached to both
// the SSE GET and every subsequent POST.
func NewClientTransport(baseURL string, headers http.Header) *ClientTransport {
	return &ClientTransport{
		baseURL:       baseURL,
		headers:       headers,
		client:        &http.Client{},
		endpointReady: make(chan struct{}),
		messages:      make(chan *jsonrpc.Envelope, 16),
		closed:        make(chan struct{}),
	}
}

// ErrHandshakeFailed is returned when the endpoint event is missing or
// malformed.
type ErrHandshakeFailed struct{ Reason string }

func (e *ErrHandshakeFailed) Error() string { return "sse: handshake failed: " + e.Reason }

// Open establishes the SSE GET stream and blocks until the first endpoint
// event arrives (or the stream ends without one).
func (t *ClientTransport) Open(ctx context.Context) error {
	if t.body != nil {
		<-t.endpointReady
		return t.endpointErr
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", transport.ErrUnavailable, err)
	}
	for k, vs := range t.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", transport.ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("%w: unexpected status %s", transport.ErrUnavailable, resp.Status)
	}
	t.body = resp.Body

	go t.pump()

	select {
	case <-t.endpointReady:
		return t.endpointErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pump reads SSE events off the stream, resolving the endpoint gate on the
// first "endpoint" event and feeding every "message" event into messages.
func (t *ClientTransport) pump() {
	defer func() {
		t.endpointOnce.Do(func() {
			t.endpointErr = &ErrHandshakeFailed{Reason: "stream ended before an endpoint event arrived"}
			close(t.endpointReady)
		})
		close(t.messages)
		t.body.Close()
	}()

	scanner := bufio.NewScanner(t.body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var event, data strings.Builder
	flush := func() {
		if event.Len() == 0 {
			return
		}
		switch event.String() {
		case eventEndpoint:
			url := strings.TrimSpace(data.String())
			t.endpointOnce.Do(func() {
				if url == "" {
					t.endpointErr = &ErrHandshakeFailed{Reason: "empty endpoint event data"}
				} else {
					t.endpointURL = t.resolve(url)
				}
				close(t.endpointReady)
			})
		case eventMessage:
			env, err := jsonrpc.ParseEnvelope([]byte(data.String()))
			if err == nil {
				select {
				case t.messages <- env:
				case <-t.closed:
				}
			}
		}
		event.Reset()
		data.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "event:"):
			event.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "event:")))
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		case strings.HasPrefix(line, ":"):
			// heartbeat comment, ignore
		}
	}
	flush()
}

func (t *ClientTransport) resolve(endpoint string) string {
	base, err := url.Parse(t.baseURL)
	if err != nil {
		return endpoint
	}
	ref, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	return base.ResolveReference(ref).String()
}

// Send POSTs the envelope to the discovered endpoint URL. Open must have
// returned successfully first.
func (t *ClientTransport) Send(ctx context.Context, env *jsonrpc.Envelope) error {
	if t.endpointURL == "" {
		return &ErrHandshakeFailed{Reason: "Send called before Open completed"}
	}
	data, err := env.Marshal()
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpointURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", transport.ErrClosed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range t.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", transport.ErrClosed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("sse: POST rejected with status %s", resp.Status)
	}
	return nil
}

// Receive yields the next parsed "message" event.
func (t *ClientTransport) Receive(ctx context.Context) (*jsonrpc.Envelope, error) {
	select {
	case env, ok := <-t.messages:
		if !ok {
			return nil, transport.ErrClosed
		}
		return env, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close tears down the SSE stream.
func (t *ClientTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	if t.body != nil {
		return t.body.Close()
	}
	return nil
}
