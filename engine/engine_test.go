package engine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/kosz78/mcp-core/jsonrpc"
	"github.com/kosz78/mcp-core/transport"
)

// pipe is an in-memory transport.Transport pair for testing the engine
// without a real stdio or SSE binding.
type pipe struct {
	out    chan *jsonrpc.Envelope
	in     chan *jsonrpc.Envelope
	closed chan struct{}
}

func newPipePair() (*pipe, *pipe) {
	a := make(chan *jsonrpc.Envelope, 16)
	b := make(chan *jsonrpc.Envelope, 16)
	closed := make(chan struct{})
	return &pipe{out: a, in: b, closed: closed}, &pipe{out: b, in: a, closed: closed}
}

func (p *pipe) Open(ctx context.Context) error { return nil }

func (p *pipe) Send(ctx context.Context, env *jsonrpc.Envelope) error {
	select {
	case p.out <- env:
		return nil
	case <-p.closed:
		return transport.ErrClosed
	}
}

func (p *pipe) Receive(ctx context.Context) (*jsonrpc.Envelope, error) {
	select {
	case env := <-p.in:
		return env, nil
	case <-p.closed:
		return nil, transport.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *pipe) Close() error {
	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
	return nil
}

func TestRequestResponseRoundTrip(t *testing.T) {
	clientSide, serverSide := newPipePair()
	client := New(clientSide)
	srv := New(serverSide)

	srv.RegisterHandler("ping", func(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`"pong"`), nil
	})

	ctx := context.Background()
	if err := client.Open(ctx); err != nil {
		t.Fatalf("client.Open() error = %v", err)
	}
	if err := srv.Open(ctx); err != nil {
		t.Fatalf("srv.Open() error = %v", err)
	}

	result, err := client.Request(ctx, "ping", nil, RequestOptions{})
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if string(result) != `"pong"` {
		t.Errorf("result = %s, want \"pong\"", result)
	}
}

func TestRequestIDsAreSequentialStartingAtOne(t *testing.T) {
	clientSide, serverSide := newPipePair()
	client := New(clientSide)
	srv := New(serverSide)
	srv.RegisterHandler("noop", func(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`null`), nil
	})

	ctx := context.Background()
	client.Open(ctx)
	srv.Open(ctx)

	for i := uint64(1); i <= 3; i++ {
		if _, err := client.Request(ctx, "noop", nil, RequestOptions{}); err != nil {
			t.Fatalf("Request() error = %v", err)
		}
	}
	if client.nextID != 3 {
		t.Errorf("nextID = %d, want 3", client.nextID)
	}
}

func TestMethodNotFound(t *testing.T) {
	clientSide, serverSide := newPipePair()
	client := New(clientSide)
	srv := New(serverSide)

	ctx := context.Background()
	client.Open(ctx)
	srv.Open(ctx)

	_, err := client.Request(ctx, "nope", nil, RequestOptions{Timeout: time.Second})
	if err == nil {
		t.Fatal("expected error")
	}
	remoteErr, ok := err.(*RemoteError)
	if !ok {
		t.Fatalf("error = %v (%T), want *RemoteError", err, err)
	}
	if remoteErr.Code != jsonrpc.CodeMethodNotFound {
		t.Errorf("code = %d, want %d", remoteErr.Code, jsonrpc.CodeMethodNotFound)
	}
}

func TestTimeout(t *testing.T) {
	clientSide, serverSide := newPipePair()
	client := New(clientSide)
	srv := New(serverSide)

	started := make(chan struct{})
	srv.RegisterHandler("slow", func(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
		close(started)
		time.Sleep(5 * time.Second)
		return json.RawMessage(`null`), nil
	})

	ctx := context.Background()
	client.Open(ctx)
	srv.Open(ctx)

	start := time.Now()
	_, err := client.Request(ctx, "slow", nil, RequestOptions{Timeout: 100 * time.Millisecond})
	elapsed := time.Since(start)

	<-started
	if err != ErrTimeout {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("timeout took %v, want ~100ms", elapsed)
	}

	// The engine must still be usable after one request times out.
	srv.RegisterHandler("ping", func(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`"pong"`), nil
	})
	if _, err := client.Request(ctx, "ping", nil, RequestOptions{}); err != nil {
		t.Fatalf("Request() after timeout error = %v", err)
	}
}

func TestConnectionClosedFailsOutstandingRequests(t *testing.T) {
	clientSide, serverSide := newPipePair()
	client := New(clientSide)
	srv := New(serverSide)

	block := make(chan struct{})
	srv.RegisterHandler("block", func(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
		<-block
		return json.RawMessage(`null`), nil
	})
	defer close(block)

	ctx := context.Background()
	client.Open(ctx)
	srv.Open(ctx)

	results := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() {
			_, err := client.Request(ctx, "block", nil, RequestOptions{Timeout: 5 * time.Second})
			results <- err
		}()
	}

	time.Sleep(50 * time.Millisecond)
	client.Close()

	for i := 0; i < 3; i++ {
		err := <-results
		if err != ErrConnectionClosed {
			t.Errorf("result[%d] = %v, want ErrConnectionClosed", i, err)
		}
	}
}

func TestNotifyIsFireAndForget(t *testing.T) {
	clientSide, serverSide := newPipePair()
	client := New(clientSide)
	srv := New(serverSide)

	received := make(chan json.RawMessage, 1)
	srv.RegisterNotificationHandler("ping", func(ctx context.Context, params json.RawMessage) {
		received <- params
	})

	ctx := context.Background()
	client.Open(ctx)
	srv.Open(ctx)

	if err := client.Notify(ctx, "ping", json.RawMessage(`{"hello":true}`)); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	select {
	case params := <-received:
		if string(params) != `{"hello":true}` {
			t.Errorf("params = %s", params)
		}
	case <-time.After(time.Second):
		t.Fatal("notification was not delivered")
	}
}

func TestHandlerErrorBecomesApplicationError(t *testing.T) {
	clientSide, serverSide := newPipePair()
	client := New(clientSide)
	srv := New(serverSide)

	srv.RegisterHandler("fail", func(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
		return nil, errTest{}
	})

	ctx := context.Background()
	client.Open(ctx)
	srv.Open(ctx)

	_, err := client.Request(ctx, "fail", nil, RequestOptions{Timeout: time.Second})
	remoteErr, ok := err.(*RemoteError)
	if !ok {
		t.Fatalf("error = %v (%T), want *RemoteError", err, err)
	}
	if remoteErr.Code != jsonrpc.CodeApplicationErr {
		t.Errorf("code = %d, want %d", remoteErr.Code, jsonrpc.CodeApplicationErr)
	}
}

type errTest struct{}

func (errTest) Error() string { return "boom" }

// testParseError is a minimal transport.ParseError for exercising the
// engine's recovery path without depending on transport/stdio.
type testParseError struct {
	id    uint64
	hasID bool
}

func (e *testParseError) Error() string            { return "malformed line" }
func (e *testParseError) RequestID() (uint64, bool) { return e.id, e.hasID }

// onceParseErrorPipe wraps a pipe so its very first Receive call returns a
// synthetic transport.ParseError instead of touching the channel; every
// later call behaves like the wrapped pipe.
type onceParseErrorPipe struct {
	*pipe
	fired bool
	err   *testParseError
}

func (p *onceParseErrorPipe) Receive(ctx context.Context) (*jsonrpc.Envelope, error) {
	if !p.fired {
		p.fired = true
		return nil, p.err
	}
	return p.pipe.Receive(ctx)
}

func TestDispatchLoopSurvivesAndRepliesToParseError(t *testing.T) {
	clientSide, serverSide := newPipePair()
	client := New(clientSide)
	srv := New(&onceParseErrorPipe{pipe: serverSide, err: &testParseError{id: 99, hasID: true}})

	srv.RegisterHandler("ping", func(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`"pong"`), nil
	})

	ctx := context.Background()
	if err := client.Open(ctx); err != nil {
		t.Fatalf("client.Open() error = %v", err)
	}
	if err := srv.Open(ctx); err != nil {
		t.Fatalf("srv.Open() error = %v", err)
	}

	// The session must have survived the injected parse error: a normal
	// request issued afterward still completes successfully rather than
	// failing with ErrConnectionClosed.
	result, err := client.Request(ctx, "ping", nil, RequestOptions{Timeout: time.Second})
	if err != nil {
		t.Fatalf("Request() after parse error = %v, want success", err)
	}
	if string(result) != `"pong"` {
		t.Errorf("result = %s, want \"pong\"", result)
	}
}

func TestDispatchLoopDropsParseErrorWithoutID(t *testing.T) {
	clientSide, serverSide := newPipePair()
	client := New(clientSide)
	srv := New(&onceParseErrorPipe{pipe: serverSide, err: &testParseError{hasID: false}})

	srv.RegisterHandler("ping", func(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`"pong"`), nil
	})

	ctx := context.Background()
	client.Open(ctx)
	if err := srv.Open(ctx); err != nil {
		t.Fatalf("srv.Open() error = %v", err)
	}

	if _, err := client.Request(ctx, "ping", nil, RequestOptions{Timeout: time.Second}); err != nil {
		t.Fatalf("Request() after id-less parse error = %v, want success", err)
	}
}
