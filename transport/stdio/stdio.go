// Package stdio implements the line-delimited pipe transport binding: one
// UTF-8 JSON envelope per line. It generalizes the teacher's brace-counting
// reader into the newline-delimited framing the spec requires, and adds
// the write side and process-spawning client half the teacher's
// single-direction server Transport never needed.
package stdio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/kosz78/mcp-core/jsonrpc"
	"github.com/kosz78/mcp-core/transport"
	"github.com/tidwall/gjson"
)

// Transport is a stdio-pipe binding. Built directly over a reader/writer
// pair (server side: os.Stdin/os.Stdout) or, via NewClient, over a spawned
// child process's stdio.
type Transport struct {
	r      *bufio.Reader
	w      io.Writer
	wmu    sync.Mutex // serializes Send so concurrent writers can't interleave lines
	cmd    *exec.Cmd
	opened bool
}

// New wraps an already-open reader/writer pair (typically os.Stdin /
// os.Stdout on the server side).
func New(r io.Reader, w io.Writer) *Transport {
	return &Transport{r: bufio.NewReader(r), w: w}
}

// NewClient spawns path+args as a child process and wires a Transport to
// its stdin/stdout. The process's stderr is left connected to the parent's
// for diagnostics, matching how an MCP host typically surfaces a spawned
// server's logs.
func NewClient(path string, args ...string) (*Transport, error) {
	cmd := exec.Command(path, args...)
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdio: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdio: stdout pipe: %w", err)
	}
	return &Transport{r: bufio.NewReader(stdout), w: stdin, cmd: cmd}, nil
}

// Open starts the child process, if this Transport was built with
// NewClient. It is a no-op for a Transport wrapping already-open pipes.
func (t *Transport) Open(ctx context.Context) error {
	if t.opened {
		return nil
	}
	t.opened = true
	if t.cmd == nil {
		return nil
	}
	if err := t.cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", transport.ErrUnavailable, err)
	}
	return nil
}

// Send writes one envelope as a single line, terminated by "\n". Writes
// are serialized so two concurrent Send calls cannot interleave partial
// lines on the wire.
func (t *Transport) Send(ctx context.Context, env *jsonrpc.Envelope) error {
	data, err := env.Marshal()
	if err != nil {
		return err
	}
	t.wmu.Lock()
	defer t.wmu.Unlock()
	if _, err := t.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("%w: %v", transport.ErrClosed, err)
	}
	return nil
}

// Receive reads the next line, tolerating a trailing CRLF, and parses it
// as a JSON-RPC envelope.
func (t *Transport) Receive(ctx context.Context) (*jsonrpc.Envelope, error) {
	line, err := t.r.ReadString('\n')
	if err != nil {
		if err == io.EOF && strings.TrimSpace(line) == "" {
			return nil, transport.ErrClosed
		}
		if err != io.EOF {
			return nil, fmt.Errorf("%w: %v", transport.ErrClosed, err)
		}
	}
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return nil, transport.ErrClosed
	}

	env, perr := jsonrpc.ParseEnvelope([]byte(line))
	if perr != nil {
		return nil, &ParseError{Raw: line, ID: peekID(line), Cause: perr}
	}
	return env, nil
}

// Close releases the underlying process, if any. Closing a Transport
// wrapping externally-owned pipes does nothing: later Send and Receive
// calls still use those pipes, and the caller owns the underlying
// reader/writer lifecycle.
func (t *Transport) Close() error {
	if t.cmd != nil && t.cmd.Process != nil {
		return t.cmd.Process.Kill()
	}
	return nil
}

// ParseError reports a line that failed to parse as a JSON-RPC envelope.
// ID is populated on a best-effort basis via gjson, without requiring the
// line to fully unmarshal, so a -32700 parse-error reply can still carry
// the original request id when one was present.
type ParseError struct {
	Raw   string
	ID    *uint64
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("stdio: parse error: %v", e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// RequestID reports the best-effort id peeked from the malformed line, if
// any, satisfying transport.ParseError.
func (e *ParseError) RequestID() (uint64, bool) {
	if e.ID == nil {
		return 0, false
	}
	return *e.ID, true
}

var _ transport.ParseError = (*ParseError)(nil)

func peekID(line string) *uint64 {
	result := gjson.Get(line, "id")
	if !result.Exists() || result.Type != gjson.Number {
		return nil
	}
	id := uint64(result.Uint())
	return &id
}
