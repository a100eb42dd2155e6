// Package auditlog writes an append-only JSONL trail of tool invocations,
// guarded by an flock so multiple server processes sharing one log file
// serialize their writes instead of corrupting each other's lines. This
// mirrors the file-locking pattern the teacher repo uses around its own
// shared YAML state files.
package auditlog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// Entry is one recorded tools/call completion.
type Entry struct {
	Time       time.Time `json:"time"`
	Tool       string    `json:"tool"`
	IsError    bool      `json:"isError"`
	DurationMs int64     `json:"durationMs"`
}

// Writer appends Entry values to a single file as newline-delimited JSON.
// Write-only: there is no query/replay API in scope.
type Writer struct {
	path string
	lock *flock.Flock
	mu   sync.Mutex

	bytesWritten int64
	callsWritten int
}

// Open prepares a Writer over path. The file is created if it does not
// exist; it is not truncated.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("auditlog: open %s: %w", path, err)
	}
	f.Close()

	return &Writer{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

// Record appends one Entry as a single JSON line, holding the flock only
// across the write.
func (w *Writer) Record(e Entry) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	data = append(data, '\n')

	if err := w.lock.Lock(); err != nil {
		fmt.Fprintf(os.Stderr, "auditlog: failed to acquire lock: %v\n", err)
		return
	}
	defer w.lock.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "auditlog: %v\n", err)
		return
	}
	defer f.Close()

	if n, err := f.Write(data); err == nil {
		w.bytesWritten += int64(n)
		w.callsWritten++
	}
}

// Stats returns the number of entries and bytes written by this process
// since it opened the log (not the file's total size).
func (w *Writer) Stats() (calls int, bytes int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.callsWritten, w.bytesWritten
}
