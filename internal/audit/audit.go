// Package audit records the line-level decisions the segmenters make:
// which pass touched a line, how it was classified, and why. The log is
// advisory; recording failures never abort extraction.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one segmentation decision.
type Event struct {
	RunID          string    `json:"run_id"`
	Seq            int64     `json:"seq"`
	Time           time.Time `json:"time"`
	Stage          string    `json:"stage"`
	LineIndex      int       `json:"line_index"`
	Classification string    `json:"classification"`
	Rationale      string    `json:"rationale"`
}

// Recorder receives decision events. Implementations swallow their own
// write errors; Close surfaces the first one.
type Recorder interface {
	Record(ev Event)
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Record(Event) {}
func (Nop) Close() error { return nil }

// FileRecorder appends events as JSON lines to a file, stamping each
// with a run id and a monotonically increasing sequence number.
type FileRecorder struct {
	mu    sync.Mutex
	f     *os.File
	enc   *json.Encoder
	runID string
	seq   int64
	err   error
}

// NewFileRecorder opens (or creates) path for appending.
func NewFileRecorder(path string) (*FileRecorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	return &FileRecorder{
		f:     f,
		enc:   json.NewEncoder(f),
		runID: uuid.NewString(),
	}, nil
}

// Record writes the event, filling in run id, sequence number, and
// timestamp. A failed write is remembered and reported by Close.
func (r *FileRecorder) Record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	ev.RunID = r.runID
	ev.Seq = r.seq
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	if err := r.enc.Encode(ev); err != nil && r.err == nil {
		r.err = err
	}
}

// Close flushes and closes the log file.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.f.Close(); err != nil && r.err == nil {
		r.err = err
	}
	return r.err
}

// RunID returns the identifier stamped on this recorder's events.
func (r *FileRecorder) RunID() string { return r.runID }
