// Package telemetry provides a JSONL event stream for ranking runs. Run
// starts, sampler progress, solver passes, corpus changes and completions are
// recorded as structured JSON events so a run can be audited or replotted
// after the fact.
package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Event kinds identify the type of telemetry event.
const (
	KindRunStart       = "run_start"
	KindSampleProgress = "sample_progress"
	KindSolveStep      = "solve_step"
	KindMethodDone     = "method_done"
	KindRunDone        = "run_done"
	KindRunFailed      = "run_failed"
	KindCorpusChanged  = "corpus_changed"
)

// Event represents a single telemetry record. Each event carries a timestamp,
// a kind tag, the run it belongs to, and optionally the ranking method that
// produced it along with arbitrary structured data.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Kind      string    `json:"kind"`
	RunID     string    `json:"run,omitempty"`
	Method    string    `json:"method,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// Emitter writes telemetry events as JSONL. It is safe for concurrent use by
// multiple goroutines. A nil *Emitter is a valid no-op emitter.
type Emitter struct {
	w   io.WriteCloser
	enc *json.Encoder
	mu  sync.Mutex
	now func() time.Time
}

// NewEmitter creates a new Emitter that writes JSONL events to the file at
// path. The file is created if it does not exist, or appended to if it does.
func NewEmitter(path string) (*Emitter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	return NewWriterEmitter(f), nil
}

// NewWriterEmitter creates an Emitter on an arbitrary sink. Close closes w.
func NewWriterEmitter(w io.WriteCloser) *Emitter {
	return &Emitter{
		w:   w,
		enc: json.NewEncoder(w),
		now: time.Now,
	}
}

// Emit writes a single event. A zero Timestamp is filled in with the current
// time. Calling Emit on a nil Emitter is a no-op.
func (e *Emitter) Emit(evt Event) error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if evt.Timestamp.IsZero() {
		evt.Timestamp = e.now().UTC()
	}
	if err := e.enc.Encode(evt); err != nil {
		return fmt.Errorf("telemetry: encode event: %w", err)
	}
	return nil
}

// Record is a shorthand for Emit that builds the Event from its parts and
// drops the encode error. Telemetry never fails a run.
func (e *Emitter) Record(kind, runID, method string, data any) {
	_ = e.Emit(Event{Kind: kind, RunID: runID, Method: method, Data: data})
}

// Close flushes and closes the underlying sink. Calling Close on a nil
// Emitter is a no-op.
func (e *Emitter) Close() error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.w.Close(); err != nil {
		return fmt.Errorf("telemetry: close: %w", err)
	}
	return nil
}
